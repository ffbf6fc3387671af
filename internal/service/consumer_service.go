package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"ai-docpilot-be/internal/dto"
	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/repository/specification"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/embedding"
	"ai-docpilot-be/pkg/lexical"
	"ai-docpilot-be/pkg/utils"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedBlockMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Processing block embedding for BlockId: %s", payload.BlockId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	block, err := uow.BlockRepository().FindOne(ctx, specification.ByID{ID: payload.BlockId})
	if err != nil {
		log.Printf("[ERROR] Failed to get block %s: %v", payload.BlockId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if block == nil {
		log.Printf("[ERROR] Block not found: %s", payload.BlockId)
		msg.Ack() // Block deleted? Ack.
		return
	}

	fileName := "Unknown"
	if file, err := uow.FileRepository().FindOne(ctx, specification.ByID{ID: block.FileId}); err == nil && file != nil {
		fileName = file.Name
	} else {
		log.Printf("[WARN] Block %s has no file (implied id %s)", block.Id, block.FileId)
	}

	content := fmt.Sprintf(`File: %s

%s`,
		fileName,
		lexical.Flatten(block.Content),
	)

	log.Printf("[INFO] Generating embeddings for block %s (content length: %d)", payload.BlockId, len(content))

	// ChunkSize: 1500 chars (approx 375 tokens), Overlap: 200 chars
	chunks := utils.SplitText(content, 1500, 200)
	log.Printf("[INFO] Content split into %d chunks", len(chunks))

	var newEmbeddings []*entity.BlockEmbedding

	for i, chunk := range chunks {
		res, err := cs.embeddingProvider.Generate(chunk, "RETRIEVAL_DOCUMENT")
		if err != nil {
			log.Printf("[ERROR] Failed to generate embedding for chunk %d of block %s: %v", i, payload.BlockId, err)
			msg.Nack()
			return
		}

		newEmbeddings = append(newEmbeddings, &entity.BlockEmbedding{
			Id:             uuid.New(),
			Document:       chunk,
			EmbeddingValue: res.Embedding.Values,
			BlockId:        block.Id,
			ChunkIndex:     i,
			CreatedAt:      time.Now(),
		})
	}

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	log.Printf("[INFO] Deleting old embeddings for block %s", payload.BlockId)
	if err := uow.BlockEmbeddingRepository().DeleteByBlockId(ctx, block.Id); err != nil {
		log.Printf("[ERROR] Failed to delete old embeddings: %v", err)
		msg.Nack()
		return
	}

	log.Printf("[INFO] Creating %d new embeddings for block %s", len(newEmbeddings), payload.BlockId)
	if len(newEmbeddings) > 0 {
		if err := uow.BlockEmbeddingRepository().CreateBulk(ctx, newEmbeddings); err != nil {
			log.Printf("[ERROR] Failed to create bulk embeddings: %v", err)
			msg.Nack()
			return
		}
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	log.Printf("[SUCCESS] Block processed: %d chunks for BlockId: %s", len(newEmbeddings), payload.BlockId)
	msg.Ack()
}
