package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"ai-docpilot-be/internal/dto"
)

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
	PublishBlockEmbed(blockId uuid.UUID) error
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

func (ps *publisherService) Publish(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return ps.pubSub.Publish(ps.topicName, msg)
}

// PublishBlockEmbed queues one block for re-embedding. Satisfies the
// tool loop's publisher hook.
func (ps *publisherService) PublishBlockEmbed(blockId uuid.UUID) error {
	payload, err := json.Marshal(dto.PublishEmbedBlockMessage{BlockId: blockId})
	if err != nil {
		return err
	}
	return ps.Publish(context.Background(), payload)
}
