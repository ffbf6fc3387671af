package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-docpilot-be/internal/config"
	"ai-docpilot-be/internal/dto"
	"ai-docpilot-be/internal/entity"
	"ai-docpilot-be/internal/pkg/logger"
	"ai-docpilot-be/internal/repository/memory"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/agent/fileplan"
	"ai-docpilot-be/pkg/agent/generate"
	"ai-docpilot-be/pkg/agent/intent"
	"ai-docpilot-be/pkg/agent/ops"
	"ai-docpilot-be/pkg/agent/orchestrator"
	"ai-docpilot-be/pkg/agent/resolve"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/agent/stream"
	"ai-docpilot-be/pkg/agent/toolloop"
	"ai-docpilot-be/pkg/embedding"
	"ai-docpilot-be/pkg/events"
	"ai-docpilot-be/pkg/llm"
	pktNats "ai-docpilot-be/pkg/nats"
)

const historyPageSize = 50

// IAssistService runs the assist pipeline and manages its chat log.
type IAssistService interface {
	Stream(ctx context.Context, userId uuid.UUID, request *dto.AssistRequest, em stream.Emitter) error
	GetHistory(ctx context.Context, userId uuid.UUID, projectId uuid.UUID) ([]*dto.AssistHistoryResponse, error)
	ClearHistory(ctx context.Context, userId uuid.UUID, projectId uuid.UUID) error
}

type assistService struct {
	uowFactory     unitofwork.RepositoryFactory
	orchestrator   *orchestrator.Orchestrator
	eventPublisher *pktNats.Publisher
	sysLogger      logger.ILogger
	agentLogger    *log.Logger
}

// NewAssistService wires the pipeline graph around the shared
// repository factory and providers.
func NewAssistService(
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
	interrupts *memory.InterruptRepository,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	sysLogger logger.ILogger,
	cfg *config.AIConfig,
) IAssistService {
	agentLogger := initAgentLogger(cfg.AgentLogFilePath)

	orch := orchestrator.New(orchestrator.Deps{
		Projects:   resolve.NewProjectResolver(uowFactory, llmProvider, interrupts, agentLogger),
		Files:      resolve.NewFileResolver(uowFactory, llmProvider, interrupts, agentLogger),
		Content:    resolve.NewContentFetcher(uowFactory, embeddingProvider, cfg.ContextCharBudget, agentLogger),
		History:    resolve.NewHistoryLoader(uowFactory, agentLogger),
		Classifier: intent.NewClassifier(llmProvider, agentLogger),
		Generators: generate.NewGenerators(llmProvider, agentLogger),
		ToolLoop:   toolloop.NewExecutor(llmProvider, cfg.MaxToolLoops, agentLogger),
		FilePlan:   fileplan.NewExecutor(uowFactory, llmProvider, agentLogger),
		Interrupts: interrupts,

		Factory:      uowFactory,
		Publisher:    publisherService,
		ScaffoldMode: cfg.ScaffoldMode,
		Logger:       agentLogger,
	})

	return &assistService{
		uowFactory:     uowFactory,
		orchestrator:   orch,
		eventPublisher: eventPublisher,
		sysLogger:      sysLogger,
		agentLogger:    agentLogger,
	}
}

func initAgentLogger(logPath string) *log.Logger {
	if logPath == "" {
		logPath = filepath.Join(".", "logs", "agent_pipeline.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[AGENT] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// Stream runs one pipeline pass and persists the exchange. The
// emitter has streamed every event by the time this returns.
func (as *assistService) Stream(ctx context.Context, userId uuid.UUID, request *dto.AssistRequest, em stream.Emitter) error {
	started := time.Now()

	initial := state.State{
		UserMessage:    request.UserMessage,
		SelectedText:   request.SelectedText,
		DocContext:     request.DocContext,
		CursorPosition: request.CursorPosition,
		Source:         request.Source,
		SessionToken:   request.SessionToken,
		UserId:         userId,
		CurrentFileId:  request.CurrentFileId,
		ProjectId:      request.ProjectId,
		DocId:          request.DocId,
	}

	var final state.State
	if request.ResumeToken != "" {
		resumed, err := as.orchestrator.Resume(ctx, request.ResumeToken, request.ResolvedProjectId, request.ResolvedFileIds, em)
		if err != nil {
			return err
		}
		final = resumed
	} else {
		final = as.orchestrator.Run(ctx, initial, em)
	}

	if final.ProjectId != nil && !final.AwaitingInput {
		if err := as.persistExchange(ctx, userId, final); err != nil {
			as.agentLogger.Printf("[WARN] Failed to persist chat exchange: %v", err)
		}
	}

	elapsed := time.Since(started)
	if final.Error != "" {
		as.sysLogger.Warn("assist", "Pipeline run degraded", map[string]interface{}{
			"intent": final.Intent,
			"error":  final.Error,
		})
	} else {
		as.sysLogger.Info("assist", "Pipeline run completed", map[string]interface{}{
			"intent":     final.Intent,
			"operations": len(final.Operations),
			"elapsed_ms": elapsed.Milliseconds(),
		})
	}

	as.publishRunEvent(ctx, userId, final, elapsed)
	return nil
}

// persistExchange appends the user turn and the assistant's visible
// answer to the project chat log.
func (as *assistService) persistExchange(ctx context.Context, userId uuid.UUID, final state.State) error {
	answer := chatResponseText(final.Operations)
	if final.UserMessage == "" && answer == "" {
		return nil
	}

	uow := as.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	userTurn := entity.ChatMessage{
		Id:        uuid.New(),
		Chat:      final.UserMessage,
		Role:      "user",
		ProjectId: *final.ProjectId,
		UserId:    userId,
		CreatedAt: now,
	}
	if err := uow.ChatMessageRepository().Create(ctx, &userTurn); err != nil {
		return err
	}

	if answer != "" {
		assistantTurn := entity.ChatMessage{
			Id:        uuid.New(),
			Chat:      answer,
			Role:      "assistant",
			ProjectId: *final.ProjectId,
			UserId:    userId,
			CreatedAt: now.Add(1 * time.Second),
		}
		if err := uow.ChatMessageRepository().Create(ctx, &assistantTurn); err != nil {
			return err
		}
	}

	return uow.Commit()
}

func (as *assistService) publishRunEvent(ctx context.Context, userId uuid.UUID, final state.State, elapsed time.Duration) {
	if as.eventPublisher == nil {
		return
	}

	projectId := ""
	if final.ProjectId != nil {
		projectId = final.ProjectId.String()
	}

	var evt events.Event
	if final.Error != "" {
		evt = events.NewAssistRunFailed(userId.String(), projectId, final.Error)
	} else {
		evt = events.NewAssistRunCompleted(userId.String(), projectId, final.Intent, len(final.Operations), elapsed.Milliseconds())
	}

	if err := as.eventPublisher.Publish(ctx, evt); err != nil {
		as.agentLogger.Printf("[WARN] Failed to publish run event: %v", err)
	}
}

func (as *assistService) GetHistory(ctx context.Context, userId uuid.UUID, projectId uuid.UUID) ([]*dto.AssistHistoryResponse, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	messages, err := uow.ChatMessageRepository().FindRecent(ctx, projectId, userId, historyPageSize)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.AssistHistoryResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, &dto.AssistHistoryResponse{
			Id:        m.Id,
			Role:      m.Role,
			Chat:      m.Chat,
			CreatedAt: m.CreatedAt,
		})
	}
	return response, nil
}

func (as *assistService) ClearHistory(ctx context.Context, userId uuid.UUID, projectId uuid.UUID) error {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByProjectId(ctx, projectId); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	return uow.Commit()
}

// chatResponseText joins the conversational parts of the final
// operations into the persisted assistant turn.
func chatResponseText(operations []ops.Operation) string {
	var parts []string
	for _, op := range operations {
		if op.Type != ops.TypeChatResponse {
			continue
		}
		if text, ok := op.Content.(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
