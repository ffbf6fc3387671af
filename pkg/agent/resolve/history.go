package resolve

import (
	"context"
	"log"

	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/agent/state"
)

const historyTurns = 5

// HistoryLoader fetches the last N turns for the bound project. The
// result is set once; a failed read degrades to an empty history.
type HistoryLoader struct {
	factory unitofwork.RepositoryFactory
	logger  *log.Logger
}

func NewHistoryLoader(factory unitofwork.RepositoryFactory, logger *log.Logger) *HistoryLoader {
	return &HistoryLoader{
		factory: factory,
		logger:  logger,
	}
}

func (l *HistoryLoader) Load(ctx context.Context, s state.State) state.Patch {
	if s.HistorySet {
		return state.Patch{}
	}
	if s.ProjectId == nil {
		return state.Patch{ChatHistory: []state.Turn{}}
	}

	uow := l.factory.NewUnitOfWork(ctx)
	messages, err := uow.ChatMessageRepository().FindRecent(ctx, *s.ProjectId, s.UserId, historyTurns)
	if err != nil {
		l.logger.Printf("[WARN] History load failed, continuing without: %v", err)
		return state.Patch{
			ChatHistory: []state.Turn{},
			Error:       state.String("failed to load chat history"),
		}
	}

	turns := make([]state.Turn, len(messages))
	for i, m := range messages {
		turns[i] = state.Turn{Role: m.Role, Content: m.Chat}
	}
	return state.Patch{ChatHistory: turns}
}
