package resolve

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ai-docpilot-be/internal/repository/specification"
	"ai-docpilot-be/internal/repository/unitofwork"
	"ai-docpilot-be/pkg/agent/state"
	"ai-docpilot-be/pkg/embedding"
	"ai-docpilot-be/pkg/lexical"
)

const semanticTopK = 3

// ContentFetcher fills fetchedContext from the resolved files, or
// falls back to an embedding-similarity search when no explicit file
// scope exists. Failures degrade to empty context, never abort.
type ContentFetcher struct {
	factory           unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	charBudget        int
	logger            *log.Logger
}

func NewContentFetcher(factory unitofwork.RepositoryFactory, embeddingProvider embedding.EmbeddingProvider, charBudget int, logger *log.Logger) *ContentFetcher {
	if charBudget <= 0 {
		charBudget = 15000
	}
	return &ContentFetcher{
		factory:           factory,
		embeddingProvider: embeddingProvider,
		charBudget:        charBudget,
		logger:            logger,
	}
}

func (f *ContentFetcher) Fetch(ctx context.Context, s state.State) state.Patch {
	if len(s.TargetFileIds) == 0 {
		return f.semanticFallback(ctx, s)
	}

	uow := f.factory.NewUnitOfWork(ctx)
	fileRepo := uow.FileRepository()
	blockRepo := uow.BlockRepository()

	var sb strings.Builder
	for _, fileId := range s.TargetFileIds {
		blocks, err := blockRepo.FindByFileId(ctx, fileId)
		if err != nil {
			f.logger.Printf("[WARN] Block fetch failed for file %s: %v", fileId, err)
			continue
		}

		name := fileId.String()
		if file, err := fileRepo.FindOne(ctx, specification.ByID{ID: fileId}); err == nil && file != nil {
			name = file.Name
		}

		sb.WriteString(fmt.Sprintf("=== File: %s (%s) ===\n", name, fileId))
		for _, block := range blocks {
			sb.WriteString(lexical.Flatten(block.Content))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return state.Patch{FetchedContext: state.String(f.truncate(sb.String()))}
}

// semanticFallback embeds the query and pulls the top-K most similar
// chunks, optionally scoped to the file the cursor is in.
func (f *ContentFetcher) semanticFallback(ctx context.Context, s state.State) state.Patch {
	empty := state.String("")

	resp, err := f.embeddingProvider.Generate(s.UserMessage, "RETRIEVAL_QUERY")
	if err != nil || resp == nil {
		f.logger.Printf("[WARN] Query embedding failed, degrading to empty context: %v", err)
		return state.Patch{FetchedContext: empty}
	}

	uow := f.factory.NewUnitOfWork(ctx)
	hits, err := uow.BlockEmbeddingRepository().SearchSimilar(ctx, resp.Embedding.Values, semanticTopK, s.UserId, s.CurrentFileId)
	if err != nil {
		f.logger.Printf("[WARN] Similarity search failed, degrading to empty context: %v", err)
		return state.Patch{FetchedContext: empty}
	}
	if len(hits) == 0 {
		return state.Patch{FetchedContext: empty}
	}

	var sb strings.Builder
	for _, hit := range hits {
		sb.WriteString(fmt.Sprintf("=== File: %s (%s) ===\n", hit.FileName, hit.FileId))
		sb.WriteString(hit.Embedding.Document)
		sb.WriteString("\n\n")
	}

	f.logger.Printf("[CONTEXT] Semantic fallback supplied %d chunk(s)", len(hits))
	return state.Patch{FetchedContext: state.String(f.truncate(sb.String()))}
}

func (f *ContentFetcher) truncate(text string) string {
	if len(text) <= f.charBudget {
		return text
	}
	return text[:f.charBudget]
}
