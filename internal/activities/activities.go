package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docforge/internal/config"
	"docforge/internal/embed"
	"docforge/internal/fault"
	"docforge/internal/models"
	"docforge/internal/pipeline"
	"docforge/internal/storage"
	"docforge/internal/util"
	"docforge/internal/vector"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
)

type Activities struct {
	cfg          config.Config
	pipe         *pipeline.Pipeline
	documentRepo *storage.DocumentRepo
	searcher     *vector.Searcher
	embedder     embed.Backend
}

// New wires the worker-side activity set. db may be nil for in-memory runs;
// the persistence activities then degrade to no-ops.
func New(cfg config.Config, pipe *pipeline.Pipeline, db *storage.DB) *Activities {
	a := &Activities{
		cfg:      cfg,
		pipe:     pipe,
		embedder: embed.FromSpec(cfg.EmbedBackends, cfg.EmbedBaseURL, cfg.EmbedModel, cfg.EmbedDim),
	}
	if db != nil {
		a.documentRepo = storage.NewDocumentRepo(db)
		a.searcher = vector.NewSearcher(db.Pool)
	}
	return a
}

func (a *Activities) ListPDFsActivity(ctx context.Context, in ListPDFsInput) (ListPDFsOutput, error) {
	_ = ctx
	entries, err := os.ReadDir(in.InputDir)
	if err != nil {
		return ListPDFsOutput{}, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(in.InputDir, e.Name()))
		}
	}
	sort.Strings(paths)
	return ListPDFsOutput{Paths: paths}, nil
}

func (a *Activities) ProcessDocumentActivity(ctx context.Context, in ProcessDocumentInput) (ProcessDocumentOutput, error) {
	result, err := a.pipe.Process(ctx, in.Path, in.Metadata)
	if err != nil {
		if !fault.Retryable(err) {
			return ProcessDocumentOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), string(fault.KindOf(err)), err)
		}
		return ProcessDocumentOutput{}, err
	}
	return ProcessDocumentOutput{Result: result}, nil
}

func (a *Activities) RecordResultActivity(ctx context.Context, in RecordResultInput) error {
	if a.documentRepo == nil || in.Result == nil {
		return nil
	}
	return a.documentRepo.UpsertDocument(ctx, models.DocumentRecord{
		DocumentID:  in.Result.DocumentID,
		Filename:    in.Filename,
		RootCID:     in.Result.RootCID,
		Status:      "processed",
		PageCount:   in.Result.PageCount,
		EntityCount: in.Result.EntityCount,
	})
}

func (a *Activities) RecordFailureActivity(ctx context.Context, in RecordFailureInput) error {
	if a.documentRepo == nil {
		return nil
	}
	return a.documentRepo.UpsertDocument(ctx, models.DocumentRecord{
		DocumentID: uuid.NewString(),
		Filename:   in.Filename,
		Status:     "failed",
		FailReason: in.FailReason,
	})
}

func (a *Activities) WriteResultArtifactActivity(ctx context.Context, in WriteResultArtifactInput) (WriteResultArtifactOutput, error) {
	_ = ctx
	if in.Result == nil {
		return WriteResultArtifactOutput{}, fmt.Errorf("nil result artifact")
	}
	path := filepath.Join(a.cfg.DataOutRoot, "documents", in.Result.DocumentID, "result.json")
	if err := util.WriteJSONAtomic(path, in.Result); err != nil {
		return WriteResultArtifactOutput{}, err
	}
	return WriteResultArtifactOutput{Path: path}, nil
}

func (a *Activities) WriteIngestSummaryActivity(ctx context.Context, in WriteIngestSummaryInput) error {
	_ = ctx
	path := filepath.Join(a.cfg.DataOutRoot, "runs", in.RunID, "summary.json")
	return util.WriteJSONAtomic(path, in.Summary)
}

func (a *Activities) EmbedQueryActivity(ctx context.Context, in EmbedQueryInput) (EmbedQueryOutput, error) {
	vectors, info, err := a.embedder.Embed(ctx, []string{in.Text}, a.cfg.EmbedDim)
	if err != nil {
		return EmbedQueryOutput{}, err
	}
	if len(vectors) == 0 {
		return EmbedQueryOutput{}, fmt.Errorf("embedding backend returned no vectors")
	}
	return EmbedQueryOutput{Vector: vectors[0], Model: info.Model}, nil
}

func (a *Activities) SearchChunksActivity(ctx context.Context, in SearchChunksInput) (SearchChunksOutput, error) {
	if a.searcher == nil {
		return SearchChunksOutput{}, fmt.Errorf("search requires a database-backed worker")
	}
	results, err := a.searcher.SearchChunks(ctx, in.QueryVec, in.TopK, vector.SearchFilters{
		DocumentIDs: in.DocumentIDs,
	})
	if err != nil {
		return SearchChunksOutput{}, err
	}
	return SearchChunksOutput{Results: results}, nil
}
