// Package pipeline sequences the ten document-processing stages and owns the
// per-document state between them. Stages run strictly in order within one
// document; independent documents can run concurrently because the only
// shared mutable collaborators (the content store and the knowledge graph)
// serialize their own mutation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"docforge/internal/analyze"
	"docforge/internal/cas"
	"docforge/internal/config"
	"docforge/internal/decompose"
	"docforge/internal/embed"
	"docforge/internal/entities"
	"docforge/internal/fault"
	"docforge/internal/kg"
	"docforge/internal/models"
	"docforge/internal/monitor"
	"docforge/internal/ocr"
	"docforge/internal/optimize"
	"docforge/internal/query"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const Version = "1.0.0"

// StageNames lists the ten stages in execution order.
var StageNames = []string{
	"validate",
	"decompose",
	"cas_build",
	"ocr",
	"optimize",
	"extract",
	"embed",
	"kg_integrate",
	"cross_document",
	"query_interface",
}

// ChunkSink receives chunk text and vectors once a document id exists.
// Durable deployments point this at the chunks table; nil skips persistence.
type ChunkSink interface {
	PersistChunks(ctx context.Context, documentID string, chunks []models.Chunk, embeddings *models.EmbeddingSet) error
}

// Deps are the injected collaborators. Monitor and Chunks may be nil; a nil
// Audit falls back to logging access events through the pipeline logger.
type Deps struct {
	Store        cas.Store
	OCRBackends  []ocr.Backend
	EmbedBackend embed.Backend
	Graph        *kg.Graph
	Chunks       ChunkSink
	Monitor      monitor.Monitor
	Audit        monitor.AuditLogger
	Logger       zerolog.Logger
}

type Pipeline struct {
	cfg        config.Config
	mu         sync.Mutex
	handles    map[string]*query.Handle
	analyzer   *analyze.Analyzer
	decomposer *decompose.Decomposer
	builder    *cas.Builder
	fusion     *ocr.Fusion
	optimizer  *optimize.Optimizer
	extractor  *entities.Extractor
	generator  *embed.Generator
	graph      *kg.Graph
	store      cas.Store
	chunks     ChunkSink
	mon        monitor.Monitor
	audit      monitor.AuditLogger
	log        zerolog.Logger
}

func New(cfg config.Config, deps Deps) *Pipeline {
	log := deps.Logger
	store := deps.Store
	if store == nil {
		store = cas.NewMemoryStore()
	}
	graph := deps.Graph
	if graph == nil {
		graph = kg.NewGraph(log, nil)
	}
	backend := deps.EmbedBackend
	if backend == nil {
		backend = embed.NewMockBackend(cfg.EmbedDim)
	}
	audit := deps.Audit
	if audit == nil {
		audit = monitor.NewZerologAudit(log)
	}
	return &Pipeline{
		cfg:        cfg,
		handles:    map[string]*query.Handle{},
		analyzer:   analyze.New(log),
		decomposer: decompose.New(log, cfg.MaxImagePixels),
		builder:    cas.NewBuilder(store, log),
		fusion:     ocr.NewFusion(deps.OCRBackends, log, cfg.MaxImagePixels),
		optimizer:  optimize.New(log, cfg.ChunkSize, cfg.ChunkOverlap),
		extractor:  entities.New(log),
		generator:  embed.NewGenerator(backend, cfg.EmbedDim, log),
		graph:      graph,
		store:      store,
		chunks:     deps.Chunks,
		mon:        monitor.OrNoop(deps.Monitor),
		audit:      audit,
		log:        log,
	}
}

// Graph exposes the shared corpus graph, mainly for query surfaces.
func (p *Pipeline) Graph() *kg.Graph { return p.graph }

// Store exposes the shared content store.
func (p *Pipeline) Store() cas.Store { return p.store }

// QueryHandle returns the query surface built for a processed document.
// The second return is false when the document id is unknown.
func (p *Pipeline) QueryHandle(documentID string) (*query.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[documentID]
	return h, ok
}

// stats is the orchestrator-owned counter set, reset per document.
type stats struct {
	started           time.Time
	finished          time.Time
	pagesProcessed    int
	entitiesExtracted int
}

// Process runs all ten stages over one document. Caller metadata merges into
// extracted metadata without overwriting it. Any stage error aborts the run
// and propagates to the caller with its kind intact.
func (p *Pipeline) Process(ctx context.Context, path string, callerMeta map[string]string) (*models.ProcessingResult, error) {
	if p.cfg.PipelineTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.PipelineTimeoutSecs)*time.Second)
		defer cancel()
	}

	st := stats{started: time.Now()}
	op := p.mon.StartOperation("process_document", map[string]string{"path": path})
	result, err := p.run(ctx, path, callerMeta, &st)
	p.mon.CompleteOperation(op, err == nil, err)
	if p.audit != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		p.audit.LogDocumentAccess(path, "pipeline", outcome)
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, path string, callerMeta map[string]string, st *stats) (*models.ProcessingResult, error) {
	completed := make([]string, 0, len(StageNames))
	stage := func(name string) func(error) error {
		op := p.mon.StartOperation("stage_"+name, nil)
		return func(err error) error {
			p.mon.CompleteOperation(op, err == nil, err)
			if err == nil {
				completed = append(completed, name)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil && !fault.IsKind(err, fault.Timeout) {
				return fault.Wrap(fault.Timeout, err, "stage %s aborted by deadline", name)
			}
			return err
		}
	}

	done := stage("validate")
	analysis, err := p.analyzer.Analyze(ctx, path)
	if err = done(err); err != nil {
		return nil, err
	}

	done = stage("decompose")
	decomposed, err := p.decomposer.Decompose(ctx, analysis.Path)
	if err = done(err); err != nil {
		return nil, err
	}
	st.pagesProcessed = len(decomposed.Pages)
	mergeMetadata(decomposed.Metadata, callerMeta)

	done = stage("cas_build")
	casGraph, err := p.builder.Build(ctx, decomposed)
	if err = done(err); err != nil {
		return nil, err
	}

	done = stage("ocr")
	ocrResults, err := p.fusion.Run(ctx, decomposed)
	if err = done(err); err != nil {
		return nil, err
	}

	done = stage("optimize")
	optimized, err := p.optimizer.Optimize(ctx, decomposed, ocrResults)
	if err = done(err); err != nil {
		return nil, err
	}

	done = stage("extract")
	extraction, err := p.extractor.Extract(ctx, optimized)
	if err = done(err); err != nil {
		return nil, err
	}
	st.entitiesExtracted = len(extraction.Entities)

	done = stage("embed")
	embeddings, err := p.generator.Generate(ctx, optimized)
	if err = done(err); err != nil {
		return nil, err
	}

	documentID := uuid.NewString()

	done = stage("kg_integrate")
	node, err := p.graph.Integrate(ctx, documentID, casGraph.RootCID, extraction, embeddings)
	if err = done(err); err != nil {
		return nil, err
	}

	if p.chunks != nil {
		if err := p.chunks.PersistChunks(ctx, documentID, optimized.Chunks, embeddings); err != nil {
			return nil, fault.Wrap(fault.Unavailable, err, "persist chunks for %s", documentID)
		}
	}

	done = stage("cross_document")
	crossRelations, err := p.graph.CrossDocumentRelations(ctx, node)
	if err = done(err); err != nil {
		return nil, err
	}

	done = stage("query_interface")
	handle, err := query.Setup(node, p.graph, p.store, optimized, casGraph, embeddings)
	if err = done(err); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.handles[documentID] = handle
	p.mu.Unlock()

	st.finished = time.Now()
	p.mon.RecordMetric("pages_processed", float64(st.pagesProcessed), monitor.Counter, nil)
	p.mon.RecordMetric("entities_extracted", float64(st.entitiesExtracted), monitor.Counter, nil)

	result := &models.ProcessingResult{
		Status:             "success",
		DocumentID:         documentID,
		RootCID:            casGraph.RootCID,
		PageCount:          st.pagesProcessed,
		ChunkCount:         len(optimized.Chunks),
		EntityCount:        len(extraction.Entities),
		RelationshipCount:  len(extraction.Relationships),
		CrossDocumentCount: len(crossRelations),
		Metadata: models.ProcessingMetadata{
			PipelineVersion: Version,
			ElapsedMS:       st.finished.Sub(st.started).Milliseconds(),
			StagesCompleted: completed,
			QualityScores:   qualityScores(decomposed, ocrResults, extraction.Entities),
		},
	}
	p.log.Info().
		Str("document_id", result.DocumentID).
		Str("root_cid", result.RootCID).
		Int("pages", result.PageCount).
		Int("entities", result.EntityCount).
		Int64("elapsed_ms", result.Metadata.ElapsedMS).
		Msg("document processed")
	return result, nil
}

// mergeMetadata copies caller-supplied keys that extraction did not already
// provide; extracted values always win.
func mergeMetadata(extracted map[string]string, caller map[string]string) {
	for k, v := range caller {
		if _, exists := extracted[k]; !exists {
			extracted[k] = v
		}
	}
}

// qualityScores collects the stage quality statistics that are defined for
// this document. A score whose input statistics are absent is omitted, never
// silently clamped to a value.
func qualityScores(decomposed *models.DecomposedContent, ocrResults map[int][]models.OCRResult, ents []models.Entity) map[string]float64 {
	scores := map[string]float64{}
	if q, err := optimize.TextExtractionQuality(decomposed); err == nil {
		scores["text_extraction_quality"] = q
	}
	if q, err := ocr.DocumentConfidence(ocrResults); err == nil {
		scores["ocr_confidence"] = q
	}
	if q, err := entities.ExtractionConfidence(ents); err == nil {
		scores["entity_extraction_confidence"] = q
	}
	if len(scores) > 0 {
		total := 0.0
		for _, v := range scores {
			total += v
		}
		scores["overall_quality"] = total / float64(len(scores))
	}
	return scores
}
