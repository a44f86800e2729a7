// Package query assembles the final stage artifact: a handle exposing a
// processed document's content, entities and graph neighborhood for later
// retrieval. Pure composition over the upstream results.
package query

import (
	"sort"

	"docforge/internal/cas"
	"docforge/internal/embed"
	"docforge/internal/fault"
	"docforge/internal/kg"
	"docforge/internal/models"
)

type Handle struct {
	node      *kg.DocumentNode
	graph     *kg.Graph
	store     cas.Store
	optimized *models.OptimizedContent
	casGraph  *models.ContentAddressedGraph
	embedding *models.EmbeddingSet
}

// Setup builds the query handle. Missing collaborators are configuration
// errors, not data errors.
func Setup(node *kg.DocumentNode, graph *kg.Graph, store cas.Store, optimized *models.OptimizedContent, casGraph *models.ContentAddressedGraph, embedding *models.EmbeddingSet) (*Handle, error) {
	if node == nil || graph == nil {
		return nil, fault.New(fault.Internal, "query handle requires an integrated document node and graph")
	}
	if store == nil {
		return nil, fault.New(fault.Internal, "query handle requires a content store")
	}
	return &Handle{
		node:      node,
		graph:     graph,
		store:     store,
		optimized: optimized,
		casGraph:  casGraph,
		embedding: embedding,
	}, nil
}

func (h *Handle) DocumentID() string { return h.node.DocumentID }
func (h *Handle) RootCID() string    { return h.node.RootCID }

func (h *Handle) Chunks() []models.Chunk {
	if h.optimized == nil {
		return nil
	}
	return h.optimized.Chunks
}

func (h *Handle) Entities() []models.Entity { return h.node.Entities }

func (h *Handle) Relationships() []models.Relationship { return h.node.Relationships }

// ContentCID resolves a logical key ("page:1", "metadata", ...) to its cid.
func (h *Handle) ContentCID(key string) (string, bool) {
	if h.casGraph == nil {
		return "", false
	}
	cid, ok := h.casGraph.ContentMap[key]
	return cid, ok
}

// RelatedDocuments returns other document ids sharing the canonical entity.
func (h *Handle) RelatedDocuments(canonical string) []string {
	out := make([]string, 0, 4)
	for _, id := range h.graph.DocumentsWithEntity(canonical) {
		if id != h.node.DocumentID {
			out = append(out, id)
		}
	}
	return out
}

type ChunkHit struct {
	Chunk models.Chunk
	Score float64
}

// Search ranks this document's chunks against a query vector by cosine
// similarity.
func (h *Handle) Search(queryVec []float32, topK int) []ChunkHit {
	if h.embedding == nil || h.optimized == nil || topK <= 0 {
		return nil
	}
	byID := map[string]models.Chunk{}
	for _, c := range h.optimized.Chunks {
		byID[c.ChunkID] = c
	}
	hits := make([]ChunkHit, 0, len(h.embedding.ChunkEmbeddings))
	for _, ce := range h.embedding.ChunkEmbeddings {
		chunk, ok := byID[ce.ChunkID]
		if !ok {
			continue
		}
		hits = append(hits, ChunkHit{Chunk: chunk, Score: embed.Cosine(queryVec, ce.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
