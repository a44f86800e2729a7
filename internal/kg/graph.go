// Package kg maintains the corpus-wide knowledge graph. Each processed
// document contributes a fragment (its entities, relationships and document
// vector); cross-document analysis then links the new document to earlier
// ones through shared canonical entities and embedding similarity. All
// mutation is serialized, so documents can integrate concurrently in any
// order.
package kg

import (
	"context"
	"sort"
	"sync"

	"docforge/internal/embed"
	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
)

// similarityThreshold is the minimum document-vector cosine for a
// SIMILAR_CONTENT relation.
const similarityThreshold = 0.82

type DocumentNode struct {
	DocumentID    string                `json:"document_id"`
	RootCID       string                `json:"root_cid"`
	Entities      []models.Entity       `json:"entities"`
	Relationships []models.Relationship `json:"relationships"`
	Vector        []float32             `json:"vector,omitempty"`
}

// Relation is a discovered cross-document link.
type Relation struct {
	SourceDocumentID string  `json:"source_document_id"`
	TargetDocumentID string  `json:"target_document_id"`
	Type             string  `json:"type"`
	Confidence       float64 `json:"confidence"`
	Detail           string  `json:"detail,omitempty"`
}

// Persister receives graph mutations for durable storage. It may be nil for
// in-process runs; the in-memory graph is authoritative either way.
type Persister interface {
	UpsertDocumentNode(ctx context.Context, node *DocumentNode) error
	UpsertCrossRelation(ctx context.Context, rel Relation) error
}

type Graph struct {
	log     zerolog.Logger
	persist Persister

	mu         sync.RWMutex
	docs       map[string]*DocumentNode
	entityDocs map[string]map[string]struct{} // canonical entity -> document ids
	relations  []Relation
}

func NewGraph(log zerolog.Logger, persist Persister) *Graph {
	return &Graph{
		log:        log,
		persist:    persist,
		docs:       map[string]*DocumentNode{},
		entityDocs: map[string]map[string]struct{}{},
	}
}

// Integrate merges one document's fragment into the corpus graph and returns
// its node. Re-integrating the same document id replaces its fragment; the
// content-addressed root makes that idempotent for identical content.
func (g *Graph) Integrate(ctx context.Context, docID, rootCID string, extraction *models.Extraction, embeddings *models.EmbeddingSet) (*DocumentNode, error) {
	if docID == "" {
		return nil, fault.New(fault.InvalidInput, "empty document id")
	}
	if extraction == nil {
		return nil, fault.New(fault.InvalidInput, "nil extraction for document %s", docID)
	}
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.Timeout, err, "integrate document %s", docID)
	}

	node := &DocumentNode{
		DocumentID:    docID,
		RootCID:       rootCID,
		Entities:      extraction.Entities,
		Relationships: extraction.Relationships,
	}
	if embeddings != nil {
		node.Vector = embeddings.DocumentVector
	}

	g.mu.Lock()
	if old, ok := g.docs[docID]; ok {
		for _, e := range old.Entities {
			delete(g.entityDocs[e.Canonical], docID)
		}
	}
	g.docs[docID] = node
	for _, e := range node.Entities {
		set, ok := g.entityDocs[e.Canonical]
		if !ok {
			set = map[string]struct{}{}
			g.entityDocs[e.Canonical] = set
		}
		set[docID] = struct{}{}
	}
	g.mu.Unlock()

	if g.persist != nil {
		if err := g.persist.UpsertDocumentNode(ctx, node); err != nil {
			return nil, fault.Wrap(fault.Unavailable, err, "persist document node %s", docID)
		}
	}
	g.log.Debug().Str("document_id", docID).Int("entities", len(node.Entities)).Msg("document integrated into knowledge graph")
	return node, nil
}

// CrossDocumentRelations compares the node against every other integrated
// document. Results are deterministic for a given corpus state regardless of
// integration order: shared canonical entities and document-vector
// similarity are both symmetric.
func (g *Graph) CrossDocumentRelations(ctx context.Context, node *DocumentNode) ([]Relation, error) {
	if node == nil {
		return nil, fault.New(fault.InvalidInput, "nil document node")
	}
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.Timeout, err, "cross-document analysis for %s", node.DocumentID)
	}

	own := map[string]struct{}{}
	for _, e := range node.Entities {
		own[e.Canonical] = struct{}{}
	}

	g.mu.RLock()
	others := make([]*DocumentNode, 0, len(g.docs))
	for id, other := range g.docs {
		if id != node.DocumentID {
			others = append(others, other)
		}
	}
	g.mu.RUnlock()
	sort.Slice(others, func(i, j int) bool { return others[i].DocumentID < others[j].DocumentID })

	relations := make([]Relation, 0, 4)
	for _, other := range others {
		shared := make([]string, 0, 4)
		for _, e := range other.Entities {
			if _, ok := own[e.Canonical]; ok {
				shared = append(shared, e.Canonical)
			}
		}
		if len(shared) > 0 {
			sort.Strings(shared)
			conf := float64(len(shared)) / float64(len(shared)+3)
			relations = append(relations, Relation{
				SourceDocumentID: node.DocumentID,
				TargetDocumentID: other.DocumentID,
				Type:             "SHARED_ENTITY",
				Confidence:       conf,
				Detail:           shared[0],
			})
		}
		if sim := embed.Cosine(node.Vector, other.Vector); sim >= similarityThreshold {
			relations = append(relations, Relation{
				SourceDocumentID: node.DocumentID,
				TargetDocumentID: other.DocumentID,
				Type:             "SIMILAR_CONTENT",
				Confidence:       sim,
			})
		}
	}

	g.mu.Lock()
	g.relations = append(g.relations, relations...)
	g.mu.Unlock()

	if g.persist != nil {
		for _, rel := range relations {
			if err := g.persist.UpsertCrossRelation(ctx, rel); err != nil {
				return nil, fault.Wrap(fault.Unavailable, err, "persist cross-document relation")
			}
		}
	}
	return relations, nil
}

// Document returns the integrated node for a document id.
func (g *Graph) Document(docID string) (*DocumentNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.docs[docID]
	return node, ok
}

// DocumentsWithEntity lists document ids mentioning the canonical entity.
func (g *Graph) DocumentsWithEntity(canonical string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.entityDocs[canonical]))
	for id := range g.entityDocs[canonical] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) DocumentCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.docs)
}
