package kg

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func extraction(canonicals ...string) *models.Extraction {
	out := &models.Extraction{}
	for _, c := range canonicals {
		out.Entities = append(out.Entities, models.Entity{Text: c, Canonical: c, Type: "person", Confidence: 0.8, Mentions: 1})
	}
	return out
}

func embeddings(vec ...float32) *models.EmbeddingSet {
	return &models.EmbeddingSet{DocumentVector: vec, Model: "test", Dimension: len(vec)}
}

func TestIntegrateAndLookup(t *testing.T) {
	g := NewGraph(zerolog.Nop(), nil)
	node, err := g.Integrate(context.Background(), "doc-1", "cid-1", extraction("ada lovelace"), embeddings(1, 0))
	require.NoError(t, err)
	require.Equal(t, "doc-1", node.DocumentID)
	require.Equal(t, 1, g.DocumentCount())
	require.Equal(t, []string{"doc-1"}, g.DocumentsWithEntity("ada lovelace"))
}

func TestCrossDocumentSharedEntities(t *testing.T) {
	g := NewGraph(zerolog.Nop(), nil)
	_, err := g.Integrate(context.Background(), "doc-1", "cid-1", extraction("ada lovelace", "charles babbage"), nil)
	require.NoError(t, err)
	node, err := g.Integrate(context.Background(), "doc-2", "cid-2", extraction("ada lovelace"), nil)
	require.NoError(t, err)

	rels, err := g.CrossDocumentRelations(context.Background(), node)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, "SHARED_ENTITY", rels[0].Type)
	require.Equal(t, "doc-2", rels[0].SourceDocumentID)
	require.Equal(t, "doc-1", rels[0].TargetDocumentID)
	require.Equal(t, "ada lovelace", rels[0].Detail)
	require.Greater(t, rels[0].Confidence, 0.0)
	require.LessOrEqual(t, rels[0].Confidence, 1.0)
}

func TestCrossDocumentEmbeddingSimilarity(t *testing.T) {
	g := NewGraph(zerolog.Nop(), nil)
	_, err := g.Integrate(context.Background(), "doc-1", "cid-1", extraction(), embeddings(1, 0, 0))
	require.NoError(t, err)
	node, err := g.Integrate(context.Background(), "doc-2", "cid-2", extraction(), embeddings(0.99, 0.01, 0))
	require.NoError(t, err)

	rels, err := g.CrossDocumentRelations(context.Background(), node)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, "SIMILAR_CONTENT", rels[0].Type)
	require.Greater(t, rels[0].Confidence, similarityThreshold)
}

func TestCrossDocumentNoLinks(t *testing.T) {
	g := NewGraph(zerolog.Nop(), nil)
	_, err := g.Integrate(context.Background(), "doc-1", "cid-1", extraction("topic one"), embeddings(1, 0, 0))
	require.NoError(t, err)
	node, err := g.Integrate(context.Background(), "doc-2", "cid-2", extraction("topic two"), embeddings(0, 1, 0))
	require.NoError(t, err)

	rels, err := g.CrossDocumentRelations(context.Background(), node)
	require.NoError(t, err)
	require.Empty(t, rels)
}

func TestReintegrationReplacesFragment(t *testing.T) {
	g := NewGraph(zerolog.Nop(), nil)
	_, err := g.Integrate(context.Background(), "doc-1", "cid-1", extraction("old entity"), nil)
	require.NoError(t, err)
	_, err = g.Integrate(context.Background(), "doc-1", "cid-1", extraction("new entity"), nil)
	require.NoError(t, err)

	require.Empty(t, g.DocumentsWithEntity("old entity"))
	require.Equal(t, []string{"doc-1"}, g.DocumentsWithEntity("new entity"))
	require.Equal(t, 1, g.DocumentCount())
}

func TestConcurrentIntegration(t *testing.T) {
	g := NewGraph(zerolog.Nop(), nil)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docID := fmt.Sprintf("doc-%d", i)
			node, err := g.Integrate(context.Background(), docID, "cid", extraction("shared topic"), nil)
			if err != nil {
				errs <- err
				return
			}
			_, err = g.CrossDocumentRelations(context.Background(), node)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 16, g.DocumentCount())
	require.Len(t, g.DocumentsWithEntity("shared topic"), 16)
}

func TestIntegrateValidation(t *testing.T) {
	g := NewGraph(zerolog.Nop(), nil)
	_, err := g.Integrate(context.Background(), "", "cid", extraction(), nil)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
	_, err = g.Integrate(context.Background(), "doc", "cid", nil, nil)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
}
