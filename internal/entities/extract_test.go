package entities

import (
	"context"
	"testing"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func optimized(chunks ...string) *models.OptimizedContent {
	out := &models.OptimizedContent{}
	for i, text := range chunks {
		out.Chunks = append(out.Chunks, models.Chunk{ChunkIndex: i, Text: text})
	}
	return out
}

func findEntity(ents []models.Entity, canonical string) *models.Entity {
	for i := range ents {
		if ents[i].Canonical == canonical {
			return &ents[i]
		}
	}
	return nil
}

func TestExtractRecognizesCoreTypes(t *testing.T) {
	ex := New(zerolog.Nop())
	out, err := ex.Extract(context.Background(), optimized(
		"Dr. Jane Smith joined Acme Corp in Berlin on 2023-05-01. Contact her at jane@acme.example.",
	))
	require.NoError(t, err)

	jane := findEntity(out.Entities, "jane smith")
	require.NotNil(t, jane)
	require.Equal(t, "person", jane.Type)

	acme := findEntity(out.Entities, "acme corp")
	require.NotNil(t, acme)
	require.Equal(t, "organization", acme.Type)

	berlin := findEntity(out.Entities, "berlin")
	require.NotNil(t, berlin)
	require.Equal(t, "location", berlin.Type)

	date := findEntity(out.Entities, "2023-05-01")
	require.NotNil(t, date)
	require.Equal(t, "date", date.Type)

	for _, e := range out.Entities {
		require.GreaterOrEqual(t, e.Confidence, 0.0)
		require.LessOrEqual(t, e.Confidence, 1.0)
	}
}

func TestExtractDeduplicatesAcrossChunks(t *testing.T) {
	ex := New(zerolog.Nop())
	out, err := ex.Extract(context.Background(), optimized(
		"Work by Dr. Ada Lovelace was early.",
		"Later chapters revisit Dr. Ada  Lovelace in detail.",
	))
	require.NoError(t, err)

	ada := findEntity(out.Entities, "ada lovelace")
	require.NotNil(t, ada)
	require.Equal(t, 2, ada.Mentions)
	count := 0
	for _, e := range out.Entities {
		if e.Canonical == "ada lovelace" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestExtractRelationshipsNeedTwoEntities(t *testing.T) {
	ex := New(zerolog.Nop())
	out, err := ex.Extract(context.Background(), optimized(
		"Dr. John Brown works for Initech Inc near London.",
	))
	require.NoError(t, err)
	require.NotEmpty(t, out.Relationships)
	for _, rel := range out.Relationships {
		require.NotNil(t, findEntity(out.Entities, rel.Source), "relationship source must resolve")
		require.NotNil(t, findEntity(out.Entities, rel.Target), "relationship target must resolve")
		require.GreaterOrEqual(t, rel.Confidence, 0.0)
		require.LessOrEqual(t, rel.Confidence, 1.0)
		require.NotEmpty(t, rel.Context)
	}
}

func TestExtractAffiliationType(t *testing.T) {
	ex := New(zerolog.Nop())
	out, err := ex.Extract(context.Background(), optimized(
		"Dr. Mary Jones leads research at Globex Corp today.",
	))
	require.NoError(t, err)

	found := false
	for _, rel := range out.Relationships {
		if rel.Type == "AFFILIATED_WITH" {
			found = true
		}
	}
	require.True(t, found, "person+organization in one sentence should be AFFILIATED_WITH, got %+v", out.Relationships)
}

func TestExtractEmptyChunksIsEmptyNotError(t *testing.T) {
	ex := New(zerolog.Nop())
	out, err := ex.Extract(context.Background(), optimized())
	require.NoError(t, err)
	require.Empty(t, out.Entities)
	require.Empty(t, out.Relationships)

	out, err = ex.Extract(context.Background(), optimized("nothing lowercase here to find 123"))
	require.NoError(t, err)
	require.Empty(t, out.Entities)
}

func TestExtractNilInput(t *testing.T) {
	ex := New(zerolog.Nop())
	_, err := ex.Extract(context.Background(), nil)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
}

func TestCanonicalName(t *testing.T) {
	require.Equal(t, "jane smith", CanonicalName("  Jane   Smith."))
	require.Equal(t, "acme corp", CanonicalName("ACME_Corp"))
	require.Equal(t, "", CanonicalName("   "))
}

func TestExtractionConfidence(t *testing.T) {
	score, err := ExtractionConfidence([]models.Entity{{Confidence: 0.8}, {Confidence: 0.6}})
	require.NoError(t, err)
	require.InDelta(t, 0.7, score, 1e-9)

	_, err = ExtractionConfidence(nil)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
}
