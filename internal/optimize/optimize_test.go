package optimize

import (
	"context"
	"strings"
	"testing"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func page(n int, blocks ...models.TextBlock) models.PageContent {
	return models.PageContent{PageNumber: n, TextBlocks: blocks}
}

func native(text string) models.TextBlock {
	return models.TextBlock{Content: text, Source: "native"}
}

func TestOptimizeMergesNativeAndOCR(t *testing.T) {
	o := New(zerolog.Nop(), 1200, 0)
	decomposed := &models.DecomposedContent{
		Pages: []models.PageContent{page(1, native("Printed paragraph."))},
	}
	ocr := map[int][]models.OCRResult{
		1: {{Text: "Scanned caption.", Confidence: 0.8, Engine: "mock"}},
	}

	out, err := o.Optimize(context.Background(), decomposed, ocr)
	require.NoError(t, err)
	require.Len(t, out.Chunks, 1)
	require.Contains(t, out.Chunks[0].Text, "Printed paragraph.")
	require.Contains(t, out.Chunks[0].Text, "Scanned caption.")
	require.Equal(t, 1, out.Chunks[0].PageStart)
	require.Equal(t, 1, out.Chunks[0].PageEnd)
}

func TestOptimizeChunkIDsAreDeterministic(t *testing.T) {
	o := New(zerolog.Nop(), 1200, 0)
	decomposed := &models.DecomposedContent{Pages: []models.PageContent{page(1, native("Stable content."))}}

	a, err := o.Optimize(context.Background(), decomposed, nil)
	require.NoError(t, err)
	b, err := o.Optimize(context.Background(), decomposed, nil)
	require.NoError(t, err)
	require.Equal(t, a.Chunks[0].ChunkID, b.Chunks[0].ChunkID)
}

func TestOptimizeRespectsChunkBand(t *testing.T) {
	long := strings.Repeat("One more plain sentence about the subject. ", 80)
	o := New(zerolog.Nop(), 500, 50)
	out, err := o.Optimize(context.Background(), &models.DecomposedContent{
		Pages: []models.PageContent{page(1, native(long))},
	}, nil)
	require.NoError(t, err)
	require.Greater(t, len(out.Chunks), 1)
	for i, c := range out.Chunks {
		require.LessOrEqual(t, len([]rune(c.Text)), 500, "chunk %d too large", i)
		require.Equal(t, i, c.ChunkIndex)
	}
}

func TestOptimizeChunkBandHoldsWithOverlap(t *testing.T) {
	// Multi-paragraph text with an overlap configured; the carried context
	// must not push any chunk past the configured size.
	paras := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		paras = append(paras, strings.Repeat("another plain phrase ", 14))
	}
	o := New(zerolog.Nop(), 320, 40)
	out, err := o.Optimize(context.Background(), &models.DecomposedContent{
		Pages: []models.PageContent{page(1, native(strings.Join(paras, "\n\n")))},
	}, nil)
	require.NoError(t, err)
	require.Greater(t, len(out.Chunks), 1)
	for i, c := range out.Chunks {
		require.LessOrEqual(t, len([]rune(c.Text)), 320, "chunk %d too large", i)
	}
}

func TestOptimizeEmptyDocument(t *testing.T) {
	o := New(zerolog.Nop(), 1200, 0)
	out, err := o.Optimize(context.Background(), &models.DecomposedContent{
		Pages: []models.PageContent{{PageNumber: 1}},
	}, nil)
	require.NoError(t, err)
	require.Empty(t, out.Chunks)
	require.Equal(t, "Document contains no extractable text.", out.Summary)
}

func TestOptimizeNilContent(t *testing.T) {
	o := New(zerolog.Nop(), 1200, 0)
	_, err := o.Optimize(context.Background(), nil, nil)
	require.Error(t, err)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
}

func TestSummarizeTakesLeadingSentences(t *testing.T) {
	text := "First point made. Second point follows. Third one here. Fourth is ignored entirely."
	s := summarize(text)
	require.Contains(t, s, "First point made.")
	require.NotContains(t, s, "Fourth")
}

func TestKeyTerms(t *testing.T) {
	text := "Acme built Acme Reactor with Oxford. The Reactor used Acme parts."
	terms := keyTerms(text, 3)
	require.NotEmpty(t, terms)
	require.Equal(t, "Acme", terms[0])
	require.Contains(t, terms, "Reactor")
}

func TestTextExtractionQuality(t *testing.T) {
	q, err := TextExtractionQuality(&models.DecomposedContent{Pages: []models.PageContent{
		page(1, native("text")),
		{PageNumber: 2},
	}})
	require.NoError(t, err)
	require.InDelta(t, 0.5, q, 1e-9)

	_, err = TextExtractionQuality(&models.DecomposedContent{})
	require.Error(t, err)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
}
