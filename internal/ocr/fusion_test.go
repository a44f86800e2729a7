package ocr

import (
	"context"
	"testing"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name       string
	confidence float64
	err        error
}

func (f fakeBackend) Name() string { return f.name }

func (f fakeBackend) Recognize(_ context.Context, img models.ImageRef) (models.OCRResult, error) {
	if f.err != nil {
		return models.OCRResult{}, f.err
	}
	return models.OCRResult{
		Text:       "text from " + f.name,
		Confidence: f.confidence,
		Engine:     f.name,
		ImageName:  img.Name,
	}, nil
}

func pageWithImages(n int, names ...string) models.PageContent {
	page := models.PageContent{PageNumber: n}
	for _, name := range names {
		page.Images = append(page.Images, models.ImageRef{Name: name, Width: 10, Height: 10, Data: []byte(name)})
	}
	return page
}

func TestFusionKeepsHighestConfidence(t *testing.T) {
	f := NewFusion([]Backend{
		fakeBackend{name: "weak", confidence: 0.4},
		fakeBackend{name: "strong", confidence: 0.9},
	}, zerolog.Nop(), 0)

	results, err := f.Run(context.Background(), &models.DecomposedContent{
		Pages: []models.PageContent{pageWithImages(1, "img-a")},
	})
	require.NoError(t, err)
	require.Len(t, results[1], 1)
	require.Equal(t, "strong", results[1][0].Engine)
	require.Equal(t, 0.9, results[1][0].Confidence)
}

func TestFusionNoImagesIsEmptyNotError(t *testing.T) {
	f := NewFusion([]Backend{NewMockBackend()}, zerolog.Nop(), 0)
	results, err := f.Run(context.Background(), &models.DecomposedContent{
		Pages: []models.PageContent{{PageNumber: 1}},
	})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestFusionOneBackendFailingDoesNotAbort(t *testing.T) {
	f := NewFusion([]Backend{
		fakeBackend{name: "broken", err: fault.New(fault.Internal, "engine crash")},
		fakeBackend{name: "ok", confidence: 0.7},
	}, zerolog.Nop(), 0)

	results, err := f.Run(context.Background(), &models.DecomposedContent{
		Pages: []models.PageContent{pageWithImages(1, "a", "b")},
	})
	require.NoError(t, err)
	require.Len(t, results[1], 2)
	for _, r := range results[1] {
		require.Equal(t, "ok", r.Engine)
	}
}

func TestFusionSystemicOutage(t *testing.T) {
	f := NewFusion([]Backend{
		fakeBackend{name: "down", err: fault.New(fault.Unavailable, "no route")},
	}, zerolog.Nop(), 0)

	_, err := f.Run(context.Background(), &models.DecomposedContent{
		Pages: []models.PageContent{pageWithImages(1, "a")},
	})
	require.Error(t, err)
	require.Equal(t, fault.Unavailable, fault.KindOf(err))
}

func TestFusionOversizedImage(t *testing.T) {
	f := NewFusion([]Backend{NewMockBackend()}, zerolog.Nop(), 50)
	_, err := f.Run(context.Background(), &models.DecomposedContent{
		Pages: []models.PageContent{pageWithImages(1, "huge")},
	})
	require.Error(t, err)
	require.Equal(t, fault.OutOfMemory, fault.KindOf(err))
}

func TestMockBackendIsDeterministic(t *testing.T) {
	m := NewMockBackend()
	img := models.ImageRef{Name: "x", Data: []byte{1, 2, 3}}
	a, err := m.Recognize(context.Background(), img)
	require.NoError(t, err)
	b, err := m.Recognize(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a.Confidence, 0.0)
	require.LessOrEqual(t, a.Confidence, 1.0)
}

func TestDocumentConfidence(t *testing.T) {
	score, err := DocumentConfidence(map[int][]models.OCRResult{
		1: {{Confidence: 0.5}, {Confidence: 0.9}},
	})
	require.NoError(t, err)
	require.InDelta(t, 0.7, score, 1e-9)

	_, err = DocumentConfidence(map[int][]models.OCRResult{})
	require.Error(t, err)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
}
