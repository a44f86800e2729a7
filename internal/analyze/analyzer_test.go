package analyze

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docforge/internal/fault"
	"docforge/internal/pdftest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newAnalyzer() *Analyzer {
	return New(zerolog.Nop())
}

func TestAnalyzeValidSinglePage(t *testing.T) {
	dir := t.TempDir()
	path := pdftest.WriteFile(t, dir, "hello.pdf", pdftest.Page{Text: "Hello"})

	an, err := newAnalyzer().Analyze(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, an.PageCount)
	require.Len(t, an.FileHash, 64)
	require.True(t, filepath.IsAbs(an.Path))
	require.Greater(t, an.FileSize, int64(0))
	require.False(t, an.AnalyzedAt.IsZero())
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := pdftest.WriteFile(t, dir, "same.pdf", pdftest.Page{Text: "Same"})

	first, err := newAnalyzer().Analyze(context.Background(), path)
	require.NoError(t, err)
	second, err := newAnalyzer().Analyze(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, first.FileHash, second.FileHash)
	require.Equal(t, first.PageCount, second.PageCount)
	require.Equal(t, first.FileSize, second.FileSize)
}

func TestAnalyzeMissingFile(t *testing.T) {
	_, err := newAnalyzer().Analyze(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	require.Equal(t, fault.NotFound, fault.KindOf(err))
}

func TestAnalyzeEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := newAnalyzer().Analyze(context.Background(), path)
	require.Error(t, err)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
	require.Contains(t, err.Error(), "empty file")
}

func TestAnalyzeNotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	_, err := newAnalyzer().Analyze(context.Background(), path)
	require.Error(t, err)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
	require.Contains(t, err.Error(), "invalid format")
}

func TestAnalyzeResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := pdftest.WriteFile(t, dir, "real.pdf", pdftest.Page{Text: "Linked"})
	link := filepath.Join(dir, "link.pdf")
	require.NoError(t, os.Symlink(real, link))

	an, err := newAnalyzer().Analyze(context.Background(), link)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)
	require.Equal(t, resolved, an.Path)
}

func TestAnalyzeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAnalyzer().Analyze(ctx, "whatever.pdf")
	require.Equal(t, fault.Timeout, fault.KindOf(err))
}
