// Package analyze validates a candidate PDF and captures its size, page
// count and content hash before any extraction work is spent on it.
package analyze

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"docforge/internal/fault"
	"docforge/internal/models"
	"docforge/internal/util"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

type Analyzer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log}
}

// Analyze resolves the path, confirms the file is a readable, non-empty,
// parseable PDF and returns its analysis record. The same unmodified file
// always yields the same hash, size and page count.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*models.DocumentAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.Timeout, err, "analyze %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidInput, err, "resolve path %s", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, fault.Wrap(fault.NotFound, err, "file not found: %s", abs)
		case os.IsPermission(err):
			return nil, fault.Wrap(fault.PermissionDenied, err, "stat %s", abs)
		default:
			return nil, fault.Wrap(fault.Internal, err, "stat %s", abs)
		}
	}
	if info.IsDir() {
		return nil, fault.New(fault.InvalidInput, "not a file: %s", abs)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if info.Size() == 0 {
		return nil, fault.New(fault.InvalidInput, "empty file: %s", abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fault.Wrap(fault.PermissionDenied, err, "open %s", abs)
		}
		return nil, fault.Wrap(fault.Internal, err, "open %s", abs)
	}
	_ = f.Close()

	pageCount, err := pageCount(abs)
	if err != nil {
		return nil, err
	}

	hash, err := util.SHA256HexFile(abs)
	if err != nil {
		return nil, fault.Wrap(fault.Internal, err, "hash %s", abs)
	}

	a.log.Debug().Str("path", abs).Int("pages", pageCount).Int64("bytes", info.Size()).Msg("document analyzed")
	return &models.DocumentAnalysis{
		Path:       abs,
		FileSize:   info.Size(),
		PageCount:  pageCount,
		FileHash:   hash,
		AnalyzedAt: time.Now().UTC(),
	}, nil
}

// pageCount isolates the parser behind a recover so that malformed files
// surface as InvalidInput rather than a panic.
func pageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.New(fault.InvalidInput, "invalid format: %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fault.Wrap(fault.InvalidInput, err, "invalid format: %s", path)
	}
	defer f.Close()
	return r.NumPage(), nil
}
