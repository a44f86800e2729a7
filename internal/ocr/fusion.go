package ocr

import (
	"context"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
)

type Fusion struct {
	backends       []Backend
	log            zerolog.Logger
	maxImagePixels int
}

func NewFusion(backends []Backend, log zerolog.Logger, maxImagePixels int) *Fusion {
	if maxImagePixels <= 0 {
		maxImagePixels = 64_000_000
	}
	return &Fusion{backends: backends, log: log, maxImagePixels: maxImagePixels}
}

// Run recognizes every embedded image with every configured backend and
// keeps the highest-confidence result per image, keyed by page number. A
// document without images yields an empty map. One backend failing on one
// image never aborts the rest; only a backend outage across every attempt
// surfaces as Unavailable.
func (f *Fusion) Run(ctx context.Context, decomposed *models.DecomposedContent) (map[int][]models.OCRResult, error) {
	if decomposed == nil {
		return nil, fault.New(fault.InvalidInput, "nil decomposed content")
	}
	results := map[int][]models.OCRResult{}
	if len(f.backends) == 0 {
		return results, nil
	}

	attempts := 0
	unavailable := 0
	for _, page := range decomposed.Pages {
		for _, img := range page.Images {
			if err := ctx.Err(); err != nil {
				return nil, fault.Wrap(fault.Timeout, err, "ocr page %d", page.PageNumber)
			}
			if img.Width > 0 && img.Height > 0 && img.Width*img.Height > f.maxImagePixels {
				return nil, fault.New(fault.OutOfMemory, "image %s on page %d exceeds pixel limit", img.Name, page.PageNumber)
			}

			var best *models.OCRResult
			for _, backend := range f.backends {
				attempts++
				res, err := backend.Recognize(ctx, img)
				if err != nil {
					if fault.IsKind(err, fault.Unavailable) {
						unavailable++
					}
					f.log.Warn().Err(err).
						Str("engine", backend.Name()).
						Int("page", page.PageNumber).
						Str("image", img.Name).
						Msg("ocr backend failed on image")
					continue
				}
				if best == nil || res.Confidence > best.Confidence {
					r := res
					best = &r
				}
			}
			if best != nil {
				results[page.PageNumber] = append(results[page.PageNumber], *best)
			}
		}
	}

	if attempts > 0 && unavailable == attempts {
		return nil, fault.New(fault.Unavailable, "all %d ocr attempts failed, backends unreachable", attempts)
	}
	return results, nil
}

// DocumentConfidence aggregates per-image confidences into one score.
// It errors when no results exist so absent statistics stay visible instead
// of reading as zero quality.
func DocumentConfidence(results map[int][]models.OCRResult) (float64, error) {
	total := 0.0
	n := 0
	for _, page := range results {
		for _, r := range page {
			total += r.Confidence
			n++
		}
	}
	if n == 0 {
		return 0, fault.New(fault.InvalidInput, "no ocr results to score")
	}
	return total / float64(n), nil
}
