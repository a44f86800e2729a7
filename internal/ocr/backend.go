// Package ocr runs one or more character-recognition backends over embedded
// images and fuses their results into a single confidence-scored text per
// image. Backends report confidence on a shared 0.0-1.0 scale so results are
// comparable across engines.
package ocr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docforge/internal/fault"
	"docforge/internal/models"
)

type Backend interface {
	Name() string
	Recognize(ctx context.Context, img models.ImageRef) (models.OCRResult, error)
}

// MockBackend is the deterministic test double: the recognized text and
// confidence are pure functions of the image bytes.
type MockBackend struct {
	name string
}

func NewMockBackend() *MockBackend { return &MockBackend{name: "mock"} }

func (m *MockBackend) Name() string { return m.name }

func (m *MockBackend) Recognize(_ context.Context, img models.ImageRef) (models.OCRResult, error) {
	seed := img.Data
	if len(seed) == 0 {
		seed = []byte(img.Name)
	}
	sum := sha256.Sum256(seed)
	return models.OCRResult{
		Text:       fmt.Sprintf("ocr-%x", sum[:6]),
		Confidence: 0.55 + float64(sum[0])/255.0*0.4,
		Engine:     m.name,
		ImageName:  img.Name,
	}, nil
}

// HTTPBackend talks to an OCR service (tesseract-server style) over JSON.
type HTTPBackend struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewHTTPBackend(name, baseURL string) *HTTPBackend {
	return &HTTPBackend{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (b *HTTPBackend) Name() string { return b.name }

func (b *HTTPBackend) Recognize(ctx context.Context, img models.ImageRef) (models.OCRResult, error) {
	payload, _ := json.Marshal(map[string]any{
		"image":  base64.StdEncoding.EncodeToString(img.Data),
		"width":  img.Width,
		"height": img.Height,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/ocr", bytes.NewReader(payload))
	if err != nil {
		return models.OCRResult{}, fault.Wrap(fault.Internal, err, "build ocr request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return models.OCRResult{}, fault.Wrap(fault.Unavailable, err, "ocr backend %s", b.name)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return models.OCRResult{}, fault.New(fault.Unavailable, "ocr backend %s: status %d: %s", b.name, resp.StatusCode, body)
	}
	if resp.StatusCode >= 400 {
		return models.OCRResult{}, fault.New(fault.Internal, "ocr backend %s: status %d: %s", b.name, resp.StatusCode, body)
	}
	var parsed struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Words      []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
			X0         float64 `json:"x0"`
			Y0         float64 `json:"y0"`
			X1         float64 `json:"x1"`
			Y1         float64 `json:"y1"`
		} `json:"words"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.OCRResult{}, fault.Wrap(fault.Internal, err, "decode ocr response from %s", b.name)
	}
	result := models.OCRResult{
		Text:       parsed.Text,
		Confidence: clamp01(parsed.Confidence),
		Engine:     b.name,
		ImageName:  img.Name,
	}
	for _, w := range parsed.Words {
		result.Words = append(result.Words, models.OCRWord{
			Text:       w.Text,
			Confidence: clamp01(w.Confidence),
			BBox:       models.BBox{X0: w.X0, Y0: w.Y0, X1: w.X1, Y1: w.Y1},
		})
	}
	return result, nil
}

// FromSpec builds backends from a comma-separated list like "mock" or
// "mock,tesseract". Unknown names become HTTP backends against baseURL.
func FromSpec(spec, baseURL string) []Backend {
	out := make([]Backend, 0, 2)
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
		case name == "mock":
			out = append(out, NewMockBackend())
		default:
			out = append(out, NewHTTPBackend(name, baseURL))
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
