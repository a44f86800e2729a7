// Package embed produces fixed-dimensionality vectors for chunks and whole
// documents. The backend is a capability interface so the pipeline can run
// against a production service or the deterministic double interchangeably.
package embed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"docforge/internal/fault"
)

type BackendInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

type Backend interface {
	Embed(ctx context.Context, inputs []string, dim int) ([][]float32, BackendInfo, error)
}

// MockBackend returns sha256-seeded, L2-normalized vectors: stable across
// runs, distinct across inputs.
type MockBackend struct {
	dim int
}

func NewMockBackend(dim int) *MockBackend {
	if dim <= 0 {
		dim = 384
	}
	return &MockBackend{dim: dim}
}

func (m *MockBackend) Embed(_ context.Context, inputs []string, dim int) ([][]float32, BackendInfo, error) {
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(inputs))
	for _, input := range inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, BackendInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim)}, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return Normalize(vec)
}

// Normalize scales v to unit length; the zero vector passes through.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / (math.Sqrt(sum) + 1e-9))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// HTTPBackend calls an embedding service exposing the Ollama embeddings API.
type HTTPBackend struct {
	name    string
	baseURL string
	model   string
	client  *http.Client
}

func NewHTTPBackend(name, baseURL, model string) *HTTPBackend {
	return &HTTPBackend{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (b *HTTPBackend) Embed(ctx context.Context, inputs []string, dim int) ([][]float32, BackendInfo, error) {
	info := BackendInfo{Name: b.name, Model: b.model}
	out := make([][]float32, 0, len(inputs))
	for _, text := range inputs {
		payload, _ := json.Marshal(map[string]any{"model": b.model, "prompt": text})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/embeddings", bytes.NewReader(payload))
		if err != nil {
			return nil, info, fault.Wrap(fault.Internal, err, "build embedding request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return nil, info, fault.Wrap(fault.Unavailable, err, "embedding backend %s", b.name)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 500 {
			return nil, info, fault.New(fault.Unavailable, "embedding backend %s: status %d: %s", b.name, resp.StatusCode, body)
		}
		if resp.StatusCode >= 400 {
			return nil, info, fault.New(fault.Internal, "embedding backend %s: status %d: %s", b.name, resp.StatusCode, body)
		}
		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, info, fault.Wrap(fault.Internal, err, "decode embedding response from %s", b.name)
		}
		if len(parsed.Embedding) == 0 {
			return nil, info, fault.New(fault.Internal, "embedding backend %s returned an empty vector", b.name)
		}
		out = append(out, matchDimension(parsed.Embedding, dim))
	}
	return out, info, nil
}

func matchDimension(v []float32, target int) []float32 {
	if target <= 0 || len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}

// FromSpec builds a backend from a name like "mock" or "ollama".
func FromSpec(spec, baseURL, model string, dim int) Backend {
	switch strings.TrimSpace(spec) {
	case "", "mock":
		return NewMockBackend(dim)
	default:
		return NewHTTPBackend(strings.TrimSpace(spec), baseURL, model)
	}
}
