package activities

import "docforge/internal/models"

type ListPDFsInput struct {
	InputDir string `json:"input_dir"`
}

type ListPDFsOutput struct {
	Paths []string `json:"paths"`
}

type ProcessDocumentInput struct {
	Path     string            `json:"path"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type ProcessDocumentOutput struct {
	Result *models.ProcessingResult `json:"result"`
}

type RecordResultInput struct {
	Filename string                   `json:"filename"`
	Result   *models.ProcessingResult `json:"result"`
}

type RecordFailureInput struct {
	Filename   string `json:"filename"`
	FailReason string `json:"fail_reason"`
}

type WriteResultArtifactInput struct {
	Result *models.ProcessingResult `json:"result"`
}

type WriteResultArtifactOutput struct {
	Path string `json:"path"`
}

type WriteIngestSummaryInput struct {
	RunID   string         `json:"run_id"`
	Summary map[string]any `json:"summary"`
}

type EmbedQueryInput struct {
	Text string `json:"text"`
}

type EmbedQueryOutput struct {
	Vector []float32 `json:"vector"`
	Model  string    `json:"model"`
}

type SearchChunksInput struct {
	QueryVec    []float32 `json:"query_vec"`
	TopK        int       `json:"top_k"`
	DocumentIDs []string  `json:"document_ids,omitempty"`
}

type SearchChunksOutput struct {
	Results []models.ChunkResult `json:"results"`
}
