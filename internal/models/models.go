package models

import "time"

// DocumentAnalysis is the validated view of a source PDF before any content
// extraction happens. Immutable once produced.
type DocumentAnalysis struct {
	Path       string    `json:"path"`
	FileSize   int64     `json:"file_size"`
	PageCount  int       `json:"page_count"`
	FileHash   string    `json:"file_hash"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

type TextBlock struct {
	Content string `json:"content"`
	BBox    BBox   `json:"bbox"`
	// Source is "native", "table" or "ocr" depending on which engine produced it.
	Source string `json:"source,omitempty"`
}

type ImageRef struct {
	Name       string `json:"name"`
	BBox       BBox   `json:"bbox"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ColorSpace string `json:"colorspace,omitempty"`
	XRef       int    `json:"xref"`
	Data       []byte `json:"-"`
}

type Annotation struct {
	Type       string     `json:"type"`
	Author     string     `json:"author,omitempty"`
	Content    string     `json:"content,omitempty"`
	CreatedAt  string     `json:"created_at,omitempty"`
	ModifiedAt string     `json:"modified_at,omitempty"`
	Color      []float64  `json:"color,omitempty"`
	BBox       *BBox      `json:"bbox,omitempty"`
}

// Drawing catalogues a vector graphic without rasterizing it.
type Drawing struct {
	Type  string `json:"type"`
	BBox  BBox   `json:"bbox"`
	Items int    `json:"items"`
}

type PageContent struct {
	PageNumber  int          `json:"page_number"` // one-based
	TextBlocks  []TextBlock  `json:"text_blocks"`
	Images      []ImageRef   `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Drawings    []Drawing    `json:"drawings"`
}

type OutlineItem struct {
	Title    string        `json:"title"`
	Page     int           `json:"page,omitempty"`
	Children []OutlineItem `json:"children,omitempty"`
}

type Structure struct {
	Outline []OutlineItem `json:"outline,omitempty"`
}

type DecomposedContent struct {
	Pages     []PageContent     `json:"pages"`
	Metadata  map[string]string `json:"metadata"`
	Structure Structure         `json:"structure"`
	Fonts     []string          `json:"fonts,omitempty"`
}

// ContentAddressedGraph is the stage-3 output: every stored unit is addressed
// by a cid that is a pure function of its content.
type ContentAddressedGraph struct {
	RootCID    string            `json:"root_cid"`
	PageCIDs   []string          `json:"page_cids"`
	ContentMap map[string]string `json:"content_map"`
	Metadata   map[string]string `json:"metadata"`
}

type OCRWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

type OCRResult struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"` // 0.0-1.0, comparable across engines
	Engine     string    `json:"engine"`
	ImageName  string    `json:"image_name,omitempty"`
	Words      []OCRWord `json:"words,omitempty"`
}

type Chunk struct {
	ChunkID    string            `json:"chunk_id"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	PageStart  int               `json:"page_start,omitempty"`
	PageEnd    int               `json:"page_end,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type OptimizedContent struct {
	Chunks      []Chunk  `json:"chunks"`
	Summary     string   `json:"summary"`
	KeyEntities []string `json:"key_entities,omitempty"`
}

type Entity struct {
	Text       string  `json:"text"`
	Canonical  string  `json:"canonical"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	ChunkIndex int     `json:"chunk_index"`
	Mentions   int     `json:"mentions"`
}

type Relationship struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
}

type Extraction struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

type ChunkEmbedding struct {
	ChunkID string    `json:"chunk_id"`
	Text    string    `json:"text"`
	Vector  []float32 `json:"vector"`
}

type EmbeddingSet struct {
	ChunkEmbeddings []ChunkEmbedding `json:"chunk_embeddings"`
	DocumentVector  []float32        `json:"document_vector"`
	Model           string           `json:"model"`
	Dimension       int              `json:"dimension"`
}

// ProcessingMetadata travels with the final result.
type ProcessingMetadata struct {
	PipelineVersion string             `json:"pipeline_version"`
	ElapsedMS       int64              `json:"elapsed_ms"`
	StagesCompleted []string           `json:"stages_completed"`
	QualityScores   map[string]float64 `json:"quality_scores"`
}

type ProcessingResult struct {
	Status             string             `json:"status"`
	DocumentID         string             `json:"document_id"`
	RootCID            string             `json:"root_cid"`
	PageCount          int                `json:"page_count"`
	ChunkCount         int                `json:"chunk_count"`
	EntityCount        int                `json:"entity_count"`
	RelationshipCount  int                `json:"relationship_count"`
	CrossDocumentCount int                `json:"cross_document_count"`
	Metadata           ProcessingMetadata `json:"processing_metadata"`
}

// DocumentRecord is the persisted row for a processed document.
type DocumentRecord struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	RootCID     string    `json:"root_cid"`
	Status      string    `json:"status"`
	PageCount   int       `json:"page_count"`
	EntityCount int       `json:"entity_count"`
	FailReason  string    `json:"fail_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChunkResult is one vector-search hit returned to API callers.
type ChunkResult struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkID    string  `json:"chunk_id"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	ChunkText  string  `json:"chunk_text,omitempty"`
}
