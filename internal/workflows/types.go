package workflows

type CorpusIngestInput struct {
	RunID                 string            `json:"run_id"`
	InputDir              string            `json:"input_dir"`
	MaxConcurrentChildren int               `json:"max_concurrent_children"`
	Metadata              map[string]string `json:"metadata,omitempty"`
}

type DocumentProcessInput struct {
	Path     string            `json:"path"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type DocumentStatus struct {
	Path        string            `json:"path"`
	DocumentID  string            `json:"document_id,omitempty"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	Steps       map[string]string `json:"steps"`
}

type CorpusIngestProgress struct {
	RunID         string            `json:"run_id"`
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	PerDocument   map[string]string `json:"per_document_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}
