package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListPDFsActivity)
	w.RegisterActivity(a.ProcessDocumentActivity)
	w.RegisterActivity(a.RecordResultActivity)
	w.RegisterActivity(a.RecordFailureActivity)
	w.RegisterActivity(a.WriteResultArtifactActivity)
	w.RegisterActivity(a.WriteIngestSummaryActivity)
	w.RegisterActivity(a.EmbedQueryActivity)
	w.RegisterActivity(a.SearchChunksActivity)
}
