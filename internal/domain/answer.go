package domain

// ResultStatus is the outcome reported to callers of the ingestion pipeline.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// IngestResult is the structured outcome of ingesting one source.
type IngestResult struct {
	Status     ResultStatus `json:"status"`
	Message    string       `json:"message"`
	ChunkCount int          `json:"chunk_count"`
}

// Succeeded reports whether the ingestion stored any chunks.
func (r IngestResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// AnswerStatus tells callers which branch of the answer pipeline produced the text.
type AnswerStatus string

const (
	AnswerStatusAnswered  AnswerStatus = "answered"
	AnswerStatusEmpty     AnswerStatus = "empty"
	AnswerStatusNoContext AnswerStatus = "no_context"
	AnswerStatusError     AnswerStatus = "error"
)

// Answer is the structured outcome of a question.
type Answer struct {
	Status  AnswerStatus
	Text    string
	Context []StoreRow
}
