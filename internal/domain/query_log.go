package domain

import "time"

// QueryLog records one question asked against a pipeline.
type QueryLog struct {
	ID         string
	Pipeline   string
	UserID     string
	Question   string
	Embedding  []float32
	Rows       []int
	Status     AnswerStatus
	DurationMs int
	CreatedAt  time.Time
}
