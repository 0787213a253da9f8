package models

import (
	"time"
)

// Dataset represents an uploaded attributed graph
type Dataset struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	NumNodes   int       `json:"numNodes"`
	NumEdges   int       `json:"numEdges"`
	AttrDim    int       `json:"attrDim"`
	HasLabels  bool      `json:"hasLabels"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// JobStatus represents the lifecycle state of an embedding job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobProgress tracks how far a job has come
type JobProgress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// JobParameters are the embedding training parameters accepted over the API
type JobParameters struct {
	Epochs           int     `json:"epochs"`
	SamplesPerAnchor int     `json:"samplesPerAnchor"`
	LearningRate     float64 `json:"learningRate"`
	MaxHops          int     `json:"maxHops"`
	EmbeddingDim     int     `json:"embeddingDim"`
	Workers          int     `json:"workers"`
	Seed             int64   `json:"seed"`
}

// JobResult summarizes a completed embedding job
type JobResult struct {
	FinalLoss        float64  `json:"finalLoss"`
	Iterations       int      `json:"iterations"`
	EligibleNodes    int      `json:"eligibleNodes"`
	MacroF1          *float64 `json:"macroF1,omitempty"`
	ProcessingTimeMS int64    `json:"processingTimeMs"`
}

// Job represents a background embedding job
type Job struct {
	ID          string        `json:"id"`
	DatasetID   string        `json:"datasetId"`
	Parameters  JobParameters `json:"parameters"`
	Status      JobStatus     `json:"status"`
	Progress    JobProgress   `json:"progress"`
	Error       string        `json:"error,omitempty"`
	Result      *JobResult    `json:"result,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// EmbeddingResponse carries the learned Gaussian embedding of every node
type EmbeddingResponse struct {
	JobID    string      `json:"jobId"`
	NumNodes int         `json:"numNodes"`
	Dim      int         `json:"dim"`
	Mu       [][]float64 `json:"mu"`
	Sigma    [][]float64 `json:"sigma"`
}

// APIResponse is the standard response envelope
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// UploadResponse is returned after a dataset upload
type UploadResponse struct {
	DatasetID string  `json:"datasetId"`
	Dataset   Dataset `json:"dataset"`
}
