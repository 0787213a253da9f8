package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-embedding-service/models"
	"github.com/gilchrisn/graph-embedding-service/pkg/eval"
	"github.com/gilchrisn/graph-embedding-service/pkg/g2g"
)

// embeddingResult keeps the full output of a completed job
type embeddingResult struct {
	Mu    [][]float64
	Sigma [][]float64
}

// JobService handles background embedding jobs
type JobService struct {
	jobs            map[string]*models.Job
	results         map[string]*embeddingResult
	cancels         map[string]context.CancelFunc
	workers         chan struct{}
	datasetService  *DatasetService
	mutex           sync.RWMutex
	jobTimeout      time.Duration
	jobTTL          time.Duration
	cleanupInterval time.Duration
}

// NewJobService creates a new job service with maxWorkers concurrent jobs
func NewJobService(datasetService *DatasetService, maxWorkers int, jobTimeout, resultTTL, cleanupInterval time.Duration) *JobService {
	service := &JobService{
		jobs:            make(map[string]*models.Job),
		results:         make(map[string]*embeddingResult),
		cancels:         make(map[string]context.CancelFunc),
		workers:         make(chan struct{}, maxWorkers),
		datasetService:  datasetService,
		jobTimeout:      jobTimeout,
		jobTTL:          resultTTL,
		cleanupInterval: cleanupInterval,
	}

	go service.cleanupLoop()

	return service
}

// Submit creates and queues a new embedding job
func (s *JobService) Submit(datasetID string, params models.JobParameters) (*models.Job, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.datasetService.Get(datasetID); err != nil {
		return nil, err
	}
	if err := validateParameters(&params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	jobID := uuid.New().String()
	now := time.Now()
	job := &models.Job{
		ID:         jobID,
		DatasetID:  datasetID,
		Parameters: params,
		Status:     models.JobStatusQueued,
		Progress: models.JobProgress{
			Percentage: 0,
			Message:    "Queued",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.jobs[jobID] = job

	log.Info().
		Str("job_id", jobID).
		Str("dataset_id", datasetID).
		Int("epochs", params.Epochs).
		Int("embedding_dim", params.EmbeddingDim).
		Msg("Embedding job submitted")

	go s.processJob(jobID)

	return job, nil
}

// validateParameters fills defaults and rejects out-of-range values
func validateParameters(params *models.JobParameters) error {
	if params.Epochs == 0 {
		params.Epochs = 10
	}
	if params.SamplesPerAnchor == 0 {
		params.SamplesPerAnchor = 3
	}
	if params.LearningRate == 0 {
		params.LearningRate = 1e-3
	}
	if params.MaxHops == 0 {
		params.MaxHops = 1
	}
	if params.EmbeddingDim == 0 {
		params.EmbeddingDim = 64
	}
	if params.Workers == 0 {
		params.Workers = 1
	}
	if params.Seed == 0 {
		params.Seed = time.Now().UnixNano()
	}

	if params.Epochs < 0 || params.SamplesPerAnchor < 1 || params.LearningRate < 0 ||
		params.EmbeddingDim < 1 || params.Workers < 1 {
		return fmt.Errorf("negative or zero training parameter")
	}
	return nil
}

// Get retrieves a job by ID
func (s *JobService) Get(jobID string) (*models.Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return job, nil
}

// List returns all jobs for a dataset
func (s *JobService) List(datasetID string) []*models.Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var jobs []*models.Job
	for _, job := range s.jobs {
		if job.DatasetID == datasetID {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Cancel cancels a queued or running job
func (s *JobService) Cancel(jobID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if job.Status == models.JobStatusQueued || job.Status == models.JobStatusRunning {
		if cancel, ok := s.cancels[jobID]; ok {
			cancel()
		}
		job.Status = models.JobStatusCancelled
		job.Progress.Message = "Cancelled"
		now := time.Now()
		job.CompletedAt = &now
		job.UpdatedAt = now

		log.Info().Str("job_id", jobID).Msg("Job cancelled")
	}

	return nil
}

// GetEmbeddings returns the learned embeddings of a completed job
func (s *JobService) GetEmbeddings(jobID string) (*models.EmbeddingResponse, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result, exists := s.results[jobID]
	if !exists {
		return nil, fmt.Errorf("embeddings not found for job: %s", jobID)
	}

	response := &models.EmbeddingResponse{
		JobID:    jobID,
		NumNodes: len(result.Mu),
		Mu:       result.Mu,
		Sigma:    result.Sigma,
	}
	if len(result.Mu) > 0 {
		response.Dim = len(result.Mu[0])
	}
	return response, nil
}

// processJob runs one embedding job in the background
func (s *JobService) processJob(jobID string) {
	s.workers <- struct{}{}
	defer func() { <-s.workers }()

	s.mutex.RLock()
	job, exists := s.jobs[jobID]
	s.mutex.RUnlock()
	if !exists {
		log.Error().Str("job_id", jobID).Msg("Job not found during processing")
		return
	}
	if job.Status == models.JobStatusCancelled {
		return
	}

	startTime := time.Now()
	s.updateJobStatus(jobID, models.JobStatusRunning, 0, "Building neighborhood level sets", &startTime)

	parsed, err := s.datasetService.GetParsed(job.DatasetID)
	if err != nil {
		s.failJob(jobID, fmt.Errorf("failed to get dataset: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	s.mutex.Lock()
	s.cancels[jobID] = cancel
	s.mutex.Unlock()

	graph, err := g2g.NewAttributedGraph(parsed.Graph, parsed.Attributes, parsed.Labels, job.Parameters.MaxHops)
	if err != nil {
		s.failJob(jobID, fmt.Errorf("building attributed graph: %w", err))
		return
	}

	config := g2g.NewConfig()
	config.Set("training.epochs", job.Parameters.Epochs)
	config.Set("training.samples_per_anchor", job.Parameters.SamplesPerAnchor)
	config.Set("training.learning_rate", job.Parameters.LearningRate)
	config.Set("training.random_seed", job.Parameters.Seed)
	config.Set("neighborhood.max_hops", job.Parameters.MaxHops)
	config.Set("encoder.embedding_dim", job.Parameters.EmbeddingDim)
	config.Set("performance.num_workers", job.Parameters.Workers)

	logger := log.With().Str("job_id", jobID).Logger()

	totalIterations := job.Parameters.Epochs
	opts := g2g.TrainOptions{
		Progress: func(iteration int, loss float64) {
			percentage := iteration * 100 / totalIterations
			if percentage > 100 {
				percentage = 100
			}
			s.updateJobStatus(jobID, models.JobStatusRunning, percentage,
				fmt.Sprintf("Iteration %d, loss %.4f", iteration, loss), nil)
		},
	}

	encoder, result, err := g2g.Train(ctx, graph, config, logger, opts)
	if err != nil {
		s.failJob(jobID, fmt.Errorf("training failed: %w", err))
		return
	}
	if ctx.Err() != nil {
		// Cancel already finalized the job status; failJob skips cancelled
		// jobs, so reaching it here means the deadline expired mid-training.
		s.failJob(jobID, fmt.Errorf("job timed out after %s", s.jobTimeout))
		return
	}

	mu, sigma := encoder.Forward(parsed.Attributes)
	stored := &embeddingResult{
		Mu:    matrixToRows(mu),
		Sigma: matrixToRows(sigma),
	}

	jobResult := &models.JobResult{
		FinalLoss:        result.FinalLoss,
		Iterations:       result.Iterations,
		EligibleNodes:    result.Statistics.EligibleNodes,
		ProcessingTimeMS: time.Since(startTime).Milliseconds(),
	}

	// Run the classification probe when labels are available.
	if parsed.Labels != nil {
		probeRng := rand.New(rand.NewSource(job.Parameters.Seed))
		probe, err := eval.NodeClassification(mu, parsed.Labels, 0.1, probeRng)
		if err != nil {
			logger.Warn().Err(err).Msg("Node classification probe failed")
		} else {
			jobResult.MacroF1 = &probe.MacroF1
		}
	}

	s.completeJob(jobID, jobResult, stored)
}

func (s *JobService) updateJobStatus(jobID string, status models.JobStatus, percentage int, message string, startTime *time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status == models.JobStatusCancelled {
		return
	}

	job.Status = status
	job.Progress.Percentage = percentage
	job.Progress.Message = message
	job.UpdatedAt = time.Now()
	if startTime != nil {
		job.StartedAt = startTime
	}
}

func (s *JobService) completeJob(jobID string, result *models.JobResult, embeddings *embeddingResult) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status == models.JobStatusCancelled {
		return
	}

	job.Status = models.JobStatusCompleted
	job.Progress.Percentage = 100
	job.Progress.Message = "Complete"
	job.Result = result
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	s.results[jobID] = embeddings
	delete(s.cancels, jobID)

	log.Info().
		Str("job_id", jobID).
		Float64("final_loss", result.FinalLoss).
		Int("iterations", result.Iterations).
		Int64("processing_time_ms", result.ProcessingTimeMS).
		Msg("Job completed successfully")
}

func (s *JobService) failJob(jobID string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status == models.JobStatusCancelled {
		return
	}

	job.Status = models.JobStatusFailed
	job.Error = err.Error()
	job.Progress.Message = "Failed"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now
	delete(s.cancels, jobID)

	log.Error().Str("job_id", jobID).Err(err).Msg("Job failed")
}

// cleanupLoop periodically removes expired jobs and results
func (s *JobService) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

func (s *JobService) cleanup() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := time.Now().Add(-s.jobTTL)
	cleaned := 0

	for jobID, job := range s.jobs {
		if job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			delete(s.results, jobID)
			delete(s.cancels, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Info().Int("cleaned_jobs", cleaned).Msg("Job cleanup completed")
	}
}

func matrixToRows(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			out[r][c] = m.At(r, c)
		}
	}
	return out
}
