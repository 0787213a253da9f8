package service

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-embedding-service/models"
	"github.com/gilchrisn/graph-embedding-service/pkg/g2g"
	"github.com/gilchrisn/graph-embedding-service/pkg/parser"
)

// registerPathDataset registers an in-memory path graph dataset, bypassing
// the multipart upload path.
func registerPathDataset(t *testing.T, ds *DatasetService, id string, n int) {
	t.Helper()

	g := g2g.NewGraph(n)
	for i := 0; i+1 < n; i++ {
		if err := g.AddEdge(i, i+1); err != nil {
			t.Fatalf("AddEdge(%d, %d) failed: %v", i, i+1, err)
		}
	}

	rng := rand.New(rand.NewSource(1))
	attrDim := 5
	data := make([]float64, n*attrDim)
	for i := range data {
		data[i] = rng.NormFloat64()
	}

	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	ds.datasets[id] = &models.Dataset{
		ID:         id,
		Name:       "path",
		NumNodes:   n,
		NumEdges:   n - 1,
		AttrDim:    attrDim,
		UploadedAt: time.Now(),
	}
	ds.parsed[id] = &parser.Dataset{
		Graph:      g,
		Attributes: mat.NewDense(n, attrDim, data),
	}
}

func (s *JobService) jobState(jobID string) (models.JobStatus, string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	job := s.jobs[jobID]
	return job.Status, job.Error
}

func TestJobTimeoutMarksJobFailed(t *testing.T) {
	ds := NewDatasetService(t.TempDir())
	registerPathDataset(t, ds, "ds-timeout", 8)

	js := NewJobService(ds, 1, 50*time.Millisecond, time.Hour, time.Hour)

	// Far more epochs than 50ms allows, so the deadline always wins.
	job, err := js.Submit("ds-timeout", models.JobParameters{
		Epochs:  5000000,
		Workers: 1,
		Seed:    1,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		status, errMsg := js.jobState(job.ID)
		switch status {
		case models.JobStatusFailed:
			if !strings.Contains(errMsg, "timed out") {
				t.Fatalf("failed job error %q does not mention the timeout", errMsg)
			}
			return
		case models.JobStatusCompleted:
			t.Fatal("job completed before the deadline could expire")
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job stayed in a non-terminal status after its deadline expired")
}

func TestCancelledJobStaysCancelled(t *testing.T) {
	ds := NewDatasetService(t.TempDir())
	registerPathDataset(t, ds, "ds-cancel", 8)

	js := NewJobService(ds, 1, time.Hour, time.Hour, time.Hour)

	job, err := js.Submit("ds-cancel", models.JobParameters{
		Epochs:  5000000,
		Workers: 1,
		Seed:    2,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if status, _ := js.jobState(job.ID); status == models.JobStatusRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := js.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	// The training goroutine observes the cancelled context and unwinds;
	// the job must not be reclassified as failed afterwards.
	time.Sleep(500 * time.Millisecond)

	status, errMsg := js.jobState(job.ID)
	if status != models.JobStatusCancelled {
		t.Fatalf("job status %q after cancellation, expected %q (error: %q)",
			status, models.JobStatusCancelled, errMsg)
	}
}
