package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-embedding-service/models"
	"github.com/gilchrisn/graph-embedding-service/pkg/parser"
)

// DatasetService manages uploaded attributed graph datasets
type DatasetService struct {
	datasets  map[string]*models.Dataset
	parsed    map[string]*parser.Dataset
	uploadDir string
	mutex     sync.RWMutex
}

// NewDatasetService creates a new dataset service storing uploads under uploadDir
func NewDatasetService(uploadDir string) *DatasetService {
	return &DatasetService{
		datasets:  make(map[string]*models.Dataset),
		parsed:    make(map[string]*parser.Dataset),
		uploadDir: uploadDir,
	}
}

// Upload saves the uploaded files, parses them and registers the dataset.
// The label file is optional.
func (s *DatasetService) Upload(name string, graphFile, attrFile, labelFile *multipart.FileHeader) (*models.Dataset, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	datasetID := uuid.New().String()
	dir := filepath.Join(s.uploadDir, datasetID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}

	graphPath := filepath.Join(dir, "graph.edgelist")
	attrPath := filepath.Join(dir, "attributes.txt")
	labelPath := ""

	if err := saveUploadedFile(graphFile, graphPath); err != nil {
		return nil, fmt.Errorf("saving graph file: %w", err)
	}
	if err := saveUploadedFile(attrFile, attrPath); err != nil {
		return nil, fmt.Errorf("saving attribute file: %w", err)
	}
	if labelFile != nil {
		labelPath = filepath.Join(dir, "labels.txt")
		if err := saveUploadedFile(labelFile, labelPath); err != nil {
			return nil, fmt.Errorf("saving label file: %w", err)
		}
	}

	parsed, err := parser.LoadDataset(graphPath, attrPath, labelPath)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}

	_, attrDim := parsed.Attributes.Dims()
	dataset := &models.Dataset{
		ID:         datasetID,
		Name:       name,
		NumNodes:   parsed.Graph.NumNodes,
		NumEdges:   parsed.Graph.NumEdges,
		AttrDim:    attrDim,
		HasLabels:  parsed.Labels != nil,
		UploadedAt: time.Now(),
	}

	s.datasets[datasetID] = dataset
	s.parsed[datasetID] = parsed

	log.Info().
		Str("dataset_id", datasetID).
		Str("name", name).
		Int("num_nodes", dataset.NumNodes).
		Int("num_edges", dataset.NumEdges).
		Int("attr_dim", dataset.AttrDim).
		Msg("Dataset uploaded")

	return dataset, nil
}

// Get retrieves dataset metadata by ID
func (s *DatasetService) Get(datasetID string) (*models.Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	dataset, exists := s.datasets[datasetID]
	if !exists {
		return nil, fmt.Errorf("dataset not found: %s", datasetID)
	}
	return dataset, nil
}

// GetParsed retrieves the parsed graph data for a dataset
func (s *DatasetService) GetParsed(datasetID string) (*parser.Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	parsed, exists := s.parsed[datasetID]
	if !exists {
		return nil, fmt.Errorf("dataset not found: %s", datasetID)
	}
	return parsed, nil
}

// List returns all registered datasets
func (s *DatasetService) List() []*models.Dataset {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	datasets := make([]*models.Dataset, 0, len(s.datasets))
	for _, dataset := range s.datasets {
		datasets = append(datasets, dataset)
	}
	return datasets
}

// Delete removes a dataset and its files
func (s *DatasetService) Delete(datasetID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.datasets[datasetID]; !exists {
		return fmt.Errorf("dataset not found: %s", datasetID)
	}

	delete(s.datasets, datasetID)
	delete(s.parsed, datasetID)

	if err := os.RemoveAll(filepath.Join(s.uploadDir, datasetID)); err != nil {
		return fmt.Errorf("failed to remove dataset files: %w", err)
	}

	log.Info().Str("dataset_id", datasetID).Msg("Dataset deleted")
	return nil
}

func saveUploadedFile(header *multipart.FileHeader, path string) error {
	src, err := header.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
