package api

import (
	"encoding/json"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-embedding-service/models"
	"github.com/gilchrisn/graph-embedding-service/service"
	"github.com/gilchrisn/graph-embedding-service/utils"
)

// Handlers contains HTTP request handlers
type Handlers struct {
	datasetService *service.DatasetService
	jobService     *service.JobService
	maxUploadSize  int64
}

// NewHandlers creates new API handlers
func NewHandlers(datasetService *service.DatasetService, jobService *service.JobService, maxUploadSize int64) *Handlers {
	return &Handlers{
		datasetService: datasetService,
		jobService:     jobService,
		maxUploadSize:  maxUploadSize,
	}
}

// UploadDataset handles dataset upload. Expects multipart form fields
// graphFile and attributeFile, plus an optional labelFile.
func (h *Handlers) UploadDataset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		log.Error().Err(err).Msg("Failed to parse multipart form")
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = "Unnamed Dataset"
	}

	graphFile, err := formFile(r, "graphFile")
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Missing required file: graphFile", err)
		return
	}
	attrFile, err := formFile(r, "attributeFile")
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Missing required file: attributeFile", err)
		return
	}
	labelFile, _ := formFile(r, "labelFile") // optional

	dataset, err := h.datasetService.Upload(name, graphFile, attrFile, labelFile)
	if err != nil {
		log.Error().Err(err).Msg("Dataset upload failed")
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Dataset upload failed", err)
		return
	}

	response := models.UploadResponse{
		DatasetID: dataset.ID,
		Dataset:   *dataset,
	}
	utils.WriteSuccessResponse(w, "Dataset uploaded", response)
}

// ListDatasets returns all registered datasets
func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, "", h.datasetService.List())
}

// GetDataset returns one dataset's metadata
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	dataset, err := h.datasetService.Get(datasetID)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
		return
	}
	utils.WriteSuccessResponse(w, "", dataset)
}

// DeleteDataset removes a dataset
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	if err := h.datasetService.Delete(datasetID); err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Dataset not found", err)
		return
	}
	utils.WriteSuccessResponse(w, "Dataset deleted", nil)
}

// StartEmbedding queues a new embedding job for a dataset
func (h *Handlers) StartEmbedding(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	var params models.JobParameters
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err.Error() != "EOF" {
			utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid job parameters", err)
			return
		}
	}

	job, err := h.jobService.Submit(datasetID, params)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Failed to submit job", err)
		return
	}
	utils.WriteSuccessResponse(w, "Embedding job submitted", job)
}

// ListEmbeddingJobs returns all jobs for a dataset
func (h *Handlers) ListEmbeddingJobs(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]
	utils.WriteSuccessResponse(w, "", h.jobService.List(datasetID))
}

// GetJob returns job status and progress
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}
	utils.WriteSuccessResponse(w, "", job)
}

// CancelJob cancels a queued or running job
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if err := h.jobService.Cancel(jobID); err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
		return
	}
	utils.WriteSuccessResponse(w, "Job cancelled", nil)
}

// GetEmbeddings returns the learned embeddings of a completed job
func (h *Handlers) GetEmbeddings(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	embeddings, err := h.jobService.GetEmbeddings(jobID)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusNotFound, "Embeddings not available", err)
		return
	}
	utils.WriteSuccessResponse(w, "", embeddings)
}

// HealthCheck reports service liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, "ok", map[string]string{"status": "healthy"})
}

func formFile(r *http.Request, field string) (*multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	file.Close() // reopened by the dataset service
	return header, nil
}
