package http

import (
	"net/http"

	"conveyor/internal/domain"
	"conveyor/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type initiateInferenceRequest struct {
	SignedFileURL    string         `json:"signed_file_url" binding:"required,url"`
	OutputURL        string         `json:"output_url" binding:"required,url"`
	DatasetReference string         `json:"dataset_reference"`
	ModelID          string         `json:"model_id" binding:"required"`
	InputDataType    string         `json:"input_data_type"`
	CSVDataConfig    map[string]any `json:"csv_data_config"`
	Explainability   []string       `json:"explainability"`
}

type initiateTrainingRequest struct {
	SignedFileURL    string         `json:"signed_file_url" binding:"required,url"`
	OutputURL        string         `json:"output_url" binding:"required,url"`
	DatasetReference string         `json:"dataset_reference"`
	SourceModelID    string         `json:"model_id"`
	InputDataType    string         `json:"input_data_type"`
	CSVDataConfig    map[string]any `json:"csv_data_config"`
	Explainability   []string       `json:"explainability"`
}

type initiateAnnotationRequest struct {
	SignedFileURL string `json:"signed_file_url" binding:"required,url"`
	OutputURL     string `json:"output_url" binding:"required,url"`
}

type initiateResponse struct {
	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type"`
	Status   string `json:"status"`
}

func (s *Server) handleInitiateInference(c *gin.Context) {
	var req initiateInferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	env, err := s.intake.InitiateInference(c.Request.Context(), usecase.InferenceParams{
		SignedFileURL:    req.SignedFileURL,
		OutputURL:        req.OutputURL,
		DatasetReference: datasetOrDefault(req.DatasetReference),
		ModelID:          req.ModelID,
		InputDataType:    req.InputDataType,
		CSVDataConfig:    req.CSVDataConfig,
		Explainability:   req.Explainability,
	})
	s.respondInitiate(c, env, err)
}

func (s *Server) handleInitiateTraining(c *gin.Context) {
	var req initiateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	env, err := s.intake.InitiateTraining(c.Request.Context(), usecase.TrainingParams{
		SignedFileURL:    req.SignedFileURL,
		OutputURL:        req.OutputURL,
		DatasetReference: datasetOrDefault(req.DatasetReference),
		SourceModelID:    req.SourceModelID,
		InputDataType:    req.InputDataType,
		CSVDataConfig:    req.CSVDataConfig,
		Explainability:   req.Explainability,
	})
	s.respondInitiate(c, env, err)
}

func (s *Server) handleInitiateAnnotation(c *gin.Context) {
	var req initiateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	env, err := s.intake.InitiateAnnotation(c.Request.Context(), usecase.AnnotationParams{
		SignedFileURL: req.SignedFileURL,
		OutputURL:     req.OutputURL,
	})
	s.respondInitiate(c, env, err)
}

func (s *Server) respondInitiate(c *gin.Context, env domain.Envelope, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "intake_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, initiateResponse{
		TaskID:   env.TaskID,
		TaskType: string(env.TaskType),
		Status:   "accepted",
	})
}

func datasetOrDefault(ref string) string {
	if ref == "" {
		return usecase.DefaultDatasetReference
	}
	return ref
}
