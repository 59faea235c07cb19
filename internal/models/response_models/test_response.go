package response_models

import (
	"time"

	"github.com/google/uuid"
	"sajupia/internal/models/db_models"
)

type AnalysisResponse struct {
	TestID         uuid.UUID `json:"test_id"`
	AnalysisResult string    `json:"analysis_result"`
}

type InitTestResponse struct {
	TestID uuid.UUID `json:"test_id"`
	Model  string    `json:"model"`
}

type TestResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	BirthDate      string    `json:"birth_date"`
	BirthTime      *string   `json:"birth_time,omitempty"`
	Gender         string    `json:"gender"`
	AnalysisResult *string   `json:"analysis_result"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewTestResponse(t *db_models.Test) TestResponse {
	return TestResponse{
		ID:             t.ID,
		Name:           t.Name,
		BirthDate:      t.BirthDate,
		BirthTime:      t.BirthTime,
		Gender:         string(t.Gender),
		AnalysisResult: t.AnalysisResult,
		CreatedAt:      time.Unix(t.CreatedAt, 0).UTC(),
	}
}

type TestListResponse struct {
	Tests []TestResponse `json:"tests"`
	Total int64          `json:"total"`
}

// StreamEvent is one server-sent frame of a streamed analysis.
type StreamEvent struct {
	Text     string `json:"text,omitempty"`
	Fallback string `json:"fallback,omitempty"`
	Message  string `json:"message,omitempty"`
	Done     bool   `json:"done,omitempty"`
	Error    string `json:"error,omitempty"`
}
