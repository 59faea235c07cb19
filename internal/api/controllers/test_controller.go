package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"sajupia/internal/models/request_models"
	"sajupia/internal/models/response_models"
	"sajupia/internal/services"
	"sajupia/pkg/utils"
)

type TestController struct {
	testService   services.TestService
	streamService services.StreamService
}

func NewTestController(testService services.TestService, streamService services.StreamService) *TestController {
	return &TestController{
		testService:   testService,
		streamService: streamService,
	}
}

// Create godoc
// @Summary Create a test and analyze it synchronously
// @Description Spends one test only when the analysis succeeds
// @Tags Tests
// @Accept json
// @Produce json
// @Param request body request_models.CreateTestRequest true "Birth data"
// @Success 200 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Security BearerAuth
// @Router /test/create [post]
func (t *TestController) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req request_models.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondAppError(c, utils.ErrInvalidRequest.WithMessage("Invalid request format"))
		return
	}

	result, err := t.testService.CreateAndAnalyze(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Analysis completed")
}

// Init godoc
// @Summary Create a test for streaming analysis
// @Description Spends one test immediately and returns the model the stream should use
// @Tags Tests
// @Accept json
// @Produce json
// @Param request body request_models.CreateTestRequest true "Birth data"
// @Success 200 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Security BearerAuth
// @Router /test/init [post]
func (t *TestController) Init(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req request_models.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondAppError(c, utils.ErrInvalidRequest.WithMessage("Invalid request format"))
		return
	}

	result, err := t.testService.InitTest(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Test created")
}

// Stream godoc
// @Summary Stream the analysis of an initialized test
// @Description Server-sent events; each frame is a JSON object with text, fallback, done or error
// @Tags Tests
// @Accept json
// @Produce text/event-stream
// @Param id path string true "Test ID"
// @Param request body request_models.StreamTestRequest false "Model override"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /test/stream/{id} [post]
func (t *TestController) Stream(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	testID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req request_models.StreamTestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondAppError(c, utils.ErrInvalidRequest.WithMessage("Invalid request format"))
		return
	}

	sink := &sseSink{c: c}
	err := t.streamService.RunStream(c.Request.Context(), userID, testID, req.Model, sink)
	if err != nil && !sink.started {
		utils.HandleServiceError(c, err)
	}
}

// List godoc
// @Summary List the caller's tests
// @Tags Tests
// @Produce json
// @Param name query string false "Name filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /test/list [get]
func (t *TestController) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var query request_models.ListTestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.RespondAppError(c, utils.ErrInvalidRequest.WithMessage("Invalid query parameters"))
		return
	}

	result, err := t.testService.ListTests(c.Request.Context(), userID, query)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Tests retrieved successfully")
}

// Get godoc
// @Summary Get one test
// @Tags Tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /test/{id} [get]
func (t *TestController) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	testID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := t.testService.GetTest(c.Request.Context(), userID, testID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Test retrieved successfully")
}

// Delete godoc
// @Summary Delete one test
// @Tags Tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /test/{id} [delete]
func (t *TestController) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	testID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := t.testService.DeleteTest(c.Request.Context(), userID, testID); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Test deleted")
}

// sseSink writes stream events as "data: <json>\n\n" frames. Headers go out
// with the first frame so precondition errors can still use the JSON envelope.
type sseSink struct {
	c       *gin.Context
	started bool
}

func (s *sseSink) Send(event response_models.StreamEvent) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}

	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.c.Status(http.StatusOK)
		s.started = true
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}
