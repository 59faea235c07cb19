package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"sajupia/internal/models/db_models"
	"sajupia/internal/models/request_models"
	"sajupia/internal/models/response_models"
	"sajupia/internal/repositories"
	"sajupia/pkg/observability"
	"sajupia/pkg/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type TestService interface {
	// CreateAndAnalyze spends one test only when an analysis is produced.
	CreateAndAnalyze(ctx context.Context, userID uuid.UUID, req request_models.CreateTestRequest) (*response_models.AnalysisResponse, error)
	// InitTest spends one test up front and leaves generation to a stream.
	InitTest(ctx context.Context, userID uuid.UUID, req request_models.CreateTestRequest) (*response_models.InitTestResponse, error)
	ListTests(ctx context.Context, userID uuid.UUID, query request_models.ListTestsQuery) (*response_models.TestListResponse, error)
	GetTest(ctx context.Context, userID, testID uuid.UUID) (*response_models.TestResponse, error)
	DeleteTest(ctx context.Context, userID, testID uuid.UUID) error
}

type testService struct {
	subRepo   repositories.SubscriptionRepository
	testRepo  repositories.TestRepository
	generator utils.TextGenerator
	ai        AIConfig
	log       logrus.FieldLogger
	metrics   *observability.Metrics
}

func NewTestService(
	subRepo repositories.SubscriptionRepository,
	testRepo repositories.TestRepository,
	generator utils.TextGenerator,
	ai AIConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) TestService {
	return &testService{
		subRepo:   subRepo,
		testRepo:  testRepo,
		generator: generator,
		ai:        ai.withDefaults(),
		log:       log.WithField("component", "test"),
		metrics:   metrics,
	}
}

func (s *testService) CreateAndAnalyze(ctx context.Context, userID uuid.UUID, req request_models.CreateTestRequest) (*response_models.AnalysisResponse, error) {
	test, sub, err := s.reserveAndInsert(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.ai.Timeout)
	defer cancel()

	text, genErr := s.generator.Generate(genCtx, s.ai.modelForPlan(sub.Plan), buildSajuPrompt(test))
	if genErr == nil && strings.TrimSpace(text) == "" {
		genErr = utils.ErrEmptyCompletion
	}
	if genErr != nil {
		s.log.WithError(genErr).WithField("test_id", test.ID).Warn("analysis generation failed, rolling back")
		s.rollback(ctx, userID, test.ID, sub.Plan)
		s.metrics.TestOutcomesTotal.WithLabelValues("failed").Inc()
		return nil, utils.ErrGeminiAPIFailed
	}

	if _, err := s.testRepo.SetAnalysisResult(context.WithoutCancel(ctx), test.ID, text); err != nil {
		s.metrics.Compensation("save_result")
		s.log.WithError(err).WithFields(logrus.Fields{
			"test_id":      test.ID,
			"compensation": "save_result",
		}).Error("analysis generated but not saved")
	}
	s.metrics.TestOutcomesTotal.WithLabelValues("success").Inc()

	return &response_models.AnalysisResponse{
		TestID:         test.ID,
		AnalysisResult: text,
	}, nil
}

func (s *testService) InitTest(ctx context.Context, userID uuid.UUID, req request_models.CreateTestRequest) (*response_models.InitTestResponse, error) {
	test, sub, err := s.reserveAndInsert(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	s.metrics.TestOutcomesTotal.WithLabelValues("initialized").Inc()

	return &response_models.InitTestResponse{
		TestID: test.ID,
		Model:  s.ai.modelForPlan(sub.Plan),
	}, nil
}

// reserveAndInsert takes one unit with a conditional decrement and inserts
// the pending test, returning the unit if the insert fails.
func (s *testService) reserveAndInsert(ctx context.Context, userID uuid.UUID, req request_models.CreateTestRequest) (*db_models.Test, *db_models.Subscription, error) {
	if msg := req.Validate(); msg != "" {
		return nil, nil, utils.ErrInvalidRequest.WithMessage(msg)
	}

	sub, err := s.subRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, nil, utils.ErrSubscriptionNotFound
	}

	reserved, err := s.subRepo.ReserveTest(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("reserve test: %w", err)
	}
	if !reserved {
		s.metrics.QuotaDenialsTotal.Inc()
		return nil, nil, utils.ErrInsufficientTests
	}

	test := &db_models.Test{
		UserID:    userID,
		Name:      strings.TrimSpace(req.Name),
		BirthDate: req.BirthDate,
		Gender:    db_models.Gender(req.Gender),
	}
	if req.BirthTime != nil && *req.BirthTime != "" {
		bt := *req.BirthTime
		test.BirthTime = &bt
	}

	if err := s.testRepo.Insert(ctx, test); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to insert test")
		s.refund(ctx, userID, sub.Plan)
		return nil, nil, utils.ErrTestCreateFailed
	}
	return test, sub, nil
}

// rollback deletes a pending test and returns its unit to the plan it was
// taken from. Both steps are best-effort.
func (s *testService) rollback(ctx context.Context, userID, testID uuid.UUID, plan db_models.Plan) {
	if err := s.testRepo.Delete(context.WithoutCancel(ctx), testID); err != nil {
		s.metrics.Compensation("delete_test")
		s.log.WithError(err).WithFields(logrus.Fields{
			"test_id":      testID,
			"compensation": "delete_test",
		}).Error("failed to delete pending test")
	}
	s.refund(ctx, userID, plan)
}

func (s *testService) refund(ctx context.Context, userID uuid.UUID, plan db_models.Plan) {
	if err := s.subRepo.RefundTest(context.WithoutCancel(ctx), userID, plan); err != nil {
		s.metrics.Compensation("refund_test")
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":      userID,
			"compensation": "refund_test",
		}).Error("failed to refund reserved test")
	}
}

func (s *testService) ListTests(ctx context.Context, userID uuid.UUID, query request_models.ListTestsQuery) (*response_models.TestListResponse, error) {
	filter := repositories.TestFilter{
		Name:   strings.TrimSpace(query.Name),
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	tests, total, err := s.testRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}

	out := make([]response_models.TestResponse, 0, len(tests))
	for i := range tests {
		out = append(out, response_models.NewTestResponse(&tests[i]))
	}
	return &response_models.TestListResponse{Tests: out, Total: total}, nil
}

func (s *testService) GetTest(ctx context.Context, userID, testID uuid.UUID) (*response_models.TestResponse, error) {
	test, err := s.testRepo.FindByIDForUser(ctx, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("load test: %w", err)
	}
	if test == nil {
		return nil, utils.ErrTestNotFound
	}
	resp := response_models.NewTestResponse(test)
	return &resp, nil
}

func (s *testService) DeleteTest(ctx context.Context, userID, testID uuid.UUID) error {
	deleted, err := s.testRepo.DeleteForUser(ctx, testID, userID)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if !deleted {
		return utils.ErrTestNotFound
	}
	return nil
}
