package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"sajupia/internal/models/db_models"
	"sajupia/internal/models/response_models"
	"sajupia/internal/repositories"
	mem "sajupia/pkg/memcache"
	"sajupia/pkg/observability"
	"sajupia/pkg/utils"
)

const (
	fallbackProvider  = "openai"
	msgFallback       = "Gemini 쿼터 초과로 GPT-4.1-mini로 전환합니다..."
	msgFallbackFailed = "AI 서비스를 사용할 수 없습니다. 잠시 후 다시 시도해주세요."
	msgStreamFailed   = "스트리밍 중 오류가 발생했습니다"
	msgSaveFailed     = "분석 결과 저장에 실패했습니다"
	streamLeasePrefix = "stream:"
	streamLeaseSlack  = 30 * time.Second
)

// EventSink receives stream events in order. A Send error means the client
// is gone.
type EventSink interface {
	Send(event response_models.StreamEvent) error
}

type StreamService interface {
	// RunStream returns an error only when the stream cannot start; every
	// later failure is reported to sink as an error event.
	RunStream(ctx context.Context, userID, testID uuid.UUID, model string, sink EventSink) error
}

type streamService struct {
	testRepo repositories.TestRepository
	primary  utils.TextGenerator
	fallback utils.TextGenerator
	leases   mem.LeaseStore
	ai       AIConfig
	log      logrus.FieldLogger
	metrics  *observability.Metrics
}

func NewStreamService(
	testRepo repositories.TestRepository,
	primary utils.TextGenerator,
	fallback utils.TextGenerator,
	leases mem.LeaseStore,
	ai AIConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) StreamService {
	return &streamService{
		testRepo: testRepo,
		primary:  primary,
		fallback: fallback,
		leases:   leases,
		ai:       ai.withDefaults(),
		log:      log.WithField("component", "stream"),
		metrics:  metrics,
	}
}

var errSinkClosed = errors.New("event sink closed")

func (s *streamService) RunStream(ctx context.Context, userID, testID uuid.UUID, model string, sink EventSink) error {
	test, err := s.testRepo.FindByIDForUser(ctx, testID, userID)
	if err != nil {
		return fmt.Errorf("load test: %w", err)
	}
	if test == nil {
		return utils.ErrTestNotFound
	}
	if test.HasResult() {
		return utils.ErrAnalysisAlreadyExists
	}

	leaseKey := streamLeasePrefix + testID.String()
	// Both providers may run back to back.
	token, ok, err := s.leases.Acquire(ctx, leaseKey, 2*s.ai.Timeout+streamLeaseSlack)
	if err != nil {
		return fmt.Errorf("acquire stream lease: %w", err)
	}
	if !ok {
		return utils.ErrStreamInProgress
	}
	defer func() {
		if err := s.leases.Release(context.WithoutCancel(ctx), leaseKey, token); err != nil {
			s.log.WithError(err).WithField("test_id", testID).Warn("failed to release stream lease")
		}
	}()

	log := s.log.WithField("test_id", testID)
	prompt := buildSajuPrompt(test)

	text, err := s.streamFrom(ctx, s.primary, s.ai.streamModel(model), prompt, sink)
	if err == nil {
		s.finish(ctx, test, s.primary.Name(), text, sink)
		return nil
	}
	if errors.Is(err, errSinkClosed) {
		log.WithError(err).Info("client left during primary stream")
		s.metrics.StreamOutcomesTotal.WithLabelValues(s.primary.Name(), "aborted").Inc()
		return nil
	}

	if !utils.IsQuotaExhausted(err) || s.fallback == nil {
		log.WithError(err).Error("primary stream failed")
		s.metrics.StreamOutcomesTotal.WithLabelValues(s.primary.Name(), "error").Inc()
		_ = sink.Send(response_models.StreamEvent{Error: msgStreamFailed})
		return nil
	}

	log.WithError(err).Warn("primary quota exhausted, falling back")
	s.metrics.StreamFallbacksTotal.Inc()
	if err := sink.Send(response_models.StreamEvent{Fallback: fallbackProvider, Message: msgFallback}); err != nil {
		return nil
	}

	text, err = s.streamFrom(ctx, s.fallback, s.ai.FallbackModel, prompt, sink)
	if err != nil {
		if errors.Is(err, errSinkClosed) {
			s.metrics.StreamOutcomesTotal.WithLabelValues(s.fallback.Name(), "aborted").Inc()
			return nil
		}
		log.WithError(err).Error("fallback stream failed")
		s.metrics.StreamOutcomesTotal.WithLabelValues(s.fallback.Name(), "error").Inc()
		_ = sink.Send(response_models.StreamEvent{Error: msgFallbackFailed})
		return nil
	}
	s.finish(ctx, test, s.fallback.Name(), text, sink)
	return nil
}

// streamFrom drains one provider stream, forwarding every chunk, and returns
// the accumulated text. Empty output counts as a failure.
func (s *streamService) streamFrom(ctx context.Context, gen utils.TextGenerator, model, prompt string, sink EventSink) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.ai.Timeout)
	defer cancel()

	stream, err := gen.GenerateStream(genCtx, model, prompt)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var acc strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if chunk == "" {
			continue
		}
		acc.WriteString(chunk)
		if err := sink.Send(response_models.StreamEvent{Text: chunk}); err != nil {
			return "", fmt.Errorf("%w: %v", errSinkClosed, err)
		}
	}

	if strings.TrimSpace(acc.String()) == "" {
		return "", utils.ErrEmptyCompletion
	}
	return acc.String(), nil
}

func (s *streamService) finish(ctx context.Context, test *db_models.Test, provider, text string, sink EventSink) {
	saved, err := s.testRepo.SetAnalysisResult(context.WithoutCancel(ctx), test.ID, text)
	if err != nil || !saved {
		entry := s.log.WithFields(logrus.Fields{
			"test_id":      test.ID,
			"provider":     provider,
			"compensation": "save_result",
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		// no row matched: the test was deleted or already has a result
		s.metrics.Compensation("save_result")
		entry.Error("streamed analysis not saved")
		s.metrics.StreamOutcomesTotal.WithLabelValues(provider, "error").Inc()
		_ = sink.Send(response_models.StreamEvent{Error: msgSaveFailed})
		return
	}
	s.metrics.StreamOutcomesTotal.WithLabelValues(provider, "completed").Inc()
	_ = sink.Send(response_models.StreamEvent{Done: true})
}
