package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
	"sajupia/internal/models/response_models"
	"sajupia/pkg/observability"
	"sajupia/pkg/utils"
)

// fixedPlan pins the billing clock at 2025-03-15 10:00 KST.
func fixedPlan() PlanConfig {
	p := DefaultPlanConfig()
	p.Clock = func() time.Time {
		return time.Date(2025, 3, 15, 1, 0, 0, 0, time.UTC)
	}
	return p
}

var planToday = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

// hasLogField reports whether any captured entry carries key=value.
func hasLogField(hook *test.Hook, key string, value interface{}) bool {
	for _, e := range hook.AllEntries() {
		if v, ok := e.Data[key]; ok && v == value {
			return true
		}
	}
	return false
}

type fakeGateway struct {
	mu sync.Mutex

	confirmCalls int
	charges      []ChargeRequest
	deleted      []string

	chargeErr  error
	confirmErr error
	deleteErr  error
}

func (f *fakeGateway) ConfirmPayment(_ context.Context, paymentKey, orderID string, amount int64) (*TossPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &TossPayment{
		PaymentKey:  paymentKey,
		OrderID:     orderID,
		Status:      "DONE",
		Method:      "카드",
		TotalAmount: amount,
		ApprovedAt:  "2025-03-15T10:00:00+09:00",
		Raw:         []byte(`{"status":"DONE"}`),
	}, nil
}

func (f *fakeGateway) ChargeBillingKey(_ context.Context, req ChargeRequest) (*TossPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, req)
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return &TossPayment{
		PaymentKey:  "pay_" + uuid.NewString(),
		OrderID:     "order_" + uuid.NewString(),
		Status:      "DONE",
		Method:      "카드",
		TotalAmount: req.Amount,
	}, nil
}

func (f *fakeGateway) DeleteBillingKey(_ context.Context, billingKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, billingKey)
	return f.deleteErr
}

func (f *fakeGateway) chargeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.charges)
}

type sentMail struct {
	kind   string
	to     string
	reason string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeNotifier) SendRenewalFailed(to, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: "renewal_failed", to: to, reason: reason})
	return f.err
}

func (f *fakeNotifier) SendSubscriptionExpired(to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: "expired", to: to})
	return f.err
}

// fakeGenerator replays chunks and then err (io.EOF when nil).
type fakeGenerator struct {
	name   string
	chunks []string
	err    error
	// startErr fails GenerateStream itself.
	startErr error
	// before runs at the start of Generate.
	before func()

	mu     sync.Mutex
	calls  int
	models []string
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) Generate(_ context.Context, model, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.models = append(f.models, model)
	f.mu.Unlock()
	if f.before != nil {
		f.before()
	}
	if f.startErr != nil {
		return "", f.startErr
	}
	if f.err != nil {
		return "", f.err
	}
	var out string
	for _, c := range f.chunks {
		out += c
	}
	return out, nil
}

func (f *fakeGenerator) GenerateStream(_ context.Context, model, _ string) (utils.ChunkStream, error) {
	f.mu.Lock()
	f.calls++
	f.models = append(f.models, model)
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeStream{chunks: append([]string(nil), f.chunks...), err: f.err}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStream struct {
	chunks []string
	err    error
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// quotaError mimics a provider 429.
type quotaError struct{}

func (quotaError) Error() string { return "googleapi: Error 429: Resource has been exhausted" }
func (quotaError) HTTPCode() int { return 429 }

type recordingSink struct {
	events []response_models.StreamEvent
	// failAfter closes the sink after that many successful sends; 0 never.
	failAfter int
	// onSend runs after each accepted event.
	onSend func(response_models.StreamEvent)
}

func (s *recordingSink) Send(e response_models.StreamEvent) error {
	if s.failAfter > 0 && len(s.events) >= s.failAfter {
		return errors.New("client gone")
	}
	s.events = append(s.events, e)
	if s.onSend != nil {
		s.onSend(e)
	}
	return nil
}

func (s *recordingSink) texts() string {
	var out string
	for _, e := range s.events {
		out += e.Text
	}
	return out
}

type testutilDB struct {
	*gorm.DB
	hook *test.Hook
}
