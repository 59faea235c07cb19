package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	defaultTossBaseURL = "https://api.tosspayments.com/v1"
	proOrderName       = "Saju피아 Pro 구독"
	tossFallbackMsg    = "결제 실패"
)

// TossPayment is the subset of the processor's Payment object we persist.
type TossPayment struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	OrderName   string `json:"orderName"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	TotalAmount int64  `json:"totalAmount"`
	ApprovedAt  string `json:"approvedAt"`

	Raw json.RawMessage `json:"-"`
}

func (p *TossPayment) ApprovedTime() *time.Time {
	if p == nil || p.ApprovedAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, p.ApprovedAt)
	if err != nil {
		return nil
	}
	return &t
}

// TossError is a non-2xx processor response.
type TossError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *TossError) Error() string {
	return fmt.Sprintf("toss %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type ChargeRequest struct {
	BillingKey    string
	CustomerKey   string
	CustomerEmail string
	Amount        int64
	OrderName     string
}

// PaymentGateway is the processor contract used by the ledger, the scheduler
// and checkout confirmation.
type PaymentGateway interface {
	ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount int64) (*TossPayment, error)
	ChargeBillingKey(ctx context.Context, req ChargeRequest) (*TossPayment, error)
	// DeleteBillingKey is idempotent and retried on transient failures.
	DeleteBillingKey(ctx context.Context, billingKey string) error
}

type TossConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	// Delete retries; zero uses the default.
	DeleteRetries uint64
}

type tossGateway struct {
	cfg        TossConfig
	httpClient *http.Client
	authHeader string
	backoff    func() retry.Backoff
}

func NewTossGateway(cfg TossConfig) (PaymentGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("TOSS_SECRET_KEY is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTossBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DeleteRetries == 0 {
		cfg.DeleteRetries = 3
	}

	retries := cfg.DeleteRetries
	return &tossGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey+":")),
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(retries, retry.NewExponential(200*time.Millisecond))
		},
	}, nil
}

func (g *tossGateway) ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount int64) (*TossPayment, error) {
	body := map[string]interface{}{
		"paymentKey": paymentKey,
		"orderId":    orderID,
		"amount":     amount,
	}
	return g.postPayment(ctx, "/payments/confirm", body, orderID)
}

func (g *tossGateway) ChargeBillingKey(ctx context.Context, req ChargeRequest) (*TossPayment, error) {
	orderName := req.OrderName
	if orderName == "" {
		orderName = proOrderName
	}
	orderID := "order_" + uuid.NewString()
	body := map[string]interface{}{
		"customerKey":   req.CustomerKey,
		"amount":        req.Amount,
		"orderId":       orderID,
		"orderName":     orderName,
		"customerEmail": req.CustomerEmail,
	}
	return g.postPayment(ctx, "/billing/"+req.BillingKey, body, orderID)
}

func (g *tossGateway) DeleteBillingKey(ctx context.Context, billingKey string) error {
	return retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		status, raw, err := g.do(ctx, http.MethodDelete, "/billing/"+billingKey, nil, "")
		if err != nil {
			return retry.RetryableError(err)
		}
		switch {
		case status >= 200 && status < 300, status == http.StatusNotFound:
			return nil
		case status >= 500 || status == http.StatusTooManyRequests:
			return retry.RetryableError(parseTossError(status, raw))
		default:
			return parseTossError(status, raw)
		}
	})
}

func (g *tossGateway) postPayment(ctx context.Context, path string, body interface{}, idempotencyKey string) (*TossPayment, error) {
	status, raw, err := g.do(ctx, http.MethodPost, path, body, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, parseTossError(status, raw)
	}

	var payment TossPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("decode toss payment: %w", err)
	}
	payment.Raw = raw
	return &payment, nil
}

func (g *tossGateway) do(ctx context.Context, method, path string, body interface{}, idempotencyKey string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", g.authHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("toss %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read toss response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func parseTossError(status int, raw []byte) *TossError {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &payload)
	if payload.Message == "" {
		payload.Message = tossFallbackMsg
	}
	return &TossError{StatusCode: status, Code: payload.Code, Message: payload.Message}
}

// tossMessage is the processor's user-facing message when err carries one.
func tossMessage(err error) string {
	var tErr *TossError
	if errors.As(err, &tErr) {
		return tErr.Message
	}
	return tossFallbackMsg
}
