package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *tossGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw, err := NewTossGateway(TossConfig{SecretKey: "test_sk_123", BaseURL: server.URL})
	require.NoError(t, err)
	g := gw.(*tossGateway)
	g.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
	return g
}

func TestNewTossGatewayRequiresSecret(t *testing.T) {
	_, err := NewTossGateway(TossConfig{})
	assert.Error(t, err)
}

func TestConfirmPaymentRequest(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments/confirm", r.URL.Path)
		assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("test_sk_123:")), r.Header.Get("Authorization"))
		assert.Equal(t, "order_1", r.Header.Get("Idempotency-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pk_1", body["paymentKey"])
		assert.Equal(t, float64(3900), body["amount"])

		_, _ = w.Write([]byte(`{"paymentKey":"pk_1","orderId":"order_1","status":"DONE","method":"카드","totalAmount":3900,"approvedAt":"2025-03-15T10:00:00+09:00"}`))
	})

	payment, err := g.ConfirmPayment(context.Background(), "pk_1", "order_1", 3900)
	require.NoError(t, err)
	assert.Equal(t, "DONE", payment.Status)
	assert.Equal(t, int64(3900), payment.TotalAmount)
	require.NotNil(t, payment.ApprovedTime())
	assert.Equal(t, time.Date(2025, 3, 15, 1, 0, 0, 0, time.UTC), payment.ApprovedTime().UTC())
	assert.Contains(t, string(payment.Raw), `"status":"DONE"`)
}

func TestChargeBillingKeyUsesOrderIDAsIdempotencyKey(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/billing/bk_1", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		orderID, _ := body["orderId"].(string)
		assert.True(t, strings.HasPrefix(orderID, "order_"))
		assert.Equal(t, orderID, r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Saju피아 Pro 구독", body["orderName"])
		assert.Equal(t, "user_1", body["customerKey"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"paymentKey": "pk_b", "orderId": orderID, "status": "DONE", "totalAmount": 3900,
		})
	})

	payment, err := g.ChargeBillingKey(context.Background(), ChargeRequest{
		BillingKey: "bk_1", CustomerKey: "user_1", CustomerEmail: "a@example.com", Amount: 3900,
	})
	require.NoError(t, err)
	assert.Equal(t, "pk_b", payment.PaymentKey)
}

func TestProcessorErrorsCarryMessage(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"INVALID_CARD_EXPIRATION","message":"카드 유효기간이 만료되었습니다"}`))
	})

	_, err := g.ChargeBillingKey(context.Background(), ChargeRequest{BillingKey: "bk_1", Amount: 3900})
	var tErr *TossError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "INVALID_CARD_EXPIRATION", tErr.Code)
	assert.Equal(t, "카드 유효기간이 만료되었습니다", tossMessage(err))
}

func TestProcessorErrorWithoutBodyFallsBack(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := g.ConfirmPayment(context.Background(), "pk", "order", 3900)
	require.Error(t, err)
	assert.Equal(t, "결제 실패", tossMessage(err))
}

func TestDeleteBillingKey(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		var calls int32
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		require.NoError(t, g.DeleteBillingKey(context.Background(), "bk_1"))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("already deleted counts as success", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		assert.NoError(t, g.DeleteBillingKey(context.Background(), "bk_gone"))
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls int32
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":"FORBIDDEN_REQUEST","message":"허용되지 않은 요청입니다"}`))
		})
		err := g.DeleteBillingKey(context.Background(), "bk_1")
		var tErr *TossError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, http.StatusForbidden, tErr.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}
