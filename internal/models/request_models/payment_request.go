package request_models

type ConfirmPaymentRequest struct {
	PaymentKey string `json:"paymentKey" binding:"required"`
	OrderID    string `json:"orderId" binding:"required"`
	Amount     int64  `json:"amount"`
}

type CreateSubscriptionRequest struct {
	BillingKey string `json:"billing_key" binding:"required"`
}
