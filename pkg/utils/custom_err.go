package utils

import (
	"errors"
	"net/http"
)

type ErrorCode string

// AppError carries a stable machine code and the HTTP status it maps to.
// Two AppErrors match under errors.Is when their codes are equal, so a copy
// with a more specific message still matches its sentinel.
type AppError struct {
	Code    ErrorCode
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying msg.
func (e *AppError) WithMessage(msg string) *AppError {
	if msg == "" {
		return e
	}
	return &AppError{Code: e.Code, Status: e.Status, Message: msg}
}

func newAppError(code ErrorCode, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

// ledger
var (
	ErrSubscriptionNotFound = newAppError("SUBSCRIPTION_NOT_FOUND", http.StatusNotFound, "subscription not found")
	ErrAlreadyPro           = newAppError("ALREADY_PRO", http.StatusConflict, "already subscribed to pro")
	ErrNotPro               = newAppError("NOT_PRO", http.StatusBadRequest, "no active pro subscription")
	ErrAlreadyCancelled     = newAppError("ALREADY_CANCELLED", http.StatusConflict, "subscription is already scheduled for cancellation")
	ErrNotCancelled         = newAppError("NOT_CANCELLED", http.StatusBadRequest, "subscription is not scheduled for cancellation")
	ErrPeriodExpired        = newAppError("PERIOD_EXPIRED", http.StatusBadRequest, "billing period has already ended")
	ErrPaymentFailed        = newAppError("PAYMENT_FAILED", http.StatusInternalServerError, "payment failed")
)

// tests
var (
	ErrInsufficientTests     = newAppError("INSUFFICIENT_TESTS", http.StatusForbidden, "no remaining tests")
	ErrTestNotFound          = newAppError("TEST_NOT_FOUND", http.StatusNotFound, "test not found")
	ErrTestCreateFailed      = newAppError("TEST_CREATE_FAILED", http.StatusInternalServerError, "failed to create test")
	ErrGeminiAPIFailed       = newAppError("GEMINI_API_FAILED", http.StatusInternalServerError, "analysis generation failed")
	ErrAnalysisAlreadyExists = newAppError("ANALYSIS_ALREADY_EXISTS", http.StatusBadRequest, "analysis already exists")
	ErrStreamInProgress      = newAppError("STREAM_IN_PROGRESS", http.StatusConflict, "analysis is already streaming")
)

// payments
var (
	ErrAmountMismatch = newAppError("AMOUNT_MISMATCH", http.StatusBadRequest, "payment amount does not match the plan price")
	ErrTossAPI        = newAppError("TOSS_API_ERROR", http.StatusBadRequest, "payment confirmation failed")
)

// auth / accounts
var (
	ErrUnauthorized     = newAppError("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrEmailMissing     = newAppError("EMAIL_MISSING", http.StatusBadRequest, "user has no email address")
	ErrUserCreateFailed = newAppError("USER_CREATE_FAILED", http.StatusInternalServerError, "failed to create user")
	ErrSubCreateFailed  = newAppError("SUB_CREATE_FAILED", http.StatusInternalServerError, "failed to create subscription")
	ErrUserDeleteFailed = newAppError("USER_DELETE_FAILED", http.StatusInternalServerError, "failed to delete user")
	ErrInvalidRequest   = newAppError("INVALID_REQUEST", http.StatusBadRequest, "invalid request")
)

var ErrInternal = newAppError("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
