package controllers

import (
	"github.com/gin-gonic/gin"
	"sajupia/internal/models/request_models"
	"sajupia/internal/services"
	"sajupia/pkg/utils"
)

type PaymentController struct {
	paymentService services.PaymentService
}

func NewPaymentController(paymentService services.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

// ConfirmPayment godoc
// @Summary Confirm a checkout payment
// @Description Confirms a widget payment with Toss and grants one pro month
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body request_models.ConfirmPaymentRequest true "Confirm Payment Request"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payments/confirm [post]
func (p *PaymentController) ConfirmPayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request request_models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondAppError(c, utils.ErrInvalidRequest.WithMessage("paymentKey, orderId and amount are required"))
		return
	}

	result, err := p.paymentService.ConfirmPayment(c.Request.Context(), userID, request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Payment confirmed")
}
