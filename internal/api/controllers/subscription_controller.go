package controllers

import (
	"github.com/gin-gonic/gin"
	"sajupia/internal/models/request_models"
	"sajupia/internal/services"
	"sajupia/pkg/utils"
)

type SubscriptionController struct {
	subscriptionService services.SubscriptionService
}

func NewSubscriptionController(subscriptionService services.SubscriptionService) *SubscriptionController {
	return &SubscriptionController{
		subscriptionService: subscriptionService,
	}
}

// GetStatus godoc
// @Summary Get the caller's subscription
// @Tags Subscription
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/status [get]
func (s *SubscriptionController) GetStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	status, err := s.subscriptionService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, status, "Subscription retrieved successfully")
}

// Create godoc
// @Summary Upgrade to pro with a billing key
// @Description Charges the first month and stores the billing key for renewals
// @Tags Subscription
// @Accept json
// @Produce json
// @Param request body request_models.CreateSubscriptionRequest true "Billing key"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/create [post]
func (s *SubscriptionController) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req request_models.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondAppError(c, utils.ErrInvalidRequest.WithMessage("billing_key is required"))
		return
	}

	status, err := s.subscriptionService.ActivatePro(c.Request.Context(), userID, req.BillingKey)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, status, "Subscription activated")
}

// Cancel godoc
// @Summary Cancel at period end
// @Tags Subscription
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/cancel [post]
func (s *SubscriptionController) Cancel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	status, err := s.subscriptionService.Cancel(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, status, "Subscription will end at the current period")
}

// Reactivate godoc
// @Summary Undo a pending cancellation
// @Tags Subscription
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /subscription/reactivate [post]
func (s *SubscriptionController) Reactivate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	status, err := s.subscriptionService.Reactivate(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, status, "Subscription reactivated")
}
