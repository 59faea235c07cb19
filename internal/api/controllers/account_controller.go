package controllers

import (
	"github.com/gin-gonic/gin"
	"sajupia/internal/models/request_models"
	"sajupia/internal/services"
	"sajupia/pkg/utils"
)

type AccountController struct {
	accountService services.AccountServiceInterface
}

func NewAccountController(accountService services.AccountServiceInterface) *AccountController {
	return &AccountController{
		accountService: accountService,
	}
}

// Webhook godoc
// @Summary Identity provider webhook
// @Description Handles user.created and user.deleted deliveries signed with Svix
// @Tags Accounts
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /auth/webhook [post]
func (a *AccountController) Webhook(c *gin.Context) {
	var event request_models.ClerkWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil || event.Type == "" {
		utils.RespondAppError(c, utils.ErrInvalidRequest.WithMessage("Invalid webhook payload"))
		return
	}

	if err := a.accountService.HandleWebhookEvent(c.Request.Context(), event); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{"type": event.Type}, "Webhook processed")
}
