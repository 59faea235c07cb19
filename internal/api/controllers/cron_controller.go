package controllers

import (
	"github.com/gin-gonic/gin"
	"sajupia/internal/services"
	"sajupia/pkg/utils"
)

type CronController struct {
	billingService services.BillingService
}

func NewCronController(billingService services.BillingService) *CronController {
	return &CronController{billingService: billingService}
}

// DailyBilling godoc
// @Summary Run the daily renewal pass
// @Description Called by the external scheduler with the shared cron secret
// @Tags Cron
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /cron/daily-billing [post]
func (cc *CronController) DailyBilling(c *gin.Context) {
	summary, err := cc.billingService.ProcessDailyBilling(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	message := "Daily billing completed"
	if summary.Skipped {
		message = "Daily billing already running"
	}
	utils.RespondSuccess(c, summary, message)
}
