package middleware

import (
	"bytes"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	svix "github.com/svix/svix-webhooks/go"
	"sajupia/pkg/utils"
)

const maxWebhookBody = 1 << 20

// WebhookSignatureMiddleware rejects deliveries whose Svix signature does not
// verify. The body is restored for the handler. A missing or malformed secret
// rejects every delivery.
func WebhookSignatureMiddleware(secret string) gin.HandlerFunc {
	var wh *svix.Webhook
	if strings.TrimPrefix(secret, "whsec_") == "" {
		logrus.Error("webhook secret not set, all webhook deliveries will be rejected")
	} else if w, err := svix.NewWebhook(secret); err != nil {
		logrus.WithError(err).Error("webhook secret invalid, all webhook deliveries will be rejected")
	} else {
		wh = w
	}

	return func(c *gin.Context) {
		if wh == nil {
			utils.RespondAppError(c, utils.ErrUnauthorized.WithMessage("invalid webhook signature"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			utils.RespondAppError(c, utils.ErrInvalidRequest)
			return
		}

		if err := wh.Verify(body, c.Request.Header); err != nil {
			logrus.WithField("trace_id", c.GetString("trace_id")).WithError(err).Warn("webhook rejected")
			utils.RespondAppError(c, utils.ErrUnauthorized.WithMessage("invalid webhook signature"))
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
