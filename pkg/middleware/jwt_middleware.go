package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"sajupia/internal/models/db_models"
	"sajupia/pkg/utils"
)

const (
	ContextClerkUserID  = "clerk_user_id"
	ContextSessionEmail = "session_email"
	ContextUserID       = "user_id"
)

// SessionAuthMiddleware verifies the Clerk session token and stores its
// subject in the context.
func SessionAuthMiddleware(verifier utils.SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondAppError(c, utils.ErrUnauthorized.WithMessage("Authorization header missing or invalid"))
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := verifier.Verify(tokenString)
		if err != nil {
			utils.RespondAppError(c, utils.ErrUnauthorized.WithMessage("Invalid or expired token"))
			return
		}

		c.Set(ContextClerkUserID, claims.Subject)
		c.Set(ContextSessionEmail, claims.Email)
		c.Next()
	}
}

type UserResolver interface {
	GetOrCreateUser(ctx context.Context, clerkUserID, emailHint string) (*db_models.User, error)
}

// ResolveUserMiddleware maps the session subject to the local user id,
// provisioning the user on first request.
func ResolveUserMiddleware(resolver UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		clerkUserID := c.GetString(ContextClerkUserID)
		if clerkUserID == "" {
			utils.RespondAppError(c, utils.ErrUnauthorized)
			return
		}

		user, err := resolver.GetOrCreateUser(c.Request.Context(), clerkUserID, c.GetString(ContextSessionEmail))
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}

		c.Set(ContextUserID, user.ID.String())
		c.Next()
	}
}
