package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"sajupia/pkg/utils"
)

// currentUserID reads the id stored by the user-resolving middleware. It
// writes the error response itself when the id is absent.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		utils.RespondAppError(c, utils.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondAppError(c, utils.ErrInvalidRequest.WithMessage("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}
