package request_models

import (
	"regexp"
	"strings"
	"time"
)

var birthTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type CreateTestRequest struct {
	Name      string  `json:"name" binding:"required,max=50"`
	BirthDate string  `json:"birth_date" binding:"required"`
	BirthTime *string `json:"birth_time"`
	Gender    string  `json:"gender" binding:"required,oneof=male female"`
}

// Validate checks the formats binding tags cannot express. It returns a
// user-facing message or "".
func (r *CreateTestRequest) Validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return "name is required"
	}
	if _, err := time.Parse(time.DateOnly, r.BirthDate); err != nil {
		return "birth_date must be YYYY-MM-DD"
	}
	if r.BirthTime != nil && *r.BirthTime != "" && !birthTimePattern.MatchString(*r.BirthTime) {
		return "birth_time must be HH:MM"
	}
	if r.Gender != "male" && r.Gender != "female" {
		return "gender must be male or female"
	}
	return ""
}

type StreamTestRequest struct {
	Model string `json:"model"`
}

type ListTestsQuery struct {
	Name   string `form:"name"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
