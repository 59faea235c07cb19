package db_models

import "github.com/google/uuid"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Test is one saju analysis request. AnalysisResult stays nil until a
// generation finishes.
type Test struct {
	BaseModel
	UserID         uuid.UUID `gorm:"type:uuid;index;not null"`
	Name           string    `gorm:"not null"`
	BirthDate      string    `gorm:"type:varchar(10);not null"`
	BirthTime      *string   `gorm:"type:varchar(5)"`
	Gender         Gender    `gorm:"type:varchar(8);not null"`
	AnalysisResult *string
}

func (t *Test) HasResult() bool {
	return t.AnalysisResult != nil && *t.AnalysisResult != ""
}
