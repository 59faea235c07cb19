package db_models

// User mirrors an identity-provider account. Email is the billing contact.
type User struct {
	BaseModel
	ClerkUserID string `gorm:"uniqueIndex;not null"`
	Email       string `gorm:"not null"`

	Subscription *Subscription `gorm:"foreignKey:UserID"`
}
