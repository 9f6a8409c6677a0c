package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TipActivity is one recorded tip as seen by the activity feed. Addresses and
// comment identifiers are stored as 0x hex, the amount as a decimal string.
type TipActivity struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence            uint64    `gorm:"uniqueIndex"`
	Sender              string    `gorm:"index;size:42"`
	Recipient           string    `gorm:"index;size:42"`
	FeeRecipient        string    `gorm:"index;size:42"`
	Amount              string    `gorm:"not null"`
	RecipientCommentCID string    `gorm:"index;size:66"`
	SenderCommentCID    string    `gorm:"size:66"`
	RecordedAt          time.Time `gorm:"index"`
}

// BeforeCreate assigns a row identifier when the caller did not.
func (a *TipActivity) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TipActivity{})
}
