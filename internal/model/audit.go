package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateProduct      = "CREATE_PRODUCT"
	ActionCreateUser         = "CREATE_USER"
	ActionUpdateUser         = "UPDATE_USER"
	ActionChangeRole         = "CHANGE_ROLE"
	ActionDisableUser        = "DISABLE_USER"
	ActionEnableUser         = "ENABLE_USER"
	ActionCreateGoodsReceipt = "CREATE_GOODS_RECEIPT"
	ActionUpdateThresholds   = "UPDATE_THRESHOLDS"
)

// AuditLog tracks Who, What, and When for critical system changes.
// Stock movements are audited by the stock ledger itself.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for automated changes
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
