package model

import (
	"time"

	"gorm.io/gorm"
)

// Production order lifecycle states
const (
	OrderStatusCreated    = "Created"
	OrderStatusInProgress = "InProgress"
	OrderStatusCompleted  = "Completed"
)

// EditLock is the exclusive-edit lock on a production order. It is embedded
// as a pointer so the owner id, owner name and timestamp are either all set
// or all absent; there is no way to persist a partial lock.
type EditLock struct {
	OwnerID   uint      `json:"owner_id"`
	OwnerName string    `json:"owner_name" gorm:"type:varchar(100)"`
	LockedAt  time.Time `json:"locked_at"`
}

// ProductionOrder represents a manufacturing work order moving through the
// operation pipeline
type ProductionOrder struct {
	ID              uint           `json:"id" gorm:"primarykey"`
	PONumber        string         `json:"po_number" gorm:"type:varchar(50);uniqueIndex;not null"`
	ItemName        string         `json:"item_name" gorm:"type:varchar(255);not null"`
	OrderedQuantity int            `json:"ordered_quantity" gorm:"not null"`
	Status          string         `json:"status" gorm:"type:varchar(20);not null;default:Created"`
	CurrentStep     string         `json:"current_step" gorm:"type:varchar(50)"`
	UnitPrice       float64        `json:"unit_price"`
	MaterialCost    float64        `json:"material_cost"`
	Lock            *EditLock      `json:"lock,omitempty" gorm:"embedded;embeddedPrefix:lock_"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Operations []Operation `json:"operations,omitempty" gorm:"foreignKey:ProductionOrderID;constraint:OnDelete:CASCADE"`
}

// IsLocked reports whether any user holds the edit lock
func (po *ProductionOrder) IsLocked() bool {
	return po.Lock != nil
}

// IsLockedBy reports whether the given user holds the edit lock
func (po *ProductionOrder) IsLockedBy(userID uint) bool {
	return po.Lock != nil && po.Lock.OwnerID == userID
}
