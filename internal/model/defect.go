package model

import (
	"time"

	"gorm.io/gorm"
)

// MasterDefect is the catalogue of known defect types. Reference data.
type MasterDefect struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	Name       string         `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Category   string         `json:"category" gorm:"type:varchar(50)"`
	Reworkable bool           `json:"reworkable" gorm:"default:false"`
	Machine    string         `json:"machine" gorm:"type:varchar(50)"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// DefectEntry records defects found during one operation. Name, Category and
// Reworkable are copied from the master defect at recording time so later
// edits to the catalogue never rewrite history.
type DefectEntry struct {
	ID                  uint      `json:"id" gorm:"primarykey"`
	OperationID         uint      `json:"operation_id" gorm:"not null;index"`
	MasterDefectID      uint      `json:"master_defect_id" gorm:"not null;index"`
	Name                string    `json:"name" gorm:"type:varchar(100);not null"`
	Category            string    `json:"category" gorm:"type:varchar(50)"`
	Reworkable          bool      `json:"reworkable"`
	Quantity            int       `json:"quantity" gorm:"not null"`
	QuantityRework      int       `json:"quantity_rework" gorm:"default:0"`
	QuantityNogood      int       `json:"quantity_nogood" gorm:"default:0"`
	QuantityReplacement int       `json:"quantity_replacement" gorm:"default:0"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EffectiveLoss is the portion of the defect quantity not recovered by rework
func (d *DefectEntry) EffectiveLoss() int {
	if d.Reworkable {
		return d.Quantity - d.QuantityRework
	}
	return d.Quantity
}
