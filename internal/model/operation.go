package model

import "time"

// Operation records one production order's pass through one pipeline step.
// OutputQuantity stays nil until the step has started and defects have been
// recorded (or the step is completed).
type Operation struct {
	ID                uint       `json:"id" gorm:"primarykey"`
	ProductionOrderID uint       `json:"production_order_id" gorm:"not null;uniqueIndex:uk_order_step"`
	StepCode          string     `json:"step_code" gorm:"type:varchar(50);not null;uniqueIndex:uk_order_step"`
	StepOrder         int        `json:"step_order" gorm:"not null;index"`
	InputQuantity     int        `json:"input_quantity" gorm:"not null"`
	OutputQuantity    *int       `json:"output_quantity"`
	StartedAt         *time.Time `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at"`
	OperatorID        *uint      `json:"operator_id"`
	LineID            string     `json:"line_id" gorm:"type:varchar(50)"`
	ResourceFactor    float64    `json:"resource_factor" gorm:"default:1"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Defects []DefectEntry `json:"defects,omitempty" gorm:"foreignKey:OperationID;constraint:OnDelete:CASCADE"`
}

// Started reports whether the operation has been started
func (op *Operation) Started() bool {
	return op.StartedAt != nil
}

// Completed reports whether the operation has been completed
func (op *Operation) Completed() bool {
	return op.EndedAt != nil
}
