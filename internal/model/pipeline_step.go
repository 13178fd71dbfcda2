package model

import "time"

// PipelineStep is one stage of the fixed manufacturing sequence. Reference
// data, seeded at migration and rarely changed afterwards. StepOrder is
// strictly increasing; gaps are allowed.
type PipelineStep struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Code      string    `json:"code" gorm:"type:varchar(50);uniqueIndex;not null"`
	Label     string    `json:"label" gorm:"type:varchar(100);not null"`
	StepOrder int       `json:"step_order" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPipeline is the wire-harness sequence used to seed an empty
// pipeline_steps table
func DefaultPipeline() []PipelineStep {
	return []PipelineStep{
		{Code: "CUT", Label: "Cable Cutting", StepOrder: 10},
		{Code: "CRIMP", Label: "Terminal Crimping", StepOrder: 20},
		{Code: "ASSY", Label: "Harness Assembly", StepOrder: 30},
		{Code: "TAPE", Label: "Taping", StepOrder: 40},
		{Code: "QC", Label: "Final Inspection", StepOrder: 50},
	}
}
