// Package audit provides the append-only mutation log. Recording is
// best-effort: a failed audit write is logged and swallowed so it can never
// roll back the business mutation it describes.
package audit

import (
	"encoding/json"
	"production-service/internal/model"
	prom "production-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder appends audit records inside the caller's transaction
type Recorder struct {
	log *zap.Logger
}

// NewRecorder creates a Recorder that reports failures to the given logger
func NewRecorder(log *zap.Logger) *Recorder {
	return &Recorder{log: log}
}

// Record appends one audit record for a mutation that already succeeded.
// oldValue and newValue may be nil for creates and deletes respectively.
func (r *Recorder) Record(tx *gorm.DB, tableName string, recordID uint, action string, oldValue, newValue interface{}, actor model.Actor) {
	record := model.AuditRecord{
		TableName:  tableName,
		RecordID:   recordID,
		Action:     action,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ClientInfo: actor.ClientInfo,
	}

	var err error
	if record.OldValue, err = marshal(oldValue); err != nil {
		r.log.Warn("Failed to marshal audit old value",
			zap.String("table", tableName),
			zap.Uint("record_id", recordID),
			zap.Error(err))
	}
	if record.NewValue, err = marshal(newValue); err != nil {
		r.log.Warn("Failed to marshal audit new value",
			zap.String("table", tableName),
			zap.Uint("record_id", recordID),
			zap.Error(err))
	}

	if err := tx.Create(&record).Error; err != nil {
		// Counter is nil until InitMetrics runs, e.g. in unit tests.
		if prom.AuditFailuresCounter != nil {
			prom.AuditFailuresCounter.Inc()
		}
		r.log.Warn("Failed to write audit record",
			zap.String("table", tableName),
			zap.Uint("record_id", recordID),
			zap.String("action", action),
			zap.Uint("actor_id", actor.ID),
			zap.Error(err))
	}
}

func marshal(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}
