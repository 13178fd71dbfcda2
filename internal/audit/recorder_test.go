package audit

import (
	"production-service/internal/model"
	"production-service/internal/testdb"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var actor = model.Actor{ID: 7, Name: "somsak", Role: model.RoleOperator, ClientInfo: "10.0.0.5 test-agent"}

func TestRecordWritesSnapshot(t *testing.T) {
	db := testdb.Open(t)
	r := NewRecorder(zap.NewNop())

	oldValue := map[string]int{"quantity": 10}
	newValue := map[string]int{"quantity": 20}
	r.Record(db, "defect_entries", 42, model.AuditActionUpdate, oldValue, newValue, actor)

	var record model.AuditRecord
	require.NoError(t, db.Where("table_name = ?", "defect_entries").First(&record).Error)
	assert.EqualValues(t, 42, record.RecordID)
	assert.Equal(t, model.AuditActionUpdate, record.Action)
	assert.JSONEq(t, `{"quantity":10}`, string(record.OldValue))
	assert.JSONEq(t, `{"quantity":20}`, string(record.NewValue))
	assert.Equal(t, actor.ID, record.ActorID)
	assert.Equal(t, actor.Name, record.ActorName)
	assert.Equal(t, actor.ClientInfo, record.ClientInfo)
}

func TestRecordCreateHasNoOldValue(t *testing.T) {
	db := testdb.Open(t)
	r := NewRecorder(zap.NewNop())

	r.Record(db, "production_orders", 1, model.AuditActionCreate, nil, map[string]string{"po_number": "PO-1"}, actor)

	var record model.AuditRecord
	require.NoError(t, db.Where("table_name = ?", "production_orders").First(&record).Error)
	assert.Empty(t, record.OldValue)
	assert.NotEmpty(t, record.NewValue)
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	db := testdb.Open(t)
	r := NewRecorder(zap.NewNop())

	// Remove the table so the insert fails; Record must not panic or error.
	require.NoError(t, db.Migrator().DropTable(&model.AuditRecord{}))

	assert.NotPanics(t, func() {
		r.Record(db, "operations", 9, model.AuditActionDelete, map[string]int{"x": 1}, nil, actor)
	})
}
