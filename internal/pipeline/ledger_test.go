package pipeline

import (
	"production-service/internal/apperr"
	"production-service/internal/audit"
	"production-service/internal/model"
	"production-service/internal/testdb"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	admin    = model.Actor{ID: 1, Name: "admin", Role: model.RoleAdmin}
	operator = model.Actor{ID: 2, Name: "somsak", Role: model.RoleOperator}
)

func newLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t)
	log := zap.NewNop()
	return NewLedger(db, audit.NewRecorder(log), log), db
}

func createOrder(t *testing.T, l *Ledger, poNumber string, qty int) *model.ProductionOrder {
	t.Helper()
	po, err := l.CreateOrder(CreateOrderInput{
		PONumber:        poNumber,
		ItemName:        "Harness A-113",
		OrderedQuantity: qty,
	}, operator)
	require.NoError(t, err)
	return po
}

func getOp(t *testing.T, db *gorm.DB, poID uint, stepCode string) *model.Operation {
	t.Helper()
	var op model.Operation
	require.NoError(t, db.Where("production_order_id = ? AND step_code = ?", poID, stepCode).Preload("Defects").First(&op).Error)
	return &op
}

func TestCreateOrderInstantiatesPipeline(t *testing.T) {
	l, _ := newLedger(t)

	po := createOrder(t, l, "PO-1001", 100)

	assert.Equal(t, model.OrderStatusCreated, po.Status)
	assert.Equal(t, "CUT", po.CurrentStep)
	require.Len(t, po.Operations, 5)
	for i, op := range po.Operations {
		assert.Equal(t, 100, op.InputQuantity)
		assert.Nil(t, op.OutputQuantity)
		assert.Nil(t, op.StartedAt)
		if i > 0 {
			assert.Greater(t, op.StepOrder, po.Operations[i-1].StepOrder)
		}
	}
}

func TestCreateOrderValidation(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.CreateOrder(CreateOrderInput{ItemName: "x", OrderedQuantity: 10}, operator)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.CreateOrder(CreateOrderInput{PONumber: "PO-1", ItemName: "x", OrderedQuantity: 0}, operator)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.CreateOrder(CreateOrderInput{PONumber: "PO-1", ItemName: "x", OrderedQuantity: 10}, model.Actor{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	createOrder(t, l, "PO-1002", 10)
	_, err = l.CreateOrder(CreateOrderInput{PONumber: "PO-1002", ItemName: "x", OrderedQuantity: 10}, operator)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStartOperation(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-2001", 100)

	op, err := l.StartOperation("PO-2001", "CUT", operator)
	require.NoError(t, err)
	require.NotNil(t, op.StartedAt)
	require.NotNil(t, op.OperatorID)
	assert.Equal(t, operator.ID, *op.OperatorID)

	var reloaded model.ProductionOrder
	require.NoError(t, db.First(&reloaded, po.ID).Error)
	assert.Equal(t, model.OrderStatusInProgress, reloaded.Status)

	_, err = l.StartOperation("PO-2001", "CUT", operator)
	assert.ErrorIs(t, err, apperr.ErrAlreadyStarted)

	_, err = l.StartOperation("PO-2001", "WELD", operator)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = l.StartOperation("PO-9999", "CUT", operator)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordDefectComputesOutput(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-3001", 100)
	_, err := l.StartOperation("PO-3001", "CUT", operator)
	require.NoError(t, err)

	cut := getOp(t, db, po.ID, "CUT")
	md := testdb.Defect(t, db, "Loose Crimp") // reworkable

	op, err := l.RecordDefect(cut.ID, DefectInput{
		MasterDefectID: md.ID,
		Quantity:       10,
		QuantityRework: 4,
	}, operator)
	require.NoError(t, err)
	require.NotNil(t, op.OutputQuantity)
	assert.Equal(t, 94, *op.OutputQuantity)

	// Entry carries the snapshot, not just a reference.
	require.Len(t, op.Defects, 1)
	assert.Equal(t, "Loose Crimp", op.Defects[0].Name)
	assert.True(t, op.Defects[0].Reworkable)

	// Replacements restore lost units.
	op, err = l.RecordDefect(cut.ID, DefectInput{
		MasterDefectID:      md.ID,
		Quantity:            10,
		QuantityRework:      4,
		QuantityReplacement: 3,
	}, operator)
	require.NoError(t, err)
	assert.Equal(t, 97, *op.OutputQuantity)
	require.Len(t, op.Defects, 1)
}

func TestRecordDefectIdempotent(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-3002", 100)
	_, err := l.StartOperation("PO-3002", "CUT", operator)
	require.NoError(t, err)

	cut := getOp(t, db, po.ID, "CUT")
	md := testdb.Defect(t, db, "Wire Miscut")
	in := DefectInput{MasterDefectID: md.ID, Quantity: 10}

	first, err := l.RecordDefect(cut.ID, in, operator)
	require.NoError(t, err)
	second, err := l.RecordDefect(cut.ID, in, operator)
	require.NoError(t, err)

	assert.Equal(t, *first.OutputQuantity, *second.OutputQuantity)
	assert.Equal(t, 90, *second.OutputQuantity)
	require.Len(t, second.Defects, 1)
}

func TestRecordDefectValidation(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-3003", 100)
	cut := getOp(t, db, po.ID, "CUT")
	md := testdb.Defect(t, db, "Loose Crimp")

	_, err := l.RecordDefect(cut.ID, DefectInput{MasterDefectID: md.ID, Quantity: 0}, operator)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.RecordDefect(cut.ID, DefectInput{MasterDefectID: md.ID, Quantity: 5, QuantityRework: 6}, operator)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.RecordDefect(cut.ID, DefectInput{MasterDefectID: 9999, Quantity: 5}, operator)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordDefectBeforeStartLeavesOutputUndefined(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-3004", 100)
	cut := getOp(t, db, po.ID, "CUT")
	md := testdb.Defect(t, db, "Wire Miscut")

	op, err := l.RecordDefect(cut.ID, DefectInput{MasterDefectID: md.ID, Quantity: 10}, operator)
	require.NoError(t, err)
	require.Len(t, op.Defects, 1)
	assert.Nil(t, op.OutputQuantity)
}

func TestDeleteDefectRecomputesOutput(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-3005", 100)
	_, err := l.StartOperation("PO-3005", "CUT", operator)
	require.NoError(t, err)

	cut := getOp(t, db, po.ID, "CUT")
	md := testdb.Defect(t, db, "Wire Miscut")
	op, err := l.RecordDefect(cut.ID, DefectInput{MasterDefectID: md.ID, Quantity: 10}, operator)
	require.NoError(t, err)
	assert.Equal(t, 90, *op.OutputQuantity)

	op, err = l.DeleteDefect(cut.ID, op.Defects[0].ID, operator)
	require.NoError(t, err)
	assert.Empty(t, op.Defects)
	assert.Equal(t, 100, *op.OutputQuantity)

	_, err = l.DeleteDefect(cut.ID, 9999, operator)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCompleteOperationAdvancesOrder(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-4001", 100)
	_, err := l.StartOperation("PO-4001", "CUT", operator)
	require.NoError(t, err)

	cut := getOp(t, db, po.ID, "CUT")
	md := testdb.Defect(t, db, "Loose Crimp")
	_, err = l.RecordDefect(cut.ID, DefectInput{MasterDefectID: md.ID, Quantity: 10, QuantityRework: 4}, operator)
	require.NoError(t, err)

	updated, err := l.CompleteOperation("PO-4001", "CUT", CompleteInput{ResourceFactor: 1.2, LineID: "L1"}, operator)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusInProgress, updated.Status)
	assert.Equal(t, "CRIMP", updated.CurrentStep)

	cut = getOp(t, db, po.ID, "CUT")
	require.NotNil(t, cut.EndedAt)
	assert.Equal(t, 1.2, cut.ResourceFactor)
	assert.Equal(t, "L1", cut.LineID)
	assert.Equal(t, 94, *cut.OutputQuantity)

	crimp := getOp(t, db, po.ID, "CRIMP")
	assert.Equal(t, 94, crimp.InputQuantity)
	assert.Nil(t, crimp.OutputQuantity)
}

func TestCompleteOperationStateErrors(t *testing.T) {
	l, _ := newLedger(t)
	createOrder(t, l, "PO-4002", 100)

	// Not started yet
	_, err := l.CompleteOperation("PO-4002", "CUT", CompleteInput{ResourceFactor: 1}, operator)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.StartOperation("PO-4002", "CUT", operator)
	require.NoError(t, err)
	_, err = l.CompleteOperation("PO-4002", "CUT", CompleteInput{ResourceFactor: 1}, operator)
	require.NoError(t, err)

	// Re-completing needs admin
	_, err = l.CompleteOperation("PO-4002", "CUT", CompleteInput{ResourceFactor: 1}, operator)
	assert.ErrorIs(t, err, apperr.ErrAlreadyCompleted)

	_, err = l.CompleteOperation("PO-4002", "CUT", CompleteInput{ResourceFactor: 1.5, EndTime: time.Now()}, admin)
	assert.NoError(t, err)
}

func TestDefectOnCompletedOperationRequiresAdmin(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-4003", 100)
	_, err := l.StartOperation("PO-4003", "CUT", operator)
	require.NoError(t, err)
	_, err = l.CompleteOperation("PO-4003", "CUT", CompleteInput{ResourceFactor: 1}, operator)
	require.NoError(t, err)

	cut := getOp(t, db, po.ID, "CUT")
	md := testdb.Defect(t, db, "Wire Miscut")

	_, err = l.RecordDefect(cut.ID, DefectInput{MasterDefectID: md.ID, Quantity: 5}, operator)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// The same edit as admin succeeds and cascades like a completion would.
	op, err := l.RecordDefect(cut.ID, DefectInput{MasterDefectID: md.ID, Quantity: 5}, admin)
	require.NoError(t, err)
	assert.Equal(t, 95, *op.OutputQuantity)

	crimp := getOp(t, db, po.ID, "CRIMP")
	assert.Equal(t, 95, crimp.InputQuantity)

	_, err = l.DeleteDefect(cut.ID, op.Defects[0].ID, operator)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = l.DeleteDefect(cut.ID, op.Defects[0].ID, admin)
	require.NoError(t, err)
	crimp = getOp(t, db, po.ID, "CRIMP")
	assert.Equal(t, 100, crimp.InputQuantity)
}

func TestUpdateOrderQuantity(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-5001", 100)

	_, err := l.UpdateOrderQuantity("PO-5001", 120, operator)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = l.UpdateOrderQuantity("PO-5001", 0, admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := l.UpdateOrderQuantity("PO-5001", 120, admin)
	require.NoError(t, err)
	assert.Equal(t, 120, updated.OrderedQuantity)

	cut := getOp(t, db, po.ID, "CUT")
	assert.Equal(t, 120, cut.InputQuantity)
	// First step never started: chain halts there.
	assert.Nil(t, cut.OutputQuantity)
	crimp := getOp(t, db, po.ID, "CRIMP")
	assert.Equal(t, 100, crimp.InputQuantity)
}

func TestUpdateOrderQuantityCascadesThroughCompletedSteps(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-5002", 100)
	_, err := l.StartOperation("PO-5002", "CUT", operator)
	require.NoError(t, err)
	_, err = l.CompleteOperation("PO-5002", "CUT", CompleteInput{ResourceFactor: 1}, operator)
	require.NoError(t, err)

	_, err = l.UpdateOrderQuantity("PO-5002", 80, admin)
	require.NoError(t, err)

	cut := getOp(t, db, po.ID, "CUT")
	assert.Equal(t, 80, cut.InputQuantity)
	assert.Equal(t, 80, *cut.OutputQuantity)
	crimp := getOp(t, db, po.ID, "CRIMP")
	assert.Equal(t, 80, crimp.InputQuantity)
}

func TestDeleteOrderCascades(t *testing.T) {
	l, db := newLedger(t)
	po := createOrder(t, l, "PO-6001", 100)
	_, err := l.StartOperation("PO-6001", "CUT", operator)
	require.NoError(t, err)
	cut := getOp(t, db, po.ID, "CUT")
	md := testdb.Defect(t, db, "Wire Miscut")
	_, err = l.RecordDefect(cut.ID, DefectInput{MasterDefectID: md.ID, Quantity: 5}, operator)
	require.NoError(t, err)

	err = l.DeleteOrder("PO-6001", operator)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, l.DeleteOrder("PO-6001", admin))

	_, err = l.GetOrder("PO-6001")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var opCount, defectCount int64
	require.NoError(t, db.Model(&model.Operation{}).Where("production_order_id = ?", po.ID).Count(&opCount).Error)
	require.NoError(t, db.Model(&model.DefectEntry{}).Where("operation_id = ?", cut.ID).Count(&defectCount).Error)
	assert.Zero(t, opCount)
	assert.Zero(t, defectCount)
}

func TestAuditRecordsWritten(t *testing.T) {
	l, db := newLedger(t)
	createOrder(t, l, "PO-7001", 100)

	var count int64
	require.NoError(t, db.Model(&model.AuditRecord{}).Where("table_name = ?", "production_orders").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err := l.StartOperation("PO-7001", "CUT", operator)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.AuditRecord{}).Where("table_name = ?", "operations").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
