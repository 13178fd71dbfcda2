package lock

import (
	"production-service/internal/apperr"
	"production-service/internal/audit"
	"production-service/internal/model"
	"production-service/internal/testdb"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	admin = model.Actor{ID: 1, Name: "admin", Role: model.RoleAdmin}
	userA = model.Actor{ID: 2, Name: "somsak", Role: model.RoleOperator}
	userB = model.Actor{ID: 3, Name: "pranee", Role: model.RoleOperator}
)

func newManager(t *testing.T) (*Manager, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t)
	log := zap.NewNop()

	po := model.ProductionOrder{
		PONumber:        "PO-L1",
		ItemName:        "Harness B-207",
		OrderedQuantity: 40,
		Status:          model.OrderStatusCreated,
		CurrentStep:     "CUT",
	}
	require.NoError(t, db.Create(&po).Error)

	return NewManager(db, audit.NewRecorder(log), log), db
}

func TestAcquireGrantsLock(t *testing.T) {
	m, db := newManager(t)

	granted, err := m.Acquire("PO-L1", userA)
	require.NoError(t, err)
	assert.Equal(t, userA.ID, granted.OwnerID)
	assert.Equal(t, userA.Name, granted.OwnerName)
	assert.False(t, granted.LockedAt.IsZero())

	// The lock triple is persisted as a unit.
	var po model.ProductionOrder
	require.NoError(t, db.Where("po_number = ?", "PO-L1").First(&po).Error)
	require.NotNil(t, po.Lock)
	assert.Equal(t, userA.ID, po.Lock.OwnerID)
}

func TestAcquireIsIdempotentForOwner(t *testing.T) {
	m, _ := newManager(t)

	first, err := m.Acquire("PO-L1", userA)
	require.NoError(t, err)
	second, err := m.Acquire("PO-L1", userA)
	require.NoError(t, err)
	assert.Equal(t, first.OwnerID, second.OwnerID)
}

func TestAcquireConflictReportsOwner(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.Acquire("PO-L1", userA)
	require.NoError(t, err)

	_, err = m.Acquire("PO-L1", userB)
	require.Error(t, err)
	require.True(t, apperr.IsConflict(err))

	var conflict *apperr.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, userA.ID, conflict.OwnerID)
	assert.Equal(t, userA.Name, conflict.OwnerName)
	assert.False(t, conflict.LockedAt.IsZero())
}

func TestReleaseByNonOwnerForbidden(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.Acquire("PO-L1", userA)
	require.NoError(t, err)

	err = m.Release("PO-L1", userB)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestReleaseByOwnerUnlocks(t *testing.T) {
	m, db := newManager(t)

	_, err := m.Acquire("PO-L1", userA)
	require.NoError(t, err)
	require.NoError(t, m.Release("PO-L1", userA))

	var po model.ProductionOrder
	require.NoError(t, db.Where("po_number = ?", "PO-L1").First(&po).Error)
	assert.Nil(t, po.Lock)

	// userB can take the lock now
	_, err = m.Acquire("PO-L1", userB)
	assert.NoError(t, err)
}

func TestReleaseUnlockedIsNoOp(t *testing.T) {
	m, _ := newManager(t)
	assert.NoError(t, m.Release("PO-L1", userA))
}

func TestForceReleaseClearsAnyLock(t *testing.T) {
	m, db := newManager(t)

	_, err := m.Acquire("PO-L1", userA)
	require.NoError(t, err)

	// Non-admin may not force-release
	err = m.ForceRelease("PO-L1", userB)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, m.ForceRelease("PO-L1", admin))

	var po model.ProductionOrder
	require.NoError(t, db.Where("po_number = ?", "PO-L1").First(&po).Error)
	assert.Nil(t, po.Lock)

	// Force-release is audited with the previous owner
	var records []model.AuditRecord
	require.NoError(t, db.Where("table_name = ?", "production_orders").Order("id").Find(&records).Error)
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, admin.ID, last.ActorID)
	assert.Contains(t, string(last.OldValue), userA.Name)
}

func TestForceReleaseUnlockedSucceeds(t *testing.T) {
	m, _ := newManager(t)
	assert.NoError(t, m.ForceRelease("PO-L1", admin))
}

func TestGetStatus(t *testing.T) {
	m, _ := newManager(t)

	status, err := m.GetStatus("PO-L1", userA.ID)
	require.NoError(t, err)
	assert.False(t, status.IsLocked)
	assert.False(t, status.IsOwner)
	assert.Nil(t, status.Lock)

	_, err = m.Acquire("PO-L1", userA)
	require.NoError(t, err)

	status, err = m.GetStatus("PO-L1", userA.ID)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.True(t, status.IsOwner)
	require.NotNil(t, status.Lock)

	status, err = m.GetStatus("PO-L1", userB.ID)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.False(t, status.IsOwner)

	_, err = m.GetStatus("PO-MISSING", userA.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLockMissingOrderNotFound(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Acquire("PO-MISSING", userA)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
