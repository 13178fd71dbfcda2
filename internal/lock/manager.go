// Package lock implements the exclusive per-production-order edit lock. One
// user holds the lock at a time; acquisition by the owner is idempotent and
// there is no queueing. Transitions are compare-and-set updates on the order
// row so two simultaneous acquires cannot both succeed.
package lock

import (
	"errors"
	"production-service/internal/apperr"
	"production-service/internal/audit"
	"production-service/internal/model"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager grants and releases edit locks on production orders
type Manager struct {
	db    *gorm.DB
	audit *audit.Recorder
	log   *zap.Logger
}

// NewManager creates a lock Manager over the given database
func NewManager(db *gorm.DB, recorder *audit.Recorder, log *zap.Logger) *Manager {
	return &Manager{db: db, audit: recorder, log: log}
}

// Status describes the lock state of a production order for one caller
type Status struct {
	IsLocked bool            `json:"is_locked"`
	IsOwner  bool            `json:"is_owner"`
	Lock     *model.EditLock `json:"lock,omitempty"`
}

// Acquire grants the edit lock to the actor. Re-acquiring an already-held
// lock succeeds; a lock held by another user fails with a conflict that
// reports the current owner.
func (m *Manager) Acquire(poNumber string, actor model.Actor) (*model.EditLock, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var granted *model.EditLock
	err := m.db.Transaction(func(tx *gorm.DB) error {
		po, err := getOrder(tx, poNumber)
		if err != nil {
			return err
		}

		if po.Lock != nil {
			if po.Lock.OwnerID == actor.ID {
				// Idempotent re-entry by the current owner.
				granted = po.Lock
				return nil
			}
			return &apperr.ConflictError{
				OwnerID:   po.Lock.OwnerID,
				OwnerName: po.Lock.OwnerName,
				LockedAt:  po.Lock.LockedAt,
			}
		}

		newLock := model.EditLock{
			OwnerID:   actor.ID,
			OwnerName: actor.Name,
			LockedAt:  time.Now(),
		}

		// Compare-and-set: only an unlocked row can be claimed, so two
		// concurrent acquires cannot both succeed.
		result := tx.Model(&model.ProductionOrder{}).
			Where("id = ? AND lock_owner_id IS NULL", po.ID).
			Updates(map[string]interface{}{
				"lock_owner_id":   newLock.OwnerID,
				"lock_owner_name": newLock.OwnerName,
				"lock_locked_at":  newLock.LockedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Someone else claimed the lock between the read and the update.
			current, err := getOrder(tx, poNumber)
			if err != nil {
				return err
			}
			if current.Lock != nil {
				return &apperr.ConflictError{
					OwnerID:   current.Lock.OwnerID,
					OwnerName: current.Lock.OwnerName,
					LockedAt:  current.Lock.LockedAt,
				}
			}
			return apperr.Validationf("lock acquisition failed, retry")
		}

		granted = &newLock
		m.audit.Record(tx, "production_orders", po.ID, model.AuditActionUpdate,
			map[string]interface{}{"lock": nil},
			map[string]interface{}{"lock": newLock},
			actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("Lock acquired",
		zap.String("po_number", poNumber),
		zap.Uint("owner_id", actor.ID))
	return granted, nil
}

// Release returns the lock held by the actor. Releasing an unlocked order is
// a no-op; releasing another user's lock is forbidden.
func (m *Manager) Release(poNumber string, actor model.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		po, err := getOrder(tx, poNumber)
		if err != nil {
			return err
		}
		if po.Lock == nil {
			return nil
		}
		if po.Lock.OwnerID != actor.ID {
			return apperr.Forbiddenf("lock is held by %s", po.Lock.OwnerName)
		}

		old := *po.Lock
		result := tx.Model(&model.ProductionOrder{}).
			Where("id = ? AND lock_owner_id = ?", po.ID, actor.ID).
			Updates(map[string]interface{}{
				"lock_owner_id":   nil,
				"lock_owner_name": nil,
				"lock_locked_at":  nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			m.audit.Record(tx, "production_orders", po.ID, model.AuditActionUpdate,
				map[string]interface{}{"lock": old},
				map[string]interface{}{"lock": nil},
				actor)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.log.Info("Lock released",
		zap.String("po_number", poNumber),
		zap.Uint("owner_id", actor.ID))
	return nil
}

// ForceRelease unconditionally clears the lock regardless of owner. Admin
// only; the previous owner is captured in the audit log.
func (m *Manager) ForceRelease(poNumber string, actor model.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperr.Forbiddenf("only admin may force-release a lock")
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		po, err := getOrder(tx, poNumber)
		if err != nil {
			return err
		}
		if po.Lock == nil {
			return nil
		}

		old := *po.Lock
		if err := tx.Model(&model.ProductionOrder{}).
			Where("id = ?", po.ID).
			Updates(map[string]interface{}{
				"lock_owner_id":   nil,
				"lock_owner_name": nil,
				"lock_locked_at":  nil,
			}).Error; err != nil {
			return err
		}
		m.audit.Record(tx, "production_orders", po.ID, model.AuditActionUpdate,
			map[string]interface{}{"lock": old},
			map[string]interface{}{"lock": nil, "forced": true},
			actor)

		m.log.Warn("Lock force-released",
			zap.String("po_number", poNumber),
			zap.Uint("previous_owner_id", old.OwnerID),
			zap.String("previous_owner_name", old.OwnerName),
			zap.Uint("admin_id", actor.ID))
		return nil
	})
	return err
}

// GetStatus reports the lock state of a production order from the caller's
// point of view. Read-only.
func (m *Manager) GetStatus(poNumber string, userID uint) (*Status, error) {
	po, err := getOrder(m.db, poNumber)
	if err != nil {
		return nil, err
	}

	status := &Status{}
	if po.Lock != nil {
		status.IsLocked = true
		status.IsOwner = po.Lock.OwnerID == userID
		status.Lock = po.Lock
	}
	return status, nil
}

func requireActor(actor model.Actor) error {
	if actor.IsZero() {
		return apperr.Validationf("actor is required")
	}
	return nil
}

func getOrder(tx *gorm.DB, poNumber string) (*model.ProductionOrder, error) {
	var po model.ProductionOrder
	err := tx.Where("po_number = ?", poNumber).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("production order %s", poNumber)
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}
