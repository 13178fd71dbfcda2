// Package pipeline implements the operation pipeline core: yield
// computation, the per-order operation ledger and downstream cascade
// propagation. All mutations run inside one database transaction so a
// partially propagated cascade can never be committed.
package pipeline

import (
	"errors"
	"production-service/internal/apperr"
	"production-service/internal/audit"
	"production-service/internal/model"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger owns the per-production-order operation instances and their defect
// entries
type Ledger struct {
	db    *gorm.DB
	audit *audit.Recorder
	log   *zap.Logger
}

// NewLedger creates a Ledger over the given database
func NewLedger(db *gorm.DB, recorder *audit.Recorder, log *zap.Logger) *Ledger {
	return &Ledger{db: db, audit: recorder, log: log}
}

// CreateOrderInput carries the fields for registering a production order
type CreateOrderInput struct {
	PONumber        string
	ItemName        string
	OrderedQuantity int
	UnitPrice       float64
	MaterialCost    float64
}

// DefectInput carries the quantities for recording a defect against an
// operation. The master defect supplies the name/category/reworkable
// snapshot.
type DefectInput struct {
	MasterDefectID      uint
	Quantity            int
	QuantityRework      int
	QuantityNogood      int
	QuantityReplacement int
}

// CompleteInput carries the fields recorded at operation completion
type CompleteInput struct {
	ResourceFactor float64
	LineID         string
	EndTime        time.Time
}

// CreateOrder registers a production order and instantiates one operation per
// pipeline step
func (l *Ledger) CreateOrder(in CreateOrderInput, actor model.Actor) (*model.ProductionOrder, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if in.PONumber == "" {
		return nil, apperr.Validationf("po number is required")
	}
	if in.ItemName == "" {
		return nil, apperr.Validationf("item name is required")
	}
	if in.OrderedQuantity <= 0 {
		return nil, apperr.Validationf("ordered quantity must be positive")
	}

	var po model.ProductionOrder
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.ProductionOrder{}).Where("po_number = ?", in.PONumber).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Validationf("production order %s already exists", in.PONumber)
		}

		steps, err := loadSteps(tx)
		if err != nil {
			return err
		}

		po = model.ProductionOrder{
			PONumber:        in.PONumber,
			ItemName:        in.ItemName,
			OrderedQuantity: in.OrderedQuantity,
			UnitPrice:       in.UnitPrice,
			MaterialCost:    in.MaterialCost,
			Status:          model.OrderStatusCreated,
			CurrentStep:     steps[0].Code,
		}
		if err := tx.Create(&po).Error; err != nil {
			return err
		}

		if err := l.instantiatePipeline(tx, &po, steps); err != nil {
			return err
		}

		l.audit.Record(tx, "production_orders", po.ID, model.AuditActionCreate, nil, po, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Production order created",
		zap.String("po_number", po.PONumber),
		zap.Int("ordered_quantity", po.OrderedQuantity),
		zap.Uint("actor_id", actor.ID))
	return l.GetOrder(po.PONumber)
}

// instantiatePipeline creates one operation per pipeline step with the
// ordered quantity as the planning input
func (l *Ledger) instantiatePipeline(tx *gorm.DB, po *model.ProductionOrder, steps []model.PipelineStep) error {
	operations := make([]model.Operation, 0, len(steps))
	for _, step := range steps {
		operations = append(operations, model.Operation{
			ProductionOrderID: po.ID,
			StepCode:          step.Code,
			StepOrder:         step.StepOrder,
			InputQuantity:     po.OrderedQuantity,
			ResourceFactor:    1,
		})
	}
	return tx.Create(&operations).Error
}

// GetOrder returns a production order with its operations and defects
func (l *Ledger) GetOrder(poNumber string) (*model.ProductionOrder, error) {
	var po model.ProductionOrder
	err := l.db.
		Preload("Operations", func(db *gorm.DB) *gorm.DB { return db.Order("step_order") }).
		Preload("Operations.Defects").
		Where("po_number = ?", poNumber).
		First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("production order %s", poNumber)
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// ListOrders returns all production orders, newest first
func (l *Ledger) ListOrders() ([]model.ProductionOrder, error) {
	var orders []model.ProductionOrder
	if err := l.db.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// StartOperation marks a pipeline step started and records the operator
func (l *Ledger) StartOperation(poNumber, stepCode string, actor model.Actor) (*model.Operation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var op *model.Operation
	err := l.db.Transaction(func(tx *gorm.DB) error {
		po, err := getOrder(tx, poNumber)
		if err != nil {
			return err
		}
		op, err = getOperation(tx, po.ID, stepCode)
		if err != nil {
			return err
		}
		if op.Started() {
			return apperr.ErrAlreadyStarted
		}

		old := *op
		now := time.Now()
		op.StartedAt = &now
		op.OperatorID = &actor.ID
		if err := tx.Model(op).Updates(map[string]interface{}{
			"started_at":  op.StartedAt,
			"operator_id": op.OperatorID,
		}).Error; err != nil {
			return err
		}
		l.audit.Record(tx, "operations", op.ID, model.AuditActionUpdate, old, op, actor)

		if po.Status == model.OrderStatusCreated {
			if err := tx.Model(po).Update("status", model.OrderStatusInProgress).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Operation started",
		zap.String("po_number", poNumber),
		zap.String("step_code", stepCode),
		zap.Uint("operator_id", actor.ID))
	return op, nil
}

// RecordDefect creates or updates the defect entry for the given master
// defect, recomputes the operation output and cascades downstream when the
// operation is already completed. Mutating a completed operation requires the
// admin role.
func (l *Ledger) RecordDefect(operationID uint, in DefectInput, actor model.Actor) (*model.Operation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, apperr.Validationf("defect quantity must be positive")
	}
	if in.QuantityRework < 0 || in.QuantityNogood < 0 || in.QuantityReplacement < 0 {
		return nil, apperr.Validationf("defect quantities must not be negative")
	}
	if in.QuantityRework > in.Quantity {
		return nil, apperr.Validationf("rework quantity exceeds defect quantity")
	}

	var op *model.Operation
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var err error
		op, err = getOperationByID(tx, operationID)
		if err != nil {
			return err
		}
		if op.Completed() && !actor.IsAdmin() {
			return apperr.Forbiddenf("operation %s is completed", op.StepCode)
		}

		var existing *model.DefectEntry
		for i := range op.Defects {
			if op.Defects[i].MasterDefectID == in.MasterDefectID {
				existing = &op.Defects[i]
				break
			}
		}

		if existing != nil {
			// Keep the original snapshot fields; only the quantities move.
			old := *existing
			existing.Quantity = in.Quantity
			existing.QuantityRework = in.QuantityRework
			existing.QuantityNogood = in.QuantityNogood
			existing.QuantityReplacement = in.QuantityReplacement
			if err := tx.Model(existing).Updates(map[string]interface{}{
				"quantity":             existing.Quantity,
				"quantity_rework":      existing.QuantityRework,
				"quantity_nogood":      existing.QuantityNogood,
				"quantity_replacement": existing.QuantityReplacement,
			}).Error; err != nil {
				return err
			}
			l.audit.Record(tx, "defect_entries", existing.ID, model.AuditActionUpdate, old, existing, actor)
		} else {
			var master model.MasterDefect
			if err := tx.First(&master, in.MasterDefectID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFoundf("master defect %d", in.MasterDefectID)
				}
				return err
			}
			entry := model.DefectEntry{
				OperationID:         op.ID,
				MasterDefectID:      master.ID,
				Name:                master.Name,
				Category:            master.Category,
				Reworkable:          master.Reworkable,
				Quantity:            in.Quantity,
				QuantityRework:      in.QuantityRework,
				QuantityNogood:      in.QuantityNogood,
				QuantityReplacement: in.QuantityReplacement,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			l.audit.Record(tx, "defect_entries", entry.ID, model.AuditActionCreate, nil, entry, actor)
		}

		return l.recomputeAndCascade(tx, op, actor)
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Defect recorded",
		zap.Uint("operation_id", operationID),
		zap.Uint("master_defect_id", in.MasterDefectID),
		zap.Int("quantity", in.Quantity),
		zap.Uint("actor_id", actor.ID))
	return op, nil
}

// DeleteDefect removes a defect entry and recomputes the operation output,
// cascading downstream when the operation is already completed
func (l *Ledger) DeleteDefect(operationID, defectEntryID uint, actor model.Actor) (*model.Operation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var op *model.Operation
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var err error
		op, err = getOperationByID(tx, operationID)
		if err != nil {
			return err
		}
		if op.Completed() && !actor.IsAdmin() {
			return apperr.Forbiddenf("operation %s is completed", op.StepCode)
		}

		var entry model.DefectEntry
		if err := tx.Where("id = ? AND operation_id = ?", defectEntryID, operationID).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("defect entry %d", defectEntryID)
			}
			return err
		}

		if err := tx.Delete(&entry).Error; err != nil {
			return err
		}
		l.audit.Record(tx, "defect_entries", entry.ID, model.AuditActionDelete, entry, nil, actor)

		return l.recomputeAndCascade(tx, op, actor)
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Defect deleted",
		zap.Uint("operation_id", operationID),
		zap.Uint("defect_entry_id", defectEntryID),
		zap.Uint("actor_id", actor.ID))
	return op, nil
}

// recomputeAndCascade refreshes the operation's defects, recomputes its
// output if it has started, and propagates downstream if it is completed
func (l *Ledger) recomputeAndCascade(tx *gorm.DB, op *model.Operation, actor model.Actor) error {
	if err := tx.Where("operation_id = ?", op.ID).Find(&op.Defects).Error; err != nil {
		return err
	}
	if !op.Started() {
		// Output stays undefined until the operation starts.
		return nil
	}

	old := *op
	output := ComputeOutput(op.InputQuantity, op.Defects)
	op.OutputQuantity = &output
	if err := tx.Model(op).Update("output_quantity", output).Error; err != nil {
		return err
	}
	l.audit.Record(tx, "operations", op.ID, model.AuditActionUpdate, old, op, actor)

	if op.Completed() {
		po := &model.ProductionOrder{}
		if err := tx.First(po, op.ProductionOrderID).Error; err != nil {
			return err
		}
		return l.propagate(tx, po, op, false)
	}
	return nil
}

// CompleteOperation sets the end time and final output, then cascades the
// output forward and advances the production order. Re-completing requires
// the admin role.
func (l *Ledger) CompleteOperation(poNumber, stepCode string, in CompleteInput, actor model.Actor) (*model.ProductionOrder, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if in.ResourceFactor <= 0 {
		return nil, apperr.Validationf("resource factor must be positive")
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		po, err := getOrder(tx, poNumber)
		if err != nil {
			return err
		}
		op, err := getOperation(tx, po.ID, stepCode)
		if err != nil {
			return err
		}
		if !op.Started() {
			return apperr.Validationf("operation %s has not started", stepCode)
		}
		if op.Completed() && !actor.IsAdmin() {
			return apperr.ErrAlreadyCompleted
		}

		old := *op
		endTime := in.EndTime
		if endTime.IsZero() {
			endTime = time.Now()
		}
		output := ComputeOutput(op.InputQuantity, op.Defects)
		op.EndedAt = &endTime
		op.ResourceFactor = in.ResourceFactor
		op.LineID = in.LineID
		op.OutputQuantity = &output
		if err := tx.Model(op).Updates(map[string]interface{}{
			"ended_at":        op.EndedAt,
			"resource_factor": op.ResourceFactor,
			"line_id":         op.LineID,
			"output_quantity": op.OutputQuantity,
		}).Error; err != nil {
			return err
		}
		l.audit.Record(tx, "operations", op.ID, model.AuditActionUpdate, old, op, actor)

		oldPO := *po
		if err := l.propagate(tx, po, op, true); err != nil {
			return err
		}
		l.audit.Record(tx, "production_orders", po.ID, model.AuditActionUpdate, oldPO, po, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Operation completed",
		zap.String("po_number", poNumber),
		zap.String("step_code", stepCode),
		zap.Uint("actor_id", actor.ID))
	return l.GetOrder(poNumber)
}

// UpdateOrderQuantity changes the ordered quantity and pushes the new value
// through the pipeline. Admin only.
func (l *Ledger) UpdateOrderQuantity(poNumber string, quantity int, actor model.Actor) (*model.ProductionOrder, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only admin may edit the ordered quantity")
	}
	if quantity <= 0 {
		return nil, apperr.Validationf("ordered quantity must be positive")
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		po, err := getOrder(tx, poNumber)
		if err != nil {
			return err
		}

		old := *po
		po.OrderedQuantity = quantity
		if err := tx.Model(po).Update("ordered_quantity", quantity).Error; err != nil {
			return err
		}
		l.audit.Record(tx, "production_orders", po.ID, model.AuditActionUpdate, old, po, actor)

		var first model.Operation
		err = tx.Where("production_order_id = ?", po.ID).Order("step_order").Preload("Defects").First(&first).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Quantity edited before the pipeline existed; instantiate it now.
			steps, err := loadSteps(tx)
			if err != nil {
				return err
			}
			return l.instantiatePipeline(tx, po, steps)
		}
		if err != nil {
			return err
		}

		first.InputQuantity = quantity
		if !first.Started() {
			return tx.Model(&first).Update("input_quantity", quantity).Error
		}

		output := ComputeOutput(first.InputQuantity, first.Defects)
		first.OutputQuantity = &output
		if err := tx.Model(&first).Updates(map[string]interface{}{
			"input_quantity":  first.InputQuantity,
			"output_quantity": first.OutputQuantity,
		}).Error; err != nil {
			return err
		}
		return l.propagate(tx, po, &first, false)
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Order quantity updated",
		zap.String("po_number", poNumber),
		zap.Int("quantity", quantity),
		zap.Uint("actor_id", actor.ID))
	return l.GetOrder(poNumber)
}

// DeleteOrder removes a production order and everything it owns. Admin only.
func (l *Ledger) DeleteOrder(poNumber string, actor model.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperr.Forbiddenf("only admin may delete a production order")
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		po, err := getOrder(tx, poNumber)
		if err != nil {
			return err
		}

		var operationIDs []uint
		if err := tx.Model(&model.Operation{}).Where("production_order_id = ?", po.ID).Pluck("id", &operationIDs).Error; err != nil {
			return err
		}
		if len(operationIDs) > 0 {
			if err := tx.Where("operation_id IN ?", operationIDs).Delete(&model.DefectEntry{}).Error; err != nil {
				return err
			}
			if err := tx.Where("production_order_id = ?", po.ID).Delete(&model.Operation{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(po).Error; err != nil {
			return err
		}
		l.audit.Record(tx, "production_orders", po.ID, model.AuditActionDelete, po, nil, actor)
		return nil
	})
	if err != nil {
		return err
	}

	l.log.Info("Production order deleted",
		zap.String("po_number", poNumber),
		zap.Uint("actor_id", actor.ID))
	return nil
}

// ListMasterDefects returns the defect catalogue
func (l *Ledger) ListMasterDefects() ([]model.MasterDefect, error) {
	var defects []model.MasterDefect
	if err := l.db.Order("name").Find(&defects).Error; err != nil {
		return nil, err
	}
	return defects, nil
}

func requireActor(actor model.Actor) error {
	if actor.IsZero() {
		return apperr.Validationf("actor is required")
	}
	return nil
}

func loadSteps(tx *gorm.DB) ([]model.PipelineStep, error) {
	var steps []model.PipelineStep
	if err := tx.Order("step_order").Find(&steps).Error; err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, apperr.Validationf("pipeline template is empty")
	}
	return steps, nil
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

func getOperation(tx *gorm.DB, poID uint, stepCode string) (*model.Operation, error) {
	var op model.Operation
	err := tx.Where("production_order_id = ? AND step_code = ?", poID, stepCode).Preload("Defects").First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("operation %s", stepCode)
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func getOperationByID(tx *gorm.DB, operationID uint) (*model.Operation, error) {
	var op model.Operation
	err := tx.Preload("Defects").First(&op, operationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("operation %d", operationID)
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}
