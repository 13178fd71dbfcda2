package pipeline

import (
	"production-service/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// propagate pushes a changed operation's output through the remaining
// downstream operations in step order, inside the caller's transaction.
//
// The walk is an explicit loop with an input accumulator rather than a
// recursion so the transaction boundary stays visible and pipeline length
// cannot grow the stack. Each downstream operation gets its input replaced
// by the upstream output; operations that have already started also get
// their output recomputed from their own defects and the walk continues with
// that new output. The first unstarted operation still receives the new
// input but ends the walk, because it has no defects to factor in yet.
//
// When advance is true (operation completion), the production order's
// current-step pointer moves to the next step, or the order is marked
// Completed when the changed operation is the last step.
func (l *Ledger) propagate(tx *gorm.DB, po *model.ProductionOrder, changed *model.Operation, advance bool) error {
	var downstream []model.Operation
	if err := tx.
		Where("production_order_id = ? AND step_order > ?", po.ID, changed.StepOrder).
		Order("step_order").
		Preload("Defects").
		Find(&downstream).Error; err != nil {
		return err
	}

	currentInput := 0
	if changed.OutputQuantity != nil {
		currentInput = *changed.OutputQuantity
	}

	depth := 0
	for i := range downstream {
		op := &downstream[i]
		op.InputQuantity = currentInput
		depth++

		if !op.Started() {
			// Unstarted operations only take the new input; nothing further
			// downstream can change until this one starts.
			if err := tx.Model(op).Update("input_quantity", op.InputQuantity).Error; err != nil {
				return err
			}
			break
		}

		output := ComputeOutput(op.InputQuantity, op.Defects)
		op.OutputQuantity = &output
		if err := tx.Model(op).Updates(map[string]interface{}{
			"input_quantity":  op.InputQuantity,
			"output_quantity": op.OutputQuantity,
		}).Error; err != nil {
			return err
		}
		currentInput = output
	}

	if advance {
		if len(downstream) == 0 {
			po.Status = model.OrderStatusCompleted
		} else {
			po.Status = model.OrderStatusInProgress
			po.CurrentStep = downstream[0].StepCode
		}
		if err := tx.Model(po).Updates(map[string]interface{}{
			"status":       po.Status,
			"current_step": po.CurrentStep,
		}).Error; err != nil {
			return err
		}
	}

	l.log.Debug("Cascade propagated",
		zap.String("po_number", po.PONumber),
		zap.String("changed_step", changed.StepCode),
		zap.Int("depth", depth),
		zap.Bool("advance", advance))
	return nil
}
