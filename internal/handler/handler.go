package handler

import (
	"errors"
	"net/http"
	"production-service/internal/apperr"
	"production-service/internal/audit"
	"production-service/internal/lock"
	"production-service/internal/model"
	"production-service/internal/pipeline"
	"production-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ledger      *pipeline.Ledger
	lockManager *lock.Manager
)

// Init wires the handler package to the database. Must run before routes are
// served.
func Init(db *gorm.DB) {
	log := logger.GetLogger()
	recorder := audit.NewRecorder(log)
	ledger = pipeline.NewLedger(db, recorder, log)
	lockManager = lock.NewManager(db, recorder, log)
}

// actor pulls the authenticated actor out of the request context
func actor(c echo.Context) (model.Actor, error) {
	a, ok := c.Get("actor").(model.Actor)
	if !ok {
		return model.Actor{}, apperr.Validationf("actor is required")
	}
	return a, nil
}

// writeError translates the core error taxonomy into an HTTP response
func writeError(c echo.Context, err error) error {
	var conflict *apperr.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusLocked, echo.Map{
			"error":      "production order is locked by another user",
			"owner_id":   conflict.OwnerID,
			"owner_name": conflict.OwnerName,
			"locked_at":  conflict.LockedAt,
		})
	case errors.Is(err, apperr.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrAlreadyStarted), errors.Is(err, apperr.ErrAlreadyCompleted):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		logger.FromContext(c).Error("Internal error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
