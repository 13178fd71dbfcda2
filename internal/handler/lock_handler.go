package handler

import (
	"net/http"
	"production-service/pkg/logger"
	"production-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AcquireLock handles acquiring the exclusive edit lock on a production order
func AcquireLock(c echo.Context) error {
	log := logger.FromContext(c)
	poNumber := c.Param("po")

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	granted, err := lockManager.Acquire(poNumber, act)
	if err != nil {
		prometheus.RecordLockOperation("acquire", "conflict")
		log.Warn("Lock acquisition failed",
			zap.String("po_number", poNumber),
			zap.Uint("user_id", act.ID),
			zap.Error(err))
		return writeError(c, err)
	}

	prometheus.RecordLockOperation("acquire", "success")
	return c.JSON(http.StatusOK, granted)
}

// ReleaseLock handles releasing the caller's edit lock
func ReleaseLock(c echo.Context) error {
	poNumber := c.Param("po")

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := lockManager.Release(poNumber, act); err != nil {
		prometheus.RecordLockOperation("release", "error")
		return writeError(c, err)
	}

	prometheus.RecordLockOperation("release", "success")
	return c.JSON(http.StatusOK, echo.Map{"message": "lock released"})
}

// ForceReleaseLock handles an admin override of another user's lock
func ForceReleaseLock(c echo.Context) error {
	poNumber := c.Param("po")

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := lockManager.ForceRelease(poNumber, act); err != nil {
		prometheus.RecordLockOperation("force_release", "error")
		return writeError(c, err)
	}

	prometheus.RecordLockOperation("force_release", "success")
	return c.JSON(http.StatusOK, echo.Map{"message": "lock force-released"})
}

// LockStatus handles a read-only query of the lock state
func LockStatus(c echo.Context) error {
	poNumber := c.Param("po")

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	status, err := lockManager.GetStatus(poNumber, act.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
