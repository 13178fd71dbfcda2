package handler

import (
	"net/http"
	"production-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListMasterDefects handles retrieving the defect catalogue
func ListMasterDefects(c echo.Context) error {
	log := logger.FromContext(c)

	defects, err := ledger.ListMasterDefects()
	if err != nil {
		return writeError(c, err)
	}

	log.Info("Master defects retrieved", zap.Int("count", len(defects)))
	return c.JSON(http.StatusOK, defects)
}
