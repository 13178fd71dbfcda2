package handler

import (
	"net/http"
	"production-service/internal/pipeline"
	"production-service/pkg/logger"
	"production-service/prometheus"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DefectRequest defines the structure for recording a defect
type DefectRequest struct {
	MasterDefectID      uint `json:"master_defect_id"`
	Quantity            int  `json:"quantity"`
	QuantityRework      int  `json:"quantity_rework"`
	QuantityNogood      int  `json:"quantity_nogood"`
	QuantityReplacement int  `json:"quantity_replacement"`
}

// CompleteRequest defines the structure for completing an operation
type CompleteRequest struct {
	ResourceFactor float64    `json:"resource_factor"`
	LineID         string     `json:"line_id"`
	EndTime        *time.Time `json:"end_time,omitempty"`
}

// StartOperation handles starting a pipeline step for a production order
func StartOperation(c echo.Context) error {
	log := logger.FromContext(c)
	poNumber := c.Param("po")
	stepCode := c.Param("code")

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	log.Info("Operation start request",
		zap.String("po_number", poNumber),
		zap.String("step_code", stepCode))

	op, err := ledger.StartOperation(poNumber, stepCode, act)
	if err != nil {
		prometheus.RecordOperationEvent("start", "error")
		return writeError(c, err)
	}

	prometheus.RecordOperationEvent("start", "success")
	return c.JSON(http.StatusOK, op)
}

// CompleteOperation handles completing a pipeline step and cascading the
// output downstream
func CompleteOperation(c echo.Context) error {
	log := logger.FromContext(c)
	poNumber := c.Param("po")
	stepCode := c.Param("code")

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	in := pipeline.CompleteInput{
		ResourceFactor: req.ResourceFactor,
		LineID:         req.LineID,
	}
	if req.EndTime != nil {
		in.EndTime = *req.EndTime
	}

	log.Info("Operation complete request",
		zap.String("po_number", poNumber),
		zap.String("step_code", stepCode),
		zap.Float64("resource_factor", req.ResourceFactor))

	po, err := ledger.CompleteOperation(poNumber, stepCode, in, act)
	if err != nil {
		prometheus.RecordOperationEvent("complete", "error")
		return writeError(c, err)
	}

	prometheus.RecordOperationEvent("complete", "success")
	return c.JSON(http.StatusOK, po)
}

// RecordDefect handles creating or updating a defect entry on an operation
func RecordDefect(c echo.Context) error {
	log := logger.FromContext(c)

	operationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid operation id"})
	}

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	var req DefectRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	log.Info("Defect record request",
		zap.Uint64("operation_id", operationID),
		zap.Uint("master_defect_id", req.MasterDefectID),
		zap.Int("quantity", req.Quantity))

	op, err := ledger.RecordDefect(uint(operationID), pipeline.DefectInput{
		MasterDefectID:      req.MasterDefectID,
		Quantity:            req.Quantity,
		QuantityRework:      req.QuantityRework,
		QuantityNogood:      req.QuantityNogood,
		QuantityReplacement: req.QuantityReplacement,
	}, act)
	if err != nil {
		prometheus.RecordOperationEvent("record_defect", "error")
		return writeError(c, err)
	}

	prometheus.RecordOperationEvent("record_defect", "success")
	return c.JSON(http.StatusOK, op)
}

// DeleteDefect handles removing a defect entry from an operation
func DeleteDefect(c echo.Context) error {
	log := logger.FromContext(c)

	operationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid operation id"})
	}
	defectID, err := strconv.ParseUint(c.Param("defectId"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid defect entry id"})
	}

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	log.Info("Defect delete request",
		zap.Uint64("operation_id", operationID),
		zap.Uint64("defect_entry_id", defectID))

	op, err := ledger.DeleteDefect(uint(operationID), uint(defectID), act)
	if err != nil {
		prometheus.RecordOperationEvent("delete_defect", "error")
		return writeError(c, err)
	}

	prometheus.RecordOperationEvent("delete_defect", "success")
	return c.JSON(http.StatusOK, op)
}
