package handler

import (
	"net/http"
	"production-service/internal/pipeline"
	"production-service/pkg/logger"
	"production-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OrderRequest defines the structure for production order registration
type OrderRequest struct {
	PONumber        string  `json:"po_number"`
	ItemName        string  `json:"item_name"`
	OrderedQuantity int     `json:"ordered_quantity"`
	UnitPrice       float64 `json:"unit_price"`
	MaterialCost    float64 `json:"material_cost"`
}

// CreateOrder handles registering a new production order
func CreateOrder(c echo.Context) error {
	log := logger.FromContext(c)

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	var req OrderRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	log.Info("Production order registration request",
		zap.String("po_number", req.PONumber),
		zap.Int("ordered_quantity", req.OrderedQuantity))

	po, err := ledger.CreateOrder(pipeline.CreateOrderInput{
		PONumber:        req.PONumber,
		ItemName:        req.ItemName,
		OrderedQuantity: req.OrderedQuantity,
		UnitPrice:       req.UnitPrice,
		MaterialCost:    req.MaterialCost,
	}, act)
	if err != nil {
		prometheus.RecordOperationEvent("create_order", "error")
		return writeError(c, err)
	}

	prometheus.RecordOperationEvent("create_order", "success")
	return c.JSON(http.StatusCreated, po)
}

// ListOrders handles retrieving all production orders
func ListOrders(c echo.Context) error {
	log := logger.FromContext(c)

	// Track database operation
	defer prometheus.TrackDBOperation("query")(time.Now())

	orders, err := ledger.ListOrders()
	if err != nil {
		return writeError(c, err)
	}

	log.Info("Production orders retrieved", zap.Int("count", len(orders)))
	return c.JSON(http.StatusOK, orders)
}

// GetOrder handles retrieving one production order with its pipeline
func GetOrder(c echo.Context) error {
	po, err := ledger.GetOrder(c.Param("po"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, po)
}

// UpdateOrderQuantity handles an admin edit of the ordered quantity
func UpdateOrderQuantity(c echo.Context) error {
	log := logger.FromContext(c)
	poNumber := c.Param("po")

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	var req struct {
		OrderedQuantity int `json:"ordered_quantity"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	log.Info("Order quantity edit request",
		zap.String("po_number", poNumber),
		zap.Int("ordered_quantity", req.OrderedQuantity))

	po, err := ledger.UpdateOrderQuantity(poNumber, req.OrderedQuantity, act)
	if err != nil {
		prometheus.RecordOperationEvent("update_quantity", "error")
		return writeError(c, err)
	}

	prometheus.RecordOperationEvent("update_quantity", "success")
	return c.JSON(http.StatusOK, po)
}

// DeleteOrder handles an admin delete, cascading to operations and defects
func DeleteOrder(c echo.Context) error {
	log := logger.FromContext(c)
	poNumber := c.Param("po")

	act, err := actor(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := ledger.DeleteOrder(poNumber, act); err != nil {
		return writeError(c, err)
	}

	log.Info("Production order deleted", zap.String("po_number", poNumber))
	return c.JSON(http.StatusOK, echo.Map{"message": "production order deleted"})
}
