package handler

import (
	"github.com/coldtrade/backend/internal/application/report"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportHandler handles valuation and profit report endpoints
type ReportHandler struct {
	BaseHandler
	service *report.StockReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *report.StockReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// RegisterRoutes registers report routes on the given group
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/reports")
	{
		g.GET("/stock-value", h.StockValue)
		g.GET("/batch-profit", h.BatchProfit)
		g.GET("/batches/by-product", h.BatchesByProduct)
		g.GET("/batches/by-warehouse", h.BatchesByWarehouse)
	}
}

// StockValue handles GET /reports/stock-value
func (h *ReportHandler) StockValue(c *gin.Context) {
	productID, warehouseID, err := parseOptionalIDs(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.StockValue(c.Request.Context(), productID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// BatchProfit handles GET /reports/batch-profit
func (h *ReportHandler) BatchProfit(c *gin.Context) {
	var batchID *uuid.UUID
	if v := c.Query("batch_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.BadRequest(c, "invalid batch id")
			return
		}
		batchID = &id
	}

	result, err := h.service.BatchProfit(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// BatchesByProduct handles GET /reports/batches/by-product
func (h *ReportHandler) BatchesByProduct(c *gin.Context) {
	_, warehouseID, err := parseOptionalIDs(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.BatchesByProduct(c.Request.Context(), warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// BatchesByWarehouse handles GET /reports/batches/by-warehouse
func (h *ReportHandler) BatchesByWarehouse(c *gin.Context) {
	productID, _, err := parseOptionalIDs(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.BatchesByWarehouse(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func parseOptionalIDs(c *gin.Context) (productID, warehouseID *uuid.UUID, err error) {
	if v := c.Query("product_id"); v != "" {
		id, perr := uuid.Parse(v)
		if perr != nil {
			return nil, nil, perr
		}
		productID = &id
	}
	if v := c.Query("warehouse_id"); v != "" {
		id, perr := uuid.Parse(v)
		if perr != nil {
			return nil, nil, perr
		}
		warehouseID = &id
	}
	return productID, warehouseID, nil
}
