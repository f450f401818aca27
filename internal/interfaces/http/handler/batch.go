package handler

import (
	"time"

	appledger "github.com/coldtrade/backend/internal/application/ledger"
	"github.com/coldtrade/backend/internal/domain/formula"
	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/interfaces/http/dto"
	"github.com/coldtrade/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BatchHandler handles stock batch endpoints
type BatchHandler struct {
	BaseHandler
	batchService   *appledger.BatchService
	lineageService *appledger.LineageService
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(batchService *appledger.BatchService, lineageService *appledger.LineageService) *BatchHandler {
	return &BatchHandler{
		batchService:   batchService,
		lineageService: lineageService,
	}
}

// RegisterRoutes registers batch routes on the given group
func (h *BatchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/batches")
	{
		g.POST("", h.Create)
		g.GET("", h.List)
		g.POST("/import-initial", h.ImportInitial)
		g.GET("/available", h.ListAvailable)
		g.GET("/:id", h.Get)
		g.POST("/:id/adjust", h.Adjust)
		g.POST("/:id/settle-storage", h.SettleStorage)
		g.GET("/:id/lineage", h.Lineage)
		g.GET("/:id/outbound-records", h.OutboundRecords)
	}
}

// InlineFormulaRequest carries an ad-hoc deduction formula
type InlineFormulaRequest struct {
	Kind      string   `json:"kind" binding:"required,oneof=none percentage fixed fixed_per_unit"`
	Parameter *float64 `json:"parameter"`
}

// CreateBatchRequest is the wire format for receiving a new batch
type CreateBatchRequest struct {
	BatchNo           string                `json:"batch_no" binding:"max=50"`
	ProductID         string                `json:"product_id" binding:"required,uuid"`
	WarehouseID       string                `json:"warehouse_id" binding:"required,uuid"`
	SourceEntityID    *string               `json:"source_entity_id" binding:"omitempty,uuid"`
	SourceOrderID     *string               `json:"source_order_id"`
	GrossWeight       *float64              `json:"gross_weight" binding:"omitempty,gt=0"`
	UnitCount         *int64                `json:"unit_count" binding:"omitempty,gt=0"`
	FormulaID         *string               `json:"formula_id" binding:"omitempty,uuid"`
	Formula           *InlineFormulaRequest `json:"formula"`
	InitialQuantity   *float64              `json:"initial_quantity" binding:"omitempty,gt=0"`
	PurchaseUnitPrice float64               `json:"purchase_unit_price" binding:"gte=0"`
	FreightCost       float64               `json:"freight_cost" binding:"gte=0"`
	ExtraCost         float64               `json:"extra_cost" binding:"gte=0"`
	StorageRate       float64               `json:"storage_rate" binding:"gte=0"`
	ReceivedAt        *time.Time            `json:"received_at"`
	Notes             string                `json:"notes"`
}

// ImportInitialRequest is one row of an opening-stock import
type ImportInitialRequest struct {
	ProductID         string     `json:"product_id" binding:"required,uuid"`
	WarehouseID       string     `json:"warehouse_id" binding:"required,uuid"`
	Quantity          float64    `json:"quantity" binding:"required,gt=0"`
	PurchaseUnitPrice float64    `json:"purchase_unit_price" binding:"gte=0"`
	StorageRate       float64    `json:"storage_rate" binding:"gte=0"`
	ReceivedAt        *time.Time `json:"received_at"`
	Notes             string     `json:"notes"`
}

// AdjustQuantityRequest corrects a batch quantity after a physical count
type AdjustQuantityRequest struct {
	NewQuantity float64 `json:"new_quantity" binding:"gte=0"`
	Reason      string  `json:"reason" binding:"required,max=200"`
}

// Create handles POST /batches
func (h *BatchHandler) Create(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	cmd, err := h.toCreateCommand(req)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	view, err := h.batchService.CreateBatch(c.Request.Context(), *cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// ImportInitial handles POST /batches/import-initial. The import is
// all-or-nothing; one bad row rolls back the whole request.
func (h *BatchHandler) ImportInitial(c *gin.Context) {
	var reqs []ImportInitialRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	rows := make([]appledger.ImportInitialBatchCommand, 0, len(reqs))
	for _, req := range reqs {
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			h.BadRequest(c, "invalid product id")
			return
		}
		warehouseID, err := uuid.Parse(req.WarehouseID)
		if err != nil {
			h.BadRequest(c, "invalid warehouse id")
			return
		}
		rows = append(rows, appledger.ImportInitialBatchCommand{
			ProductID:         productID,
			WarehouseID:       warehouseID,
			Quantity:          toDecimal(req.Quantity),
			PurchaseUnitPrice: toDecimal(req.PurchaseUnitPrice),
			StorageRate:       toDecimal(req.StorageRate),
			ReceivedAt:        req.ReceivedAt,
			Notes:             req.Notes,
		})
	}

	views, err := h.batchService.ImportInitial(c.Request.Context(), rows)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, views)
}

// List handles GET /batches
func (h *BatchHandler) List(c *gin.Context) {
	filter, err := h.parseBatchFilter(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.batchService.ListBatches(c.Request.Context(), *filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// ListAvailable handles GET /batches/available
func (h *BatchHandler) ListAvailable(c *gin.Context) {
	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		h.BadRequest(c, "product_id is required")
		return
	}
	warehouseID, err := uuid.Parse(c.Query("warehouse_id"))
	if err != nil {
		h.BadRequest(c, "warehouse_id is required")
		return
	}

	views, err := h.batchService.ListAvailable(c.Request.Context(), productID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// Get handles GET /batches/:id. A batch number works in place of the id.
func (h *BatchHandler) Get(c *gin.Context) {
	param := c.Param("id")
	if id, err := uuid.Parse(param); err == nil {
		view, err := h.batchService.GetBatch(c.Request.Context(), id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, view)
		return
	}

	view, err := h.batchService.GetBatchByNo(c.Request.Context(), param)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Adjust handles POST /batches/:id/adjust
func (h *BatchHandler) Adjust(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid batch id")
		return
	}

	var req AdjustQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	view, err := h.batchService.AdjustQuantity(c.Request.Context(), appledger.AdjustQuantityCommand{
		BatchID:     id,
		NewQuantity: toDecimal(req.NewQuantity),
		Reason:      req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// SettleStorage handles POST /batches/:id/settle-storage
func (h *BatchHandler) SettleStorage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid batch id")
		return
	}

	result, err := h.batchService.SettleStorage(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Lineage handles GET /batches/:id/lineage. A batch number works in place
// of the id.
func (h *BatchHandler) Lineage(c *gin.Context) {
	param := c.Param("id")
	if id, err := uuid.Parse(param); err == nil {
		view, err := h.lineageService.BatchLineage(c.Request.Context(), id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, view)
		return
	}

	view, err := h.lineageService.BatchLineageByNo(c.Request.Context(), param)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// OutboundRecords handles GET /batches/:id/outbound-records
func (h *BatchHandler) OutboundRecords(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid batch id")
		return
	}

	view, err := h.lineageService.BatchLineage(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view.Outbounds)
}

func (h *BatchHandler) toCreateCommand(req CreateBatchRequest) (*appledger.CreateBatchCommand, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, err
	}
	warehouseID, err := uuid.Parse(req.WarehouseID)
	if err != nil {
		return nil, err
	}

	cmd := &appledger.CreateBatchCommand{
		BatchNo:           req.BatchNo,
		ProductID:         productID,
		WarehouseID:       warehouseID,
		SourceOrderID:     req.SourceOrderID,
		UnitCount:         req.UnitCount,
		PurchaseUnitPrice: toDecimal(req.PurchaseUnitPrice),
		FreightCost:       toDecimal(req.FreightCost),
		ExtraCost:         toDecimal(req.ExtraCost),
		StorageRate:       toDecimal(req.StorageRate),
		ReceivedAt:        req.ReceivedAt,
		Notes:             req.Notes,
	}

	if req.SourceEntityID != nil {
		id, err := uuid.Parse(*req.SourceEntityID)
		if err != nil {
			return nil, err
		}
		cmd.SourceEntityID = &id
	}
	if req.GrossWeight != nil {
		cmd.GrossWeight = toDecimalPtr(*req.GrossWeight)
	}
	if req.InitialQuantity != nil {
		cmd.InitialQuantity = toDecimalPtr(*req.InitialQuantity)
	}
	if req.FormulaID != nil {
		id, err := uuid.Parse(*req.FormulaID)
		if err != nil {
			return nil, err
		}
		cmd.FormulaID = &id
	}
	if req.Formula != nil {
		snapshot := formula.Snapshot{Kind: formula.Kind(req.Formula.Kind)}
		if req.Formula.Parameter != nil {
			snapshot.Parameter = toDecimalPtr(*req.Formula.Parameter)
		}
		cmd.Formula = &snapshot
	}
	return cmd, nil
}

func (h *BatchHandler) parseBatchFilter(c *gin.Context) (*ledger.BatchFilter, error) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		return nil, err
	}
	if listReq.Page == 0 {
		listReq.Page = 1
	}
	if listReq.PageSize == 0 {
		listReq.PageSize = 20
	}

	filter := &ledger.BatchFilter{}
	filter.Page = listReq.Page
	filter.PageSize = listReq.PageSize
	filter.OrderBy = listReq.OrderBy
	filter.OrderDir = listReq.OrderDir
	filter.BatchNo = c.Query("batch_no")

	if v := c.Query("product_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		filter.ProductID = &id
	}
	if v := c.Query("warehouse_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		filter.WarehouseID = &id
	}
	if v := c.Query("status"); v != "" {
		status := ledger.BatchStatus(v)
		filter.Status = &status
	}
	if v := c.Query("is_initial"); v != "" {
		isInitial := v == "true"
		filter.IsInitial = &isInitial
	}
	if v := c.Query("received_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		filter.ReceivedFrom = &t
	}
	if v := c.Query("received_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		filter.ReceivedTo = &t
	}
	return filter, nil
}
