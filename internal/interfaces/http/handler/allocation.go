package handler

import (
	"net/http"
	"time"

	appledger "github.com/coldtrade/backend/internal/application/ledger"
	"github.com/coldtrade/backend/internal/domain/ledger"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/coldtrade/backend/internal/interfaces/http/dto"
	"github.com/coldtrade/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AllocationHandler handles outbound allocation endpoints
type AllocationHandler struct {
	BaseHandler
	allocationService *appledger.AllocationService
	lineageService    *appledger.LineageService
	idempotency       shared.IdempotencyStore
	idempotencyTTL    time.Duration
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocationService *appledger.AllocationService, lineageService *appledger.LineageService) *AllocationHandler {
	return &AllocationHandler{
		allocationService: allocationService,
		lineageService:    lineageService,
		idempotencyTTL:    24 * time.Hour,
	}
}

// SetIdempotencyStore enables duplicate-request rejection across instances
func (h *AllocationHandler) SetIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) {
	h.idempotency = store
	if ttl > 0 {
		h.idempotencyTTL = ttl
	}
}

// RegisterRoutes registers allocation routes on the given group
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/allocations")
	{
		g.POST("", h.Allocate)
		g.POST("/release", h.Release)
		g.GET("/orders/:orderID", h.OrderAllocations)
		g.GET("/orders/:orderID/lineage", h.OrderLineage)
	}
}

// BatchRequestItem names one batch in an explicit selection
type BatchRequestItem struct {
	BatchID string `json:"batch_id" binding:"required,uuid"`
	// Quantity zero means take as much as the batch can give
	Quantity float64 `json:"quantity" binding:"gte=0"`
}

// AllocateRequest is the wire format for allocating stock to an order item
type AllocateRequest struct {
	OrderID       string             `json:"order_id" binding:"required,max=64"`
	OrderItemID   string             `json:"order_item_id" binding:"required,max=64"`
	OrderType     string             `json:"order_type" binding:"required,oneof=sale transfer other"`
	ProductID     string             `json:"product_id" binding:"required,uuid"`
	WarehouseID   string             `json:"warehouse_id" binding:"required,uuid"`
	Quantity      float64            `json:"quantity" binding:"required,gt=0"`
	SaleUnitPrice *float64           `json:"sale_unit_price" binding:"omitempty,gte=0"`
	BatchRequests []BatchRequestItem `json:"batch_requests"`
}

// ReleaseRequest reverses every live record of an order
type ReleaseRequest struct {
	OrderID string `json:"order_id" binding:"required,max=64"`
}

// Allocate handles POST /allocations
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

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

	cmd := appledger.AllocateCommand{
		OrderID:     req.OrderID,
		OrderItemID: req.OrderItemID,
		OrderType:   ledger.OrderType(req.OrderType),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    toDecimal(req.Quantity),
	}
	if req.SaleUnitPrice != nil {
		cmd.SaleUnitPrice = toDecimalPtr(*req.SaleUnitPrice)
	}
	for _, item := range req.BatchRequests {
		batchID, err := uuid.Parse(item.BatchID)
		if err != nil {
			h.BadRequest(c, "invalid batch id in batch_requests")
			return
		}
		cmd.BatchRequests = append(cmd.BatchRequests, ledger.BatchRequest{
			BatchID:  batchID,
			Quantity: toDecimal(item.Quantity),
		})
	}

	// The idempotency store is a cheap front gate for client retries; the
	// service still enforces order-item uniqueness transactionally.
	idemKey := req.OrderID + ":" + req.OrderItemID
	if h.idempotency != nil {
		processed, err := h.idempotency.IsProcessed(c.Request.Context(), idemKey)
		if err == nil && processed {
			h.Error(c, http.StatusConflict, dto.ErrCodeAlreadyExists, "order item already allocated")
			return
		}
	}

	result, err := h.allocationService.Allocate(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.idempotency != nil {
		// best effort; a miss here only means one extra trip to the service
		_, _ = h.idempotency.MarkProcessed(c.Request.Context(), idemKey, h.idempotencyTTL)
	}
	h.Created(c, result)
}

// Release handles POST /allocations/release
func (h *AllocationHandler) Release(c *gin.Context) {
	var req ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.allocationService.ReleaseOrder(c.Request.Context(), req.OrderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.idempotency != nil {
		// Freed order items may be allocated again, so their gate entries go
		for _, item := range result.ReversedItems {
			_ = h.idempotency.Delete(c.Request.Context(), req.OrderID+":"+item)
		}
	}
	h.Success(c, result)
}

// OrderAllocations handles GET /allocations/orders/:orderID
func (h *AllocationHandler) OrderAllocations(c *gin.Context) {
	orderID := c.Param("orderID")
	if orderID == "" {
		h.BadRequest(c, "order id is required")
		return
	}

	views, err := h.allocationService.GetOrderAllocations(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// OrderLineage handles GET /allocations/orders/:orderID/lineage
func (h *AllocationHandler) OrderLineage(c *gin.Context) {
	orderID := c.Param("orderID")
	if orderID == "" {
		h.BadRequest(c, "order id is required")
		return
	}

	view, err := h.lineageService.OrderLineage(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}
