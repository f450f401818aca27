package handler

import (
	"github.com/coldtrade/backend/internal/application/formula"
	"github.com/coldtrade/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FormulaHandler handles deduction formula endpoints
type FormulaHandler struct {
	BaseHandler
	service *formula.Service
}

// NewFormulaHandler creates a new FormulaHandler
func NewFormulaHandler(service *formula.Service) *FormulaHandler {
	return &FormulaHandler{service: service}
}

// RegisterRoutes registers formula routes on the given group
func (h *FormulaHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/formulas")
	{
		g.POST("", h.Create)
		g.GET("", h.List)
		g.POST("/evaluate", h.Evaluate)
		g.GET("/:id", h.Get)
		g.PUT("/:id", h.Update)
		g.DELETE("/:id", h.Deactivate)
	}
}

// CreateFormulaRequest is the wire format for creating a formula
type CreateFormulaRequest struct {
	Name        string   `json:"name" binding:"required,max=50"`
	Kind        string   `json:"kind" binding:"required,oneof=none percentage fixed fixed_per_unit"`
	Parameter   *float64 `json:"parameter"`
	Description string   `json:"description" binding:"max=200"`
	SortOrder   int      `json:"sort_order"`
}

// UpdateFormulaRequest is the wire format for editing a formula
type UpdateFormulaRequest struct {
	Name        string   `json:"name" binding:"required,max=50"`
	Kind        string   `json:"kind" binding:"required,oneof=none percentage fixed fixed_per_unit"`
	Parameter   *float64 `json:"parameter"`
	Description string   `json:"description" binding:"max=200"`
	SortOrder   int      `json:"sort_order"`
}

// EvaluateFormulaRequest previews a gross to net conversion
type EvaluateFormulaRequest struct {
	FormulaID   *string  `json:"formula_id" binding:"omitempty,uuid"`
	Kind        string   `json:"kind" binding:"omitempty,oneof=none percentage fixed fixed_per_unit"`
	Parameter   *float64 `json:"parameter"`
	GrossWeight float64  `json:"gross_weight" binding:"required,gt=0"`
	UnitCount   *int64   `json:"unit_count" binding:"omitempty,gt=0"`
}

// Create handles POST /formulas
func (h *FormulaHandler) Create(c *gin.Context) {
	var req CreateFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	cmd := formula.CreateFormulaCommand{
		Name:        req.Name,
		Kind:        req.Kind,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	}
	if req.Parameter != nil {
		cmd.Parameter = toDecimalPtr(*req.Parameter)
	}

	view, err := h.service.Create(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// List handles GET /formulas
func (h *FormulaHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	views, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// Get handles GET /formulas/:id
func (h *FormulaHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid formula id")
		return
	}

	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Update handles PUT /formulas/:id
func (h *FormulaHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid formula id")
		return
	}

	var req UpdateFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	cmd := formula.UpdateFormulaCommand{
		Name:        req.Name,
		Kind:        req.Kind,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	}
	if req.Parameter != nil {
		cmd.Parameter = toDecimalPtr(*req.Parameter)
	}

	view, err := h.service.Update(c.Request.Context(), id, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Deactivate handles DELETE /formulas/:id. Formulas are never hard-deleted
// because batches keep their snapshot; delete means deactivate.
func (h *FormulaHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid formula id")
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Evaluate handles POST /formulas/evaluate
func (h *FormulaHandler) Evaluate(c *gin.Context) {
	var req EvaluateFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	cmd := formula.EvaluateCommand{
		Kind:        req.Kind,
		GrossWeight: toDecimal(req.GrossWeight),
		UnitCount:   req.UnitCount,
	}
	if req.FormulaID != nil {
		id, err := uuid.Parse(*req.FormulaID)
		if err != nil {
			h.BadRequest(c, "invalid formula id")
			return
		}
		cmd.FormulaID = &id
	}
	if req.Parameter != nil {
		cmd.Parameter = toDecimalPtr(*req.Parameter)
	}

	result, err := h.service.Evaluate(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
