package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed
// fields. Returns the defaultField if the input is empty or not whitelisted.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// StockBatchSortFields contains allowed sort fields for stock batches
var StockBatchSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"updated_at":        true,
	"batch_no":          true,
	"product_id":        true,
	"warehouse_id":      true,
	"received_at":       true,
	"current_quantity":  true,
	"initial_quantity":  true,
	"purchase_unit_price": true,
}

// OutboundRecordSortFields contains allowed sort fields for outbound records
var OutboundRecordSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"batch_no":     true,
	"order_id":     true,
	"order_type":   true,
	"allocated_at": true,
	"quantity":     true,
}

// FormulaSortFields contains allowed sort fields for deduction formulas
var FormulaSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"sort_order": true,
	"is_active":  true,
}
