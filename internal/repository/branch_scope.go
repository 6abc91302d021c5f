package repository

import (
	"context"
	"strings"

	"github.com/garagedesk/workshop-api/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns the default sort (started_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "started_at",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the ORDER BY clause from a field whitelist.
// Unknown fields fall back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// ApplyBranchFilter applies the branch scope to a query. If no filter is set
// (API service identity without a branch), the query is returned unchanged.
func ApplyBranchFilter(ctx context.Context, query *gorm.DB) *gorm.DB {
	branchID := auth.GetEffectiveBranchFilter(ctx)
	if branchID != nil {
		return query.Where("branch_id = ?", *branchID)
	}
	return query
}

// ApplyBranchFilterWithColumn applies the branch scope using a qualified
// column name, for joined queries.
func ApplyBranchFilterWithColumn(ctx context.Context, query *gorm.DB, columnName string) *gorm.DB {
	branchID := auth.GetEffectiveBranchFilter(ctx)
	if branchID != nil {
		return query.Where(columnName+" = ?", *branchID)
	}
	return query
}

// MustHaveBranchAccess verifies a single record's branch against the caller's
// scope. Returns true when access is allowed.
func MustHaveBranchAccess(ctx context.Context, recordBranchID string) bool {
	branchID := auth.GetEffectiveBranchFilter(ctx)
	if branchID == nil {
		return true
	}
	return branchID.String() == recordBranchID
}
