package postgres

import (
	"fmt"
	"strings"

	"crawlcast/internal/pkg/search"
	"crawlcast/internal/repository"
)

// ContentQueryBuilder builds WHERE clauses for content search in PostgreSQL.
// Shared between COUNT and SELECT queries to eliminate duplication; uses
// PostgreSQL-specific ILIKE and numbered placeholders ($1, $2, ...).
type ContentQueryBuilder struct{}

// NewContentQueryBuilder creates a new query builder instance.
func NewContentQueryBuilder() *ContentQueryBuilder {
	return &ContentQueryBuilder{}
}

// BuildWhereClause builds a WHERE clause and its positional arguments for
// content search: multi-keyword AND logic plus optional source/status/date
// filters. Returns an empty string when no conditions apply.
func (qb *ContentQueryBuilder) BuildWhereClause(keywords []string, filters repository.ContentSearchFilters, tableAlias string) (clause string, args []interface{}) {
	var conditions []string
	paramIndex := 1

	col := func(name string) string {
		if tableAlias == "" {
			return name
		}
		return tableAlias + "." + name
	}

	for _, keyword := range keywords {
		escaped := search.EscapeILIKE(keyword)
		conditions = append(conditions, fmt.Sprintf("(%s ILIKE $%d OR %s ILIKE $%d)", col("title"), paramIndex, col("body"), paramIndex))
		args = append(args, escaped)
		paramIndex++
	}

	if filters.SourceID != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("source_id"), paramIndex))
		args = append(args, *filters.SourceID)
		paramIndex++
	}

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("status"), paramIndex))
		args = append(args, *filters.Status)
		paramIndex++
	}

	if filters.From != nil {
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", col("published_at"), paramIndex))
		args = append(args, *filters.From)
		paramIndex++
	}
	if filters.To != nil {
		conditions = append(conditions, fmt.Sprintf("%s <= $%d", col("published_at"), paramIndex))
		args = append(args, *filters.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
