package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// documentSortFields are the document columns a listing may be ordered by
var documentSortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"number":          true,
	"document_date":   true,
	"status":          true,
	"amount_excl_tax": true,
}

// orderBy turns a requested column and direction into an ORDER BY clause.
// Columns outside allowed fall back to fallback; any direction but "asc"
// sorts descending. The id column breaks ties so that pages are stable.
func orderBy(column, direction string, allowed map[string]bool, fallback string) clause.OrderBy {
	column = strings.TrimSpace(column)
	if !allowed[column] {
		column = fallback
	}
	desc := !strings.EqualFold(strings.TrimSpace(direction), "asc")
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}
