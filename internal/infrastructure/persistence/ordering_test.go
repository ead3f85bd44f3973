package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name      string
		column    string
		direction string
		want      string
		desc      bool
	}{
		{"defaults to newest first", "", "", "created_at", true},
		{"known column ascending", "number", "asc", "number", false},
		{"direction is case insensitive", "document_date", "  ASC ", "document_date", false},
		{"unknown column falls back", "password", "asc", "created_at", false},
		{"injection attempt falls back", "number; DROP TABLE documents;--", "asc", "created_at", false},
		{"unknown direction sorts descending", "status", "sideways", "status", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orderBy(tt.column, tt.direction, documentSortFields, "created_at")
			if assert.Len(t, got.Columns, 2) {
				assert.Equal(t, tt.want, got.Columns[0].Column.Name)
				assert.Equal(t, tt.desc, got.Columns[0].Desc)
				assert.Equal(t, "id", got.Columns[1].Column.Name)
			}
		})
	}
}
