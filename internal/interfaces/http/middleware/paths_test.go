package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathSet(t *testing.T) {
	exact := newPathSet([]string{"/health", "/api/v1/system/"}, false)
	subtree := newPathSet([]string{"/health", "/api/v1/system"}, true)

	tests := []struct {
		path           string
		exact, subtree bool
	}{
		{"/health", true, true},
		{"/health/", true, true},
		{"/api/v1/system", true, true},
		{"/api/v1/system/info", false, true},
		{"/api/v1/systems", false, false},
		{"/api/v1/documents", false, false},
		{"/", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.exact, exact.match(tt.path))
			assert.Equal(t, tt.subtree, subtree.match(tt.path))
		})
	}
}
