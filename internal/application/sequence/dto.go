package sequence

import "github.com/finhr/backend/internal/domain/sequence"

// ConfigureRequest represents a request to create or change a sequence scope
type ConfigureRequest struct {
	Prefix  *string `json:"prefix" binding:"omitempty,max=20"`
	Width   *int    `json:"width" binding:"omitempty,min=0,max=18"`
	Counter *int64  `json:"counter" binding:"omitempty,min=0"`
}

// CodeResponse represents an allocated (or peeked) code
type CodeResponse struct {
	Scope   string `json:"scope"`
	Code    string `json:"code"`
	Counter int64  `json:"counter"`
}

// StateResponse represents the stored state of a sequence scope
type StateResponse struct {
	Scope   string `json:"scope"`
	Prefix  string `json:"prefix"`
	Counter int64  `json:"counter"`
	Width   int    `json:"width"`
}

func toStateResponse(scope sequence.Scope, state sequence.State) *StateResponse {
	return &StateResponse{
		Scope:   string(scope),
		Prefix:  state.Prefix,
		Counter: state.Counter,
		Width:   state.Width,
	}
}
