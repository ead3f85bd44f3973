package selection

import (
	"github.com/finhr/backend/internal/domain/reference"
	"github.com/google/uuid"
)

// LinkRequest declares one level of a session. Parent defaults to the
// kind's declared parent and Policy to the kind's declared policy.
type LinkRequest struct {
	Kind   string `json:"kind" binding:"required,max=32"`
	Parent string `json:"parent" binding:"max=32"`
	Policy string `json:"policy" binding:"omitempty,oneof=scoped global_fallback global-fallback"`
}

// OpenSessionRequest opens a session. Values, when present, are the stored
// selections of the record being edited and start hydration.
type OpenSessionRequest struct {
	Levels []LinkRequest     `json:"levels" binding:"required,min=1,max=8,dive"`
	Values map[string]string `json:"values"`
}

// SaveRowRequest is the body of a reference row write; the id comes from the path
type SaveRowRequest struct {
	ParentKey *string `json:"parent_key" binding:"omitempty,min=1,max=64"`
	Code      string  `json:"code" binding:"max=32"`
	Label     string  `json:"label" binding:"required,max=200"`
	SortOrder int     `json:"sort_order"`
}

// ToRow converts the request to the row stored under id
func (r SaveRowRequest) ToRow(id string) reference.ReferenceRow {
	return reference.ReferenceRow{
		ID:        id,
		ParentKey: r.ParentKey,
		Code:      r.Code,
		Label:     r.Label,
		SortOrder: r.SortOrder,
	}
}

// RefreshRequest asks for a level's catalog to be fetched again
type RefreshRequest struct {
	Kind string `json:"kind" binding:"required,max=32"`
}

// SelectRequest sets the selection of a level
type SelectRequest struct {
	Kind  string `json:"kind" binding:"required,max=32"`
	Value string `json:"value" binding:"max=64"`
}

// SetParentRequest sets an outside parent value for a level
type SetParentRequest struct {
	Kind   string `json:"kind" binding:"required,max=32"`
	Parent string `json:"parent" binding:"max=64"`
}

// ResolveRequest reconciles one posted selection without a session
type ResolveRequest struct {
	Kind      string `json:"kind" binding:"required,max=32"`
	Parent    string `json:"parent" binding:"max=64"`
	Selection string `json:"selection" binding:"max=64"`
	Policy    string `json:"policy" binding:"omitempty,oneof=scoped global_fallback global-fallback"`
	Hydrating bool   `json:"hydrating"`
	Supplied  string `json:"supplied" binding:"max=64"`
}

// RowResponse represents a reference row in API responses
type RowResponse struct {
	ID        string  `json:"id"`
	ParentKey *string `json:"parent_key"`
	Code      string  `json:"code"`
	Label     string  `json:"label"`
	SortOrder int     `json:"sort_order"`
}

// VisibleResponse lists the rows selectable under a parent
type VisibleResponse struct {
	Kind   string        `json:"kind"`
	Parent string        `json:"parent"`
	Policy string        `json:"policy"`
	Rows   []RowResponse `json:"rows"`
}

// ResolveResponse is the outcome of a stateless reconcile
type ResolveResponse struct {
	Decision  string        `json:"decision"`
	Selection string        `json:"selection"`
	Cleared   bool          `json:"cleared"`
	Visible   []RowResponse `json:"visible"`
}

// ChangeResponse reports a cleared selection
type ChangeResponse struct {
	Kind     string `json:"kind"`
	Previous string `json:"previous"`
}

// LevelResponse represents one level of a session
type LevelResponse struct {
	Kind       string        `json:"kind"`
	ParentKind string        `json:"parent_kind,omitempty"`
	Parent     string        `json:"parent"`
	Selection  string        `json:"selection"`
	Loaded     bool          `json:"loaded"`
	Hydrating  bool          `json:"hydrating"`
	Visible    []RowResponse `json:"visible"`
}

// SessionResponse represents a selection session
type SessionResponse struct {
	ID        uuid.UUID        `json:"id"`
	Hydrating bool             `json:"hydrating"`
	Levels    []LevelResponse  `json:"levels"`
	Cleared   []ChangeResponse `json:"cleared"`
	Stale     bool             `json:"stale,omitempty"`
}

func toRowResponses(rows []reference.ReferenceRow) []RowResponse {
	out := make([]RowResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, RowResponse{
			ID:        r.ID,
			ParentKey: r.ParentKey,
			Code:      r.Code,
			Label:     r.Label,
			SortOrder: r.SortOrder,
		})
	}
	return out
}

func toChangeResponses(changes []Change) []ChangeResponse {
	out := make([]ChangeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, ChangeResponse{Kind: string(c.Kind), Previous: c.Previous})
	}
	return out
}

func toSessionResponse(s *Session, changes []Change) *SessionResponse {
	state := s.State()
	levels := make([]LevelResponse, 0, len(state))
	for _, l := range state {
		levels = append(levels, LevelResponse{
			Kind:       string(l.Kind),
			ParentKind: string(l.ParentKind),
			Parent:     l.Parent,
			Selection:  l.Selection,
			Loaded:     l.Loaded,
			Hydrating:  l.Hydrating,
			Visible:    toRowResponses(l.Visible),
		})
	}
	return &SessionResponse{
		ID:        s.ID(),
		Hydrating: s.IsHydrating(),
		Levels:    levels,
		Cleared:   toChangeResponses(changes),
	}
}
