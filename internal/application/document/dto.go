package document

import (
	"time"

	"github.com/finhr/backend/internal/domain/document"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HeaderPatchRequest represents a partial header update
type HeaderPatchRequest struct {
	AmountExclTax  *decimal.Decimal `json:"amount_excl_tax"`
	TaxAmount      *decimal.Decimal `json:"tax_amount"`
	AmountInclTax  *decimal.Decimal `json:"amount_incl_tax"`
	Date           *time.Time       `json:"date"`
	EntityID       *string          `json:"entity_id" binding:"omitempty,max=64"`
	CounterpartyID *string          `json:"counterparty_id" binding:"omitempty,max=64"`
	CategoryID     *string          `json:"category_id" binding:"omitempty,max=64"`
	SubCategoryID  *string          `json:"sub_category_id" binding:"omitempty,max=64"`
	Description    *string          `json:"description" binding:"omitempty,max=500"`
}

// ToPatch converts the request to a domain patch
func (r HeaderPatchRequest) ToPatch() document.HeaderPatch {
	return document.HeaderPatch{
		AmountExclTax:  r.AmountExclTax,
		TaxAmount:      r.TaxAmount,
		AmountInclTax:  r.AmountInclTax,
		Date:           r.Date,
		EntityID:       r.EntityID,
		CounterpartyID: r.CounterpartyID,
		CategoryID:     r.CategoryID,
		SubCategoryID:  r.SubCategoryID,
		Description:    r.Description,
	}
}

// LineRefRequest identifies a line by id, temporary key or slot (checked in that order)
type LineRefRequest struct {
	ID   *uuid.UUID `json:"id"`
	Key  string     `json:"key" binding:"max=64"`
	Slot *int       `json:"slot" binding:"omitempty,min=0"`
}

// ToRef converts the request to a domain line reference
func (r LineRefRequest) ToRef() (document.LineRef, error) {
	switch {
	case r.ID != nil:
		return document.ByID(*r.ID), nil
	case r.Key != "":
		return document.ByKey(r.Key), nil
	case r.Slot != nil:
		return document.BySlot(*r.Slot), nil
	}
	return document.LineRef{}, shared.NewDomainError("INVALID_INPUT", "A line id, key or slot is required")
}

// AddLineRequest represents a request to add a line
type AddLineRequest struct {
	AmountExclTax decimal.Decimal `json:"amount_excl_tax"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	CategoryID    string          `json:"category_id" binding:"max=64"`
	SubCategoryID string          `json:"sub_category_id" binding:"max=64"`
	Label         string          `json:"label" binding:"max=200"`
}

// ToLine converts the request to a draft line
func (r AddLineRequest) ToLine() document.Line {
	return document.Line{
		AmountExclTax: r.AmountExclTax,
		TaxAmount:     r.TaxAmount,
		CategoryID:    r.CategoryID,
		SubCategoryID: r.SubCategoryID,
		Label:         r.Label,
	}
}

// EditLineRequest represents a partial update of one line
type EditLineRequest struct {
	LineRefRequest
	AmountExclTax *decimal.Decimal `json:"amount_excl_tax"`
	TaxAmount     *decimal.Decimal `json:"tax_amount"`
	CategoryID    *string          `json:"category_id" binding:"omitempty,max=64"`
	SubCategoryID *string          `json:"sub_category_id" binding:"omitempty,max=64"`
	Label         *string          `json:"label" binding:"omitempty,max=200"`
}

// ToPatch converts the request to a domain line patch
func (r EditLineRequest) ToPatch() document.LinePatch {
	return document.LinePatch{
		AmountExclTax: r.AmountExclTax,
		TaxAmount:     r.TaxAmount,
		CategoryID:    r.CategoryID,
		SubCategoryID: r.SubCategoryID,
		Label:         r.Label,
	}
}

// OpenDraftRequest opens an editor for a new document, or for an existing one when DocumentID is set
type OpenDraftRequest struct {
	DocumentID *uuid.UUID          `json:"document_id"`
	Number     string              `json:"number" binding:"max=50"`
	Header     *HeaderPatchRequest `json:"header"`
}

// ListFilter represents document list query parameters
type ListFilter struct {
	Search   string `form:"search" binding:"max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=DRAFT POSTED"`
	EntityID string `form:"entity_id" binding:"max=64"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
}

// HeaderResponse represents a document header in API responses
type HeaderResponse struct {
	AmountExclTax  decimal.Decimal `json:"amount_excl_tax"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	AmountInclTax  decimal.Decimal `json:"amount_incl_tax"`
	Date           *time.Time      `json:"date,omitempty"`
	EntityID       string          `json:"entity_id"`
	CounterpartyID string          `json:"counterparty_id"`
	CategoryID     string          `json:"category_id"`
	SubCategoryID  string          `json:"sub_category_id"`
	Description    string          `json:"description"`
}

// LineResponse represents a line in API responses
type LineResponse struct {
	Slot          int             `json:"slot"`
	ID            *uuid.UUID      `json:"id,omitempty"`
	Key           string          `json:"key,omitempty"`
	AmountExclTax decimal.Decimal `json:"amount_excl_tax"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	CategoryID    string          `json:"category_id"`
	SubCategoryID string          `json:"sub_category_id"`
	Label         string          `json:"label"`
}

// EvaluationResponse represents a reconciliation result
type EvaluationResponse struct {
	IsValid      bool            `json:"is_valid"`
	Reason       string          `json:"reason"`
	HeaderAmount decimal.Decimal `json:"header_amount"`
	LineTotal    decimal.Decimal `json:"line_total"`
	Deviation    decimal.Decimal `json:"deviation"`
	Tolerance    decimal.Decimal `json:"tolerance"`
	Message      string          `json:"message"`
}

// WarningResponse represents a non-blocking warning
type WarningResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DraftResponse represents an open editor draft
type DraftResponse struct {
	DraftID    uuid.UUID          `json:"draft_id"`
	DocumentID *uuid.UUID         `json:"document_id,omitempty"`
	Number     string             `json:"number"`
	Version    int                `json:"version"`
	Header     HeaderResponse     `json:"header"`
	Lines      []LineResponse     `json:"lines"`
	Deletions  []uuid.UUID        `json:"pending_deletions"`
	Evaluation EvaluationResponse `json:"evaluation"`
	Warnings   []WarningResponse  `json:"warnings"`
}

// SaveOutcome is the result of a save request. A blocked save is an
// outcome, not an error: Saved is false and Evaluation explains why.
type SaveOutcome struct {
	Saved      bool               `json:"saved"`
	DocumentID *uuid.UUID         `json:"document_id,omitempty"`
	Number     string             `json:"number,omitempty"`
	Version    int                `json:"version,omitempty"`
	Evaluation EvaluationResponse `json:"evaluation"`
	Warnings   []WarningResponse  `json:"warnings"`
}

// DocumentListResponse represents a stored document in list responses
type DocumentListResponse struct {
	ID            uuid.UUID       `json:"id"`
	Number        string          `json:"number"`
	Status        string          `json:"status"`
	Date          *time.Time      `json:"date,omitempty"`
	EntityID      string          `json:"entity_id"`
	AmountExclTax decimal.Decimal `json:"amount_excl_tax"`
	Description   string          `json:"description"`
	Version       int             `json:"version"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DocumentResponse represents a stored document with its lines
type DocumentResponse struct {
	DocumentListResponse
	Header HeaderResponse `json:"header"`
	Lines  []LineResponse `json:"lines"`
}

func toHeaderResponse(h document.Header) HeaderResponse {
	resp := HeaderResponse{
		AmountExclTax:  h.AmountExclTax,
		TaxAmount:      h.TaxAmount,
		AmountInclTax:  h.AmountInclTax,
		EntityID:       h.EntityID,
		CounterpartyID: h.CounterpartyID,
		CategoryID:     h.CategoryID,
		SubCategoryID:  h.SubCategoryID,
		Description:    h.Description,
	}
	if !h.Date.IsZero() {
		d := h.Date
		resp.Date = &d
	}
	return resp
}

func toLineResponses(lines []document.Line) []LineResponse {
	out := make([]LineResponse, 0, len(lines))
	for i, l := range lines {
		out = append(out, LineResponse{
			Slot:          i,
			ID:            l.ID,
			Key:           l.Key,
			AmountExclTax: l.AmountExclTax,
			TaxAmount:     l.TaxAmount,
			CategoryID:    l.CategoryID,
			SubCategoryID: l.SubCategoryID,
			Label:         l.Label,
		})
	}
	return out
}

// ToEvaluationResponse converts a reconciliation result
func ToEvaluationResponse(r document.Result) EvaluationResponse {
	return EvaluationResponse{
		IsValid:      r.IsValid,
		Reason:       string(r.Reason),
		HeaderAmount: r.HeaderAmount,
		LineTotal:    r.LineTotal,
		Deviation:    r.Deviation,
		Tolerance:    r.Tolerance,
		Message:      r.Message(),
	}
}

func toWarningResponses(warnings []document.Warning) []WarningResponse {
	out := make([]WarningResponse, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, WarningResponse{Code: w.Code, Message: w.Message})
	}
	return out
}

func toDocumentListResponse(d *document.Document) DocumentListResponse {
	resp := DocumentListResponse{
		ID:            d.ID,
		Number:        d.Number,
		Status:        string(d.Status),
		EntityID:      d.Header.EntityID,
		AmountExclTax: d.Header.AmountExclTax,
		Description:   d.Header.Description,
		Version:       d.Version,
		UpdatedAt:     d.UpdatedAt,
	}
	if !d.Header.Date.IsZero() {
		date := d.Header.Date
		resp.Date = &date
	}
	return resp
}

func toDocumentResponse(d *document.Document) *DocumentResponse {
	return &DocumentResponse{
		DocumentListResponse: toDocumentListResponse(d),
		Header:               toHeaderResponse(d.Header),
		Lines:                toLineResponses(d.Lines),
	}
}

func toDraftResponse(draftID uuid.UUID, d document.Draft, tolerance decimal.Decimal) *DraftResponse {
	deletions := make([]uuid.UUID, 0, len(d.Deletions))
	for _, del := range d.Deletions {
		deletions = append(deletions, del.LineID)
	}
	return &DraftResponse{
		DraftID:    draftID,
		DocumentID: d.DocumentID,
		Number:     d.Number,
		Version:    d.Version,
		Header:     toHeaderResponse(d.Header),
		Lines:      toLineResponses(d.Lines.Lines()),
		Deletions:  deletions,
		Evaluation: ToEvaluationResponse(d.Evaluate(tolerance)),
		Warnings:   toWarningResponses(document.CheckTaxConsistency(d.Header, tolerance)),
	}
}
