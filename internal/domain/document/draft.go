package document

import (
	"time"

	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Header holds the document-level claims. The three amounts are edited
// independently and are not derived from the lines.
type Header struct {
	AmountExclTax  decimal.Decimal
	TaxAmount      decimal.Decimal
	AmountInclTax  decimal.Decimal
	Date           time.Time
	EntityID       string
	CounterpartyID string
	CategoryID     string
	SubCategoryID  string
	Description    string
}

// HeaderPatch is a partial header update; nil fields are left unchanged
type HeaderPatch struct {
	AmountExclTax  *decimal.Decimal
	TaxAmount      *decimal.Decimal
	AmountInclTax  *decimal.Decimal
	Date           *time.Time
	EntityID       *string
	CounterpartyID *string
	CategoryID     *string
	SubCategoryID  *string
	Description    *string
}

// AmountScale is the number of decimal places amounts are stored with
const AmountScale = 2

var ErrAmountScale = shared.NewDomainError("INVALID_AMOUNT", "Amounts carry at most two decimal places")

type amountField struct {
	name  string
	value *decimal.Decimal
}

func checkAmounts(fields ...amountField) error {
	for _, f := range fields {
		if f.value != nil && !f.value.Equal(f.value.Truncate(AmountScale)) {
			return ErrAmountScale.Withf("%s %s has more than %d decimal places", f.name, f.value.String(), AmountScale)
		}
	}
	return nil
}

// Validate rejects amounts finer than AmountScale
func (p HeaderPatch) Validate() error {
	return checkAmounts(
		amountField{"amount_excl_tax", p.AmountExclTax},
		amountField{"tax_amount", p.TaxAmount},
		amountField{"amount_incl_tax", p.AmountInclTax},
	)
}

// Apply returns a copy of the header with the patch merged in
func (p HeaderPatch) Apply(h Header) Header {
	if p.AmountExclTax != nil {
		h.AmountExclTax = *p.AmountExclTax
	}
	if p.TaxAmount != nil {
		h.TaxAmount = *p.TaxAmount
	}
	if p.AmountInclTax != nil {
		h.AmountInclTax = *p.AmountInclTax
	}
	if p.Date != nil {
		h.Date = *p.Date
	}
	if p.EntityID != nil {
		h.EntityID = *p.EntityID
	}
	if p.CounterpartyID != nil {
		h.CounterpartyID = *p.CounterpartyID
	}
	if p.CategoryID != nil {
		h.CategoryID = *p.CategoryID
	}
	if p.SubCategoryID != nil {
		h.SubCategoryID = *p.SubCategoryID
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	return h
}

// LineDeletion instructs the store to delete a persisted line at save time
type LineDeletion struct {
	LineID uuid.UUID
}

// Draft is the in-memory state of a document being edited.
// DocumentID is nil until the document has been saved once.
type Draft struct {
	DocumentID *uuid.UUID
	Number     string
	Version    int
	Header     Header
	Lines      LineSet
	Deletions  []LineDeletion
}

// NewDraft returns an empty draft for a new document
func NewDraft() Draft {
	return Draft{}
}

// IsNew returns true if the draft has never been persisted
func (d Draft) IsNew() bool {
	return d.DocumentID == nil
}

// WithHeader returns a copy of the draft with the header patched
func (d Draft) WithHeader(patch HeaderPatch) Draft {
	d.Header = patch.Apply(d.Header)
	d.Deletions = append([]LineDeletion(nil), d.Deletions...)
	return d
}

// CheckAmounts rejects a header or line amount finer than AmountScale.
// Such a draft could reconcile in memory and then stop reconciling once
// the store rounds each amount.
func (d Draft) CheckAmounts() error {
	h := d.Header
	fields := []amountField{
		{"amount_excl_tax", &h.AmountExclTax},
		{"tax_amount", &h.TaxAmount},
		{"amount_incl_tax", &h.AmountInclTax},
	}
	for _, l := range d.Lines.Lines() {
		fields = append(fields, amountField{"line amount_excl_tax", &l.AmountExclTax}, amountField{"line tax_amount", &l.TaxAmount})
	}
	return checkAmounts(fields...)
}

// Evaluate reconciles the draft's header against its lines
func (d Draft) Evaluate(tolerance decimal.Decimal) Result {
	return Evaluate(d.Header, d.Lines.Lines(), tolerance)
}

// LineMutation is one of AddLine, EditLine or RemoveLine
type LineMutation interface {
	applyTo(lines LineSet) (LineSet, *Line, error)
}

// AddLine appends a line
type AddLine struct {
	Line Line
}

func (m AddLine) applyTo(lines LineSet) (LineSet, *Line, error) {
	if err := checkAmounts(
		amountField{"amount_excl_tax", &m.Line.AmountExclTax},
		amountField{"tax_amount", &m.Line.TaxAmount},
	); err != nil {
		return lines, nil, err
	}
	next, _ := lines.Add(m.Line)
	return next, nil, nil
}

// EditLine merges a patch into the referenced line
type EditLine struct {
	Ref   LineRef
	Patch LinePatch
}

func (m EditLine) applyTo(lines LineSet) (LineSet, *Line, error) {
	if err := checkAmounts(
		amountField{"amount_excl_tax", m.Patch.AmountExclTax},
		amountField{"tax_amount", m.Patch.TaxAmount},
	); err != nil {
		return lines, nil, err
	}
	next, err := lines.Update(m.Ref, m.Patch)
	return next, nil, err
}

// RemoveLine removes the referenced line
type RemoveLine struct {
	Ref LineRef
}

func (m RemoveLine) applyTo(lines LineSet) (LineSet, *Line, error) {
	next, removed, err := lines.Remove(m.Ref)
	if err != nil {
		return lines, nil, err
	}
	return next, &removed, nil
}

// ApplyLineMutation returns a new draft with the mutation applied to its lines.
// The header is passed through untouched, so header edits made before a line
// edit are never lost. Removing a persisted line also returns the deletion
// instruction for the store; removing a draft line is purely local.
// On error the original draft is returned unchanged.
func ApplyLineMutation(draft Draft, mutation LineMutation) (Draft, *LineDeletion, error) {
	lines, removed, err := mutation.applyTo(draft.Lines)
	if err != nil {
		return draft, nil, err
	}

	next := draft
	next.Lines = lines
	next.Deletions = append([]LineDeletion(nil), draft.Deletions...)

	if removed == nil || removed.ID == nil {
		return next, nil, nil
	}
	deletion := LineDeletion{LineID: *removed.ID}
	next.Deletions = append(next.Deletions, deletion)
	return next, &deletion, nil
}
