package document

import (
	"fmt"

	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line errors
var (
	ErrLineNotFound = shared.NewDomainError("LINE_NOT_FOUND", "Document line not found")
)

// Line is one editable line of a document. Persisted lines carry an ID,
// draft lines carry a client-side temporary Key instead.
type Line struct {
	ID            *uuid.UUID
	Key           string
	AmountExclTax decimal.Decimal
	TaxAmount     decimal.Decimal
	CategoryID    string
	SubCategoryID string
	Label         string
}

// IsPersisted returns true if the line has been stored before
func (l Line) IsPersisted() bool {
	return l.ID != nil
}

// AmountInclTax returns the line amount including tax
func (l Line) AmountInclTax() decimal.Decimal {
	return l.AmountExclTax.Add(l.TaxAmount)
}

// LinePatch is a partial update; nil fields are left unchanged
type LinePatch struct {
	AmountExclTax *decimal.Decimal
	TaxAmount     *decimal.Decimal
	CategoryID    *string
	SubCategoryID *string
	Label         *string
}

// PatchFrom builds a patch that overwrites every editable field with the line's values
func PatchFrom(l Line) LinePatch {
	return LinePatch{
		AmountExclTax: &l.AmountExclTax,
		TaxAmount:     &l.TaxAmount,
		CategoryID:    &l.CategoryID,
		SubCategoryID: &l.SubCategoryID,
		Label:         &l.Label,
	}
}

func (p LinePatch) apply(l Line) Line {
	if p.AmountExclTax != nil {
		l.AmountExclTax = *p.AmountExclTax
	}
	if p.TaxAmount != nil {
		l.TaxAmount = *p.TaxAmount
	}
	if p.CategoryID != nil {
		l.CategoryID = *p.CategoryID
	}
	if p.SubCategoryID != nil {
		l.SubCategoryID = *p.SubCategoryID
	}
	if p.Label != nil {
		l.Label = *p.Label
	}
	return l
}

type refKind int

const (
	refByID refKind = iota + 1
	refByKey
	refBySlot
)

// LineRef identifies a line by persisted ID, temporary key or slot (position)
type LineRef struct {
	kind refKind
	id   uuid.UUID
	key  string
	slot int
}

// ByID references a persisted line
func ByID(id uuid.UUID) LineRef {
	return LineRef{kind: refByID, id: id}
}

// ByKey references a draft line by its temporary key
func ByKey(key string) LineRef {
	return LineRef{kind: refByKey, key: key}
}

// BySlot references a line by zero-based position
func BySlot(slot int) LineRef {
	return LineRef{kind: refBySlot, slot: slot}
}

// String returns a readable form of the reference
func (r LineRef) String() string {
	switch r.kind {
	case refByID:
		return "id:" + r.id.String()
	case refByKey:
		return "key:" + r.key
	case refBySlot:
		return fmt.Sprintf("slot:%d", r.slot)
	}
	return "none"
}

// LineSet is an ordered collection of lines. Every operation returns a new
// set and leaves the receiver untouched.
type LineSet struct {
	lines []Line
	seq   int
}

// NewLineSet creates a set from existing lines (e.g. loaded from storage)
func NewLineSet(lines ...Line) LineSet {
	s := LineSet{}
	for _, l := range lines {
		s, _ = s.Add(l)
	}
	return s
}

// Lines returns a copy of the lines in insertion order
func (s LineSet) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Len returns the number of lines
func (s LineSet) Len() int {
	return len(s.lines)
}

// Total returns the sum of AmountExclTax over all lines
func (s LineSet) Total() decimal.Decimal {
	return sumExclTax(s.lines)
}

// TaxTotal returns the sum of TaxAmount over all lines
func (s LineSet) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.TaxAmount)
	}
	return total
}

// Get returns the line matching the reference
func (s LineSet) Get(ref LineRef) (Line, error) {
	i, err := s.indexOf(ref)
	if err != nil {
		return Line{}, err
	}
	return s.lines[i], nil
}

// Add appends a line. Draft lines without a key get a temporary one.
func (s LineSet) Add(l Line) (LineSet, LineRef) {
	next := s.clone()
	if l.ID == nil && l.Key == "" {
		l.Key = next.nextKey()
	}
	next.lines = append(next.lines, l)
	return next, next.IdentityOf(l)
}

// Update replaces the matching line with a merged copy
func (s LineSet) Update(ref LineRef, patch LinePatch) (LineSet, error) {
	i, err := s.indexOf(ref)
	if err != nil {
		return s, err
	}
	next := s.clone()
	next.lines[i] = patch.apply(next.lines[i])
	return next, nil
}

// Remove returns the set without the matching line, and the removed line
func (s LineSet) Remove(ref LineRef) (LineSet, Line, error) {
	i, err := s.indexOf(ref)
	if err != nil {
		return s, Line{}, err
	}
	removed := s.lines[i]
	next := LineSet{seq: s.seq, lines: make([]Line, 0, len(s.lines)-1)}
	next.lines = append(next.lines, s.lines[:i]...)
	next.lines = append(next.lines, s.lines[i+1:]...)
	return next, removed, nil
}

// IdentityOf returns the stable reference for a line: its ID when persisted,
// its temporary key otherwise, and its slot as a last resort.
func (s LineSet) IdentityOf(l Line) LineRef {
	if l.ID != nil {
		return ByID(*l.ID)
	}
	if l.Key != "" {
		return ByKey(l.Key)
	}
	for i, candidate := range s.lines {
		if candidate.ID == nil && candidate.Key == "" && candidate.Label == l.Label &&
			candidate.AmountExclTax.Equal(l.AmountExclTax) && candidate.TaxAmount.Equal(l.TaxAmount) {
			return BySlot(i)
		}
	}
	return BySlot(-1)
}

func (s LineSet) indexOf(ref LineRef) (int, error) {
	switch ref.kind {
	case refByID:
		for i, l := range s.lines {
			if l.ID != nil && *l.ID == ref.id {
				return i, nil
			}
		}
	case refByKey:
		for i, l := range s.lines {
			if l.Key != "" && l.Key == ref.key {
				return i, nil
			}
		}
	case refBySlot:
		if ref.slot >= 0 && ref.slot < len(s.lines) {
			return ref.slot, nil
		}
	}
	return -1, ErrLineNotFound.Withf("Document line %s not found", ref)
}

func (s LineSet) clone() LineSet {
	lines := make([]Line, len(s.lines), len(s.lines)+1)
	copy(lines, s.lines)
	return LineSet{lines: lines, seq: s.seq}
}

// nextKey advances the temporary key sequence until it finds a key not in use
func (s *LineSet) nextKey() string {
	for {
		s.seq++
		key := fmt.Sprintf("new-%d", s.seq)
		if _, err := s.indexOf(ByKey(key)); err != nil {
			return key
		}
	}
}

func sumExclTax(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.AmountExclTax)
	}
	return total
}
