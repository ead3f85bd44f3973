package document

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	header := Header{AmountExclTax: amount("100.00")}

	t.Run("mismatch reports the exact deviation", func(t *testing.T) {
		lines := []Line{{AmountExclTax: amount("60.00")}, {AmountExclTax: amount("38.50")}}
		result := Evaluate(header, lines, DefaultTolerance)

		assert.False(t, result.IsValid)
		assert.Equal(t, ReasonAmountMismatch, result.Reason)
		assert.True(t, result.Deviation.Equal(amount("1.50")), result.Deviation.String())
		assert.True(t, result.LineTotal.Equal(amount("98.50")))
		assert.Contains(t, result.Message(), "1.50")
	})

	t.Run("no lines", func(t *testing.T) {
		result := Evaluate(header, nil, DefaultTolerance)
		assert.False(t, result.IsValid)
		assert.Equal(t, ReasonNoLines, result.Reason)
	})

	t.Run("within tolerance is valid", func(t *testing.T) {
		lines := []Line{{AmountExclTax: amount("99.995")}}
		result := Evaluate(header, lines, DefaultTolerance)
		assert.True(t, result.IsValid)
		assert.Equal(t, ReasonOK, result.Reason)
	})

	t.Run("deviation equal to tolerance is valid", func(t *testing.T) {
		lines := []Line{{AmountExclTax: amount("99.99")}}
		assert.True(t, Evaluate(header, lines, DefaultTolerance).IsValid)
	})

	t.Run("zero tolerance falls back to the default", func(t *testing.T) {
		lines := []Line{{AmountExclTax: amount("99.995")}}
		result := Evaluate(header, lines, decimal.Zero)
		assert.True(t, result.IsValid)
		assert.True(t, result.Tolerance.Equal(DefaultTolerance))
	})

	t.Run("evaluating twice gives identical results", func(t *testing.T) {
		lines := []Line{{AmountExclTax: amount("12.34")}}
		assert.Equal(t, Evaluate(header, lines, DefaultTolerance), Evaluate(header, lines, DefaultTolerance))
	})
}

func TestCheckTaxConsistency(t *testing.T) {
	consistent := Header{AmountExclTax: amount("100"), TaxAmount: amount("20"), AmountInclTax: amount("120")}
	assert.Empty(t, CheckTaxConsistency(consistent, DefaultTolerance))

	inconsistent := Header{AmountExclTax: amount("100"), TaxAmount: amount("20"), AmountInclTax: amount("118")}
	warnings := CheckTaxConsistency(inconsistent, DefaultTolerance)
	require.Len(t, warnings, 1)
	assert.Equal(t, "TAX_INCONSISTENT", warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "2.00")
}

func TestFormatAmount(t *testing.T) {
	tests := map[string]string{
		"1.5":         "1.50",
		"0":           "0.00",
		"1234567.891": "1,234,567.89",
		"-98.5":       "-98.50",
		"0.005":       "0.01",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, FormatAmount(amount(in)))
		})
	}
}

func TestApplyLineMutation(t *testing.T) {
	t.Run("header edits made before a line edit are preserved", func(t *testing.T) {
		draft := NewDraft()
		draft, _, err := ApplyLineMutation(draft, AddLine{Line: Line{AmountExclTax: amount("10")}})
		require.NoError(t, err)

		newTotal := amount("250.00")
		description := "March rent"
		draft = draft.WithHeader(HeaderPatch{AmountExclTax: &newTotal, Description: &description})

		next, deletion, err := ApplyLineMutation(draft, AddLine{Line: Line{AmountExclTax: amount("240")}})
		require.NoError(t, err)
		assert.Nil(t, deletion)
		assert.True(t, next.Header.AmountExclTax.Equal(newTotal))
		assert.Equal(t, "March rent", next.Header.Description)
		assert.Equal(t, 2, next.Lines.Len())
		assert.Equal(t, 1, draft.Lines.Len())
	})

	t.Run("removing a draft line is local", func(t *testing.T) {
		draft := NewDraft()
		draft.Lines, _ = draft.Lines.Add(Line{Label: "tmp"})

		next, deletion, err := ApplyLineMutation(draft, RemoveLine{Ref: BySlot(0)})
		require.NoError(t, err)
		assert.Nil(t, deletion)
		assert.Empty(t, next.Deletions)
		assert.Equal(t, 0, next.Lines.Len())
	})

	t.Run("removing a persisted line returns a deletion", func(t *testing.T) {
		id := uuid.New()
		draft := NewDraft()
		draft.Lines = NewLineSet(Line{ID: &id})

		next, deletion, err := ApplyLineMutation(draft, RemoveLine{Ref: ByID(id)})
		require.NoError(t, err)
		require.NotNil(t, deletion)
		assert.Equal(t, id, deletion.LineID)
		assert.Equal(t, []LineDeletion{{LineID: id}}, next.Deletions)
		assert.Empty(t, draft.Deletions)
	})

	t.Run("edit of a missing line leaves the draft unchanged", func(t *testing.T) {
		draft := NewDraft()
		draft.Lines = NewLineSet(Line{Label: "x"})

		next, _, err := ApplyLineMutation(draft, EditLine{Ref: ByKey("nope"), Patch: LinePatch{}})
		assert.ErrorIs(t, err, ErrLineNotFound)
		assert.Equal(t, draft.Lines.Lines(), next.Lines.Lines())
	})
}

func TestDocument_DraftRoundTrip(t *testing.T) {
	tenantID := uuid.New()
	draft := NewDraft()
	draft.Number = "DOC-0001"
	draft.Header.AmountExclTax = amount("10")
	draft.Lines, _ = draft.Lines.Add(Line{AmountExclTax: amount("10")})

	doc, err := FromDraft(tenantID, draft)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	assert.NotNil(t, doc.Lines[0].ID)
	assert.Empty(t, doc.Lines[0].Key)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.True(t, doc.BelongsTo(tenantID))

	reopened, err := doc.ToDraft()
	require.NoError(t, err)
	assert.False(t, reopened.IsNew())
	assert.Equal(t, doc.ID, *reopened.DocumentID)
	assert.Equal(t, 1, reopened.Lines.Len())

	require.NoError(t, doc.Post(reopened.Evaluate(DefaultTolerance)))
	_, err = doc.ToDraft()
	assert.ErrorIs(t, err, ErrDocumentPosted)

	_, err = FromDraft(tenantID, NewDraft())
	assert.Error(t, err)
}
