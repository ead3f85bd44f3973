package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountScale(t *testing.T) {
	t.Run("lines finer than cents are refused", func(t *testing.T) {
		draft := NewDraft()
		_, _, err := ApplyLineMutation(draft, AddLine{Line: Line{AmountExclTax: amount("0.005")}})
		assert.ErrorIs(t, err, ErrAmountScale)
		assert.Zero(t, draft.Lines.Len())

		draft, _, err = ApplyLineMutation(draft, AddLine{Line: Line{Key: "a", AmountExclTax: amount("0.50")}})
		require.NoError(t, err)
		tax := amount("0.125")
		_, _, err = ApplyLineMutation(draft, EditLine{Ref: ByKey("a"), Patch: LinePatch{TaxAmount: &tax}})
		assert.ErrorIs(t, err, ErrAmountScale)
	})

	t.Run("trailing zeros are not extra precision", func(t *testing.T) {
		v := amount("12.3400")
		assert.NoError(t, HeaderPatch{AmountExclTax: &v}.Validate())
	})

	t.Run("header patch", func(t *testing.T) {
		v := amount("0.051")
		assert.ErrorIs(t, HeaderPatch{AmountInclTax: &v}.Validate(), ErrAmountScale)
	})

	t.Run("a draft that only reconciles unrounded is caught", func(t *testing.T) {
		lines := make([]Line, 10)
		for i := range lines {
			lines[i] = Line{AmountExclTax: amount("0.005")}
		}
		draft := Draft{Header: Header{AmountExclTax: amount("0.05")}, Lines: NewLineSet(lines...)}
		require.True(t, draft.Evaluate(DefaultTolerance).IsValid)
		assert.ErrorIs(t, draft.CheckAmounts(), ErrAmountScale)
	})
}
