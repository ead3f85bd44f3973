package document

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineSet_Add(t *testing.T) {
	t.Run("appends in insertion order and keeps the receiver untouched", func(t *testing.T) {
		empty := LineSet{}
		one, _ := empty.Add(Line{Label: "first", AmountExclTax: amount("10")})
		two, _ := one.Add(Line{Label: "second", AmountExclTax: amount("5")})

		assert.Equal(t, 0, empty.Len())
		assert.Equal(t, 1, one.Len())
		require.Equal(t, 2, two.Len())
		assert.Equal(t, "first", two.Lines()[0].Label)
		assert.Equal(t, "second", two.Lines()[1].Label)
	})

	t.Run("assigns distinct temporary keys to draft lines", func(t *testing.T) {
		s, ref1 := LineSet{}.Add(Line{Label: "a"})
		s, ref2 := s.Add(Line{Label: "b"})

		assert.NotEqual(t, ref1, ref2)
		l1, err := s.Get(ref1)
		require.NoError(t, err)
		assert.Equal(t, "a", l1.Label)
		assert.NotEmpty(t, l1.Key)
	})

	t.Run("skips keys already chosen by the client", func(t *testing.T) {
		s, _ := LineSet{}.Add(Line{Key: "new-1", Label: "client"})
		s, ref := s.Add(Line{Label: "generated"})

		l, err := s.Get(ref)
		require.NoError(t, err)
		assert.Equal(t, "new-2", l.Key)
	})

	t.Run("persisted lines are referenced by id", func(t *testing.T) {
		id := uuid.New()
		_, ref := LineSet{}.Add(Line{ID: &id})
		assert.Equal(t, ByID(id), ref)
	})
}

func TestLineSet_Update(t *testing.T) {
	id := uuid.New()
	s := NewLineSet(
		Line{ID: &id, Label: "stored", AmountExclTax: amount("40")},
		Line{Label: "draft", AmountExclTax: amount("60")},
	)

	t.Run("merges the patch into the matching line", func(t *testing.T) {
		newAmount := amount("45")
		updated, err := s.Update(ByID(id), LinePatch{AmountExclTax: &newAmount})
		require.NoError(t, err)

		l, err := updated.Get(ByID(id))
		require.NoError(t, err)
		assert.True(t, l.AmountExclTax.Equal(amount("45")))
		assert.Equal(t, "stored", l.Label)

		orig, _ := s.Get(ByID(id))
		assert.True(t, orig.AmountExclTax.Equal(amount("40")))
	})

	t.Run("addresses a line by slot", func(t *testing.T) {
		label := "renamed"
		updated, err := s.Update(BySlot(1), LinePatch{Label: &label})
		require.NoError(t, err)
		assert.Equal(t, "renamed", updated.Lines()[1].Label)
	})

	t.Run("fails when no line matches", func(t *testing.T) {
		_, err := s.Update(ByKey("missing"), LinePatch{})
		assert.ErrorIs(t, err, ErrLineNotFound)

		_, err = s.Update(BySlot(7), LinePatch{})
		assert.ErrorIs(t, err, ErrLineNotFound)
	})
}

func TestLineSet_Remove(t *testing.T) {
	t.Run("add then remove restores the original set", func(t *testing.T) {
		original := NewLineSet(Line{Label: "a", AmountExclTax: amount("1")}, Line{Label: "b", AmountExclTax: amount("2")})

		withLine, ref := original.Add(Line{Label: "c", AmountExclTax: amount("3")})
		restored, removed, err := withLine.Remove(ref)
		require.NoError(t, err)

		assert.Equal(t, "c", removed.Label)
		assert.Equal(t, original.Lines(), restored.Lines())
		assert.True(t, original.Total().Equal(restored.Total()))
	})

	t.Run("missing line", func(t *testing.T) {
		_, _, err := LineSet{}.Remove(ByID(uuid.New()))
		assert.ErrorIs(t, err, ErrLineNotFound)
	})
}

func TestLineSet_Total(t *testing.T) {
	s := NewLineSet(
		Line{AmountExclTax: amount("0.10"), TaxAmount: amount("0.02")},
		Line{AmountExclTax: amount("0.20"), TaxAmount: amount("0.04")},
	)
	assert.True(t, s.Total().Equal(amount("0.30")))
	assert.True(t, s.TaxTotal().Equal(amount("0.06")))
	assert.True(t, LineSet{}.Total().IsZero())
}

func TestLineSet_IdentityOf(t *testing.T) {
	id := uuid.New()
	s := LineSet{lines: []Line{{Label: "bare", AmountExclTax: amount("1")}}}

	assert.Equal(t, ByID(id), s.IdentityOf(Line{ID: &id, Key: "k"}))
	assert.Equal(t, ByKey("k"), s.IdentityOf(Line{Key: "k"}))
	assert.Equal(t, BySlot(0), s.IdentityOf(Line{Label: "bare", AmountExclTax: amount("1")}))
	assert.Equal(t, BySlot(-1), s.IdentityOf(Line{Label: "other"}))
}
