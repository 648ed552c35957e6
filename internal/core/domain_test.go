package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, in := range []string{"shopping", "foodAndDrinks", "billsAndUtilities", "others"} {
		c, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, Category(in), c)
	}
	for _, in := range []string{"", "Shopping", "travel", "Amount Added"} {
		_, err := ParseCategory(in)
		assert.ErrorIs(t, err, ErrUnknownCategory, in)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, 3, 14), d)

	d, err = ParseDate("2025-03-14T23:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, 3, 14), d)

	_, err = ParseDate("")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = ParseDate("14/03/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestExpenditureValidate(t *testing.T) {
	good := Expenditure{
		Purpose:  "Lunch",
		Sum:      FromCents(5000),
		Date:     NewDate(2025, 1, 1),
		Category: FoodAndDrinks,
	}
	require.NoError(t, good.Validate())

	cases := []struct {
		name  string
		mut   func(*Expenditure)
		want  error
		field string
	}{
		{"zero sum", func(e *Expenditure) { e.Sum = Zero }, ErrInvalidAmount, ""},
		{"negative sum", func(e *Expenditure) { e.Sum = FromCents(-1) }, ErrInvalidAmount, ""},
		{"unknown category", func(e *Expenditure) { e.Category = "travel" }, ErrUnknownCategory, ""},
		{"credit label", func(e *Expenditure) { e.Category = AmountAdded }, ErrUnknownCategory, ""},
		{"blank purpose", func(e *Expenditure) { e.Purpose = "  " }, ErrMissingField, "purpose"},
		{"zero date", func(e *Expenditure) { e.Date = Date{} }, ErrMissingField, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			tc.mut(&e)
			err := e.Validate()
			require.ErrorIs(t, err, tc.want)
			if tc.field != "" {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, tc.field, fe.Field)
			}
		})
	}
}

func TestNewAccountHasAllCategories(t *testing.T) {
	acc := NewAccount("a1")
	assert.True(t, acc.Remaining.IsZero())
	assert.Len(t, acc.ByCategory, 4)
	for _, c := range Categories {
		v, ok := acc.ByCategory[c]
		assert.True(t, ok, c)
		assert.True(t, v.IsZero(), c)
	}
	assert.NotNil(t, acc.Transactions)
	assert.Empty(t, acc.Transactions)
}

func TestAccountCreditAndDebit(t *testing.T) {
	acc := NewAccount("a1")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tx, err := acc.Credit(FromCents(50000), now)
	require.NoError(t, err)
	assert.Equal(t, Credit, tx.Kind)
	assert.Equal(t, AmountAdded, tx.Category)
	assert.Equal(t, CreditPurpose, tx.Purpose)
	assert.Equal(t, int64(50000), acc.Remaining.Cents())

	_, err = acc.Debit(Expenditure{Purpose: "Lunch", Sum: FromCents(5000), Date: DateOf(now), Category: FoodAndDrinks})
	require.NoError(t, err)
	assert.Equal(t, int64(45000), acc.Remaining.Cents())
	assert.Equal(t, int64(5000), acc.ByCategory[FoodAndDrinks].Cents())
	assert.True(t, acc.ByCategory[Shopping].IsZero())
	require.Len(t, acc.Transactions, 2)
	assert.Equal(t, Debit, acc.Transactions[1].Kind)

	// Overdraft is allowed.
	_, err = acc.Debit(Expenditure{Purpose: "Rent", Sum: FromCents(100000), Date: DateOf(now), Category: BillsAndUtilities})
	require.NoError(t, err)
	assert.True(t, acc.Remaining.IsNegative())
	assert.True(t, acc.Reconcile().OK())
}

func TestAccountRejectsInvalidWithoutMutation(t *testing.T) {
	acc := NewAccount("a1")
	_, err := acc.Credit(FromCents(1000), time.Now())
	require.NoError(t, err)
	before := acc.Clone()

	_, err = acc.Credit(Zero, time.Now())
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = acc.Debit(Expenditure{Purpose: "x", Sum: FromCents(1), Date: NewDate(2025, 1, 1), Category: "travel"})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	assert.Equal(t, before, acc)
}

func TestAccountCloneIsDeep(t *testing.T) {
	acc := NewAccount("a1")
	_, _ = acc.Credit(FromCents(100), time.Now())

	cp := acc.Clone()
	_, _ = cp.Debit(Expenditure{Purpose: "x", Sum: FromCents(50), Date: NewDate(2025, 1, 1), Category: Shopping})

	assert.Len(t, acc.Transactions, 1)
	assert.True(t, acc.ByCategory[Shopping].IsZero())
	assert.Equal(t, int64(100), acc.Remaining.Cents())
}

func TestReconcileDetectsDrift(t *testing.T) {
	acc := NewAccount("a1")
	_, _ = acc.Credit(FromCents(1000), time.Now())
	_, _ = acc.Debit(Expenditure{Purpose: "x", Sum: FromCents(300), Date: NewDate(2025, 1, 1), Category: Other})

	rep := acc.Reconcile()
	require.True(t, rep.OK())
	assert.Equal(t, int64(1000), rep.TotalCredited.Cents())
	assert.Equal(t, int64(300), rep.TotalDebited.Cents())

	acc.ByCategory[Other] = FromCents(1)
	acc.Remaining = FromCents(5)
	rep = acc.Reconcile()
	assert.False(t, rep.OK())
	assert.Equal(t, int64(700), rep.ExpectedRemaining.Cents())
	require.Len(t, rep.Drift, 1)
	assert.Equal(t, Other, rep.Drift[0].Category)
}

func TestValidateEmailAndPassword(t *testing.T) {
	assert.NoError(t, ValidateEmail("jane@example.com"))
	assert.ErrorIs(t, ValidateEmail(""), ErrMissingField)
	assert.ErrorIs(t, ValidateEmail("not-an-email"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("Jane <jane@example.com>"), ErrInvalidEmail)

	assert.NoError(t, ValidatePassword("secret"))
	assert.ErrorIs(t, ValidatePassword("12345"), ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword(""), ErrMissingField)
	assert.NoError(t, ValidatePassword(strings.Repeat("p", MaxPasswordLen)))
	tooLong := ValidatePassword(strings.Repeat("p", MaxPasswordLen+1))
	assert.ErrorIs(t, tooLong, ErrPasswordTooLong)
	assert.True(t, IsValidation(tooLong))
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
}
