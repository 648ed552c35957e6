package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Expenditure categories, using the wire values clients send.
const (
	Shopping          Category = "shopping"
	FoodAndDrinks     Category = "foodAndDrinks"
	BillsAndUtilities Category = "billsAndUtilities"
	Other             Category = "others"

	// AmountAdded is the synthetic category recorded on credits.
	AmountAdded Category = "Amount Added"
)

const (
	Credit Kind = "credit"
	Debit  Kind = "debit"
)

// CreditPurpose is the purpose text recorded on every add-money transaction.
const CreditPurpose = "Add Money"

const maxPurposeLen = 200

type (
	Category string

	Kind string

	// Date is a calendar day at UTC midnight.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID       string    `json:"id"`
		Purpose  string    `json:"purpose"`
		Category Category  `json:"category"`
		Sum      Money     `json:"sum"`
		Date     time.Time `json:"date"`
		Kind     Kind      `json:"kind"`
	}

	// Account is the per-user ledger. Transactions are append-only and
	// their order is insertion order.
	Account struct {
		ID           string             `json:"id"`
		Remaining    Money              `json:"amountRemaining"`
		ByCategory   map[Category]Money `json:"amountByCategory"`
		Transactions []Transaction      `json:"transactions"`
		Version      int64              `json:"version"`
	}

	// Expenditure is a validated add-expenditure request.
	Expenditure struct {
		Purpose  string
		Sum      Money
		Date     Date
		Category Category
	}
)

// Categories lists the expenditure categories in display order.
var Categories = []Category{Shopping, FoodAndDrinks, BillsAndUtilities, Other}

var categoryLabels = map[Category]string{
	Shopping:          "Shopping",
	FoodAndDrinks:     "Food & Drinks",
	BillsAndUtilities: "Bills",
	Other:             "Other",
	AmountAdded:       "Amount Added",
}

// ParseCategory maps a wire value to a Category. Anything outside the four
// expenditure categories, including the empty string, is ErrUnknownCategory.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.IsExpenditure() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

func (c Category) IsExpenditure() bool {
	switch c {
	case Shopping, FoodAndDrinks, BillsAndUtilities, Other:
		return true
	}
	return false
}

// Label returns the display name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (k Kind) Valid() bool {
	return k == Credit || k == Debit
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, Missing("date")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, &FieldError{Field: "date", Err: ErrInvalidDate}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return Missing("date")
	}
	return nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (e Expenditure) Validate() error {
	if err := e.Sum.Validate(); err != nil {
		return err
	}
	if !e.Category.IsExpenditure() {
		return ErrUnknownCategory
	}
	if strings.TrimSpace(e.Purpose) == "" {
		return Missing("purpose")
	}
	if len(e.Purpose) > maxPurposeLen {
		return &FieldError{Field: "purpose", Err: ErrInvalidInput}
	}
	return e.Date.Validate()
}

// NewAccountID returns a fresh opaque account/user identifier.
func NewAccountID() string {
	return uuid.NewString()
}

// NewTransactionID returns a lexically time-ordered identifier.
func NewTransactionID() string {
	return ulid.Make().String()
}

// NewAccount returns an empty ledger with every category present at zero.
func NewAccount(id string) Account {
	by := make(map[Category]Money, len(Categories))
	for _, c := range Categories {
		by[c] = Zero
	}
	return Account{
		ID:           id,
		ByCategory:   by,
		Transactions: []Transaction{},
	}
}

// Clone returns a deep copy; mutating the copy never affects a.
func (a Account) Clone() Account {
	out := a
	out.ByCategory = make(map[Category]Money, len(a.ByCategory))
	for k, v := range a.ByCategory {
		out.ByCategory[k] = v
	}
	for _, c := range Categories {
		if _, ok := out.ByCategory[c]; !ok {
			out.ByCategory[c] = Zero
		}
	}
	out.Transactions = make([]Transaction, len(a.Transactions))
	copy(out.Transactions, a.Transactions)
	return out
}

// Credit adds amount to the balance and appends the matching transaction.
func (a *Account) Credit(amount Money, at time.Time) (Transaction, error) {
	if err := amount.Validate(); err != nil {
		return Transaction{}, err
	}
	tx := Transaction{
		ID:       NewTransactionID(),
		Purpose:  CreditPurpose,
		Category: AmountAdded,
		Sum:      amount,
		Date:     at.UTC(),
		Kind:     Credit,
	}
	a.apply(tx)
	return tx, nil
}

// Debit records an expenditure. The balance may go negative.
func (a *Account) Debit(e Expenditure) (Transaction, error) {
	if err := e.Validate(); err != nil {
		return Transaction{}, err
	}
	tx := Transaction{
		ID:       NewTransactionID(),
		Purpose:  strings.TrimSpace(e.Purpose),
		Category: e.Category,
		Sum:      e.Sum,
		Date:     e.Date.Time,
		Kind:     Debit,
	}
	a.apply(tx)
	return tx, nil
}

func (a *Account) apply(tx Transaction) {
	if a.ByCategory == nil {
		a.ByCategory = make(map[Category]Money, len(Categories))
	}
	switch tx.Kind {
	case Credit:
		a.Remaining = a.Remaining.Add(tx.Sum)
	case Debit:
		a.Remaining = a.Remaining.Sub(tx.Sum)
		a.ByCategory[tx.Category] = a.ByCategory[tx.Category].Add(tx.Sum)
	}
	a.Transactions = append(a.Transactions, tx)
}
