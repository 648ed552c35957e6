package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/report"
	"fintrack/internal/services"
)

const maxJSONBody = 64 << 10

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r signupRequest) input() services.SignupInput {
	return services.SignupInput{Username: r.Username, Email: r.Email, Password: r.Password}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addMoneyRequest struct {
	Amount core.Money `json:"amount"`
}

type addExpenditureRequest struct {
	Purpose  string     `json:"purpose"`
	Sum      core.Money `json:"sum"`
	Date     string     `json:"date"`
	Category string     `json:"category"`
}

// expenditure converts the request. Only the date is parsed here; the
// remaining fields are validated by the ledger.
func (r addExpenditureRequest) expenditure() (core.Expenditure, error) {
	e := core.Expenditure{
		Purpose:  sanitizeInput(r.Purpose),
		Sum:      r.Sum,
		Category: core.Category(strings.TrimSpace(r.Category)),
	}
	if s := strings.TrimSpace(r.Date); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return e, err
		}
		e.Date = d
	}
	return e, nil
}

type settingsRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r settingsRequest) input() services.SettingsInput {
	return services.SettingsInput{
		Username:        sanitizeInput(r.Username),
		Email:           r.Email,
		Password:        r.Password,
		NewPassword:     r.NewPassword,
		ConfirmPassword: r.ConfirmPassword,
	}
}

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty request body", core.ErrInvalidInput)
		case errors.As(err, &maxBytes):
			return fmt.Errorf("%w: request body too large", core.ErrInvalidInput)
		case errors.Is(err, core.ErrInvalidAmount):
			return err
		default:
			return fmt.Errorf("%w: malformed JSON body", core.ErrInvalidInput)
		}
	}
	return nil
}

// historyFilter reads kind, category, from, to and limit from the query.
func historyFilter(r *http.Request) (report.HistoryFilter, error) {
	q := r.URL.Query()
	var f report.HistoryFilter

	if v := strings.TrimSpace(q.Get("kind")); v != "" {
		k := core.Kind(v)
		if !k.Valid() {
			return f, &core.FieldError{Field: "kind", Err: core.ErrInvalidInput}
		}
		f.Kind = k
	}
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		c := core.Category(v)
		if !c.IsExpenditure() && c != core.AmountAdded {
			return f, core.ErrUnknownCategory
		}
		f.Category = c
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = d.Time
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = d.Time
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &core.FieldError{Field: "limit", Err: core.ErrInvalidInput}
		}
		f.Limit = n
	}
	return f, nil
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
