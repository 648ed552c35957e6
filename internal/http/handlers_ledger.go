package http

import (
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/report"
)

type balanceResponse struct {
	AmountRemaining core.Money `json:"amountRemaining"`
}

// account resolves the caller's ledger. The account ID equals the user ID.
func (s *Server) account(w http.ResponseWriter, r *http.Request) (core.Account, bool) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrNoToken)
		return core.Account{}, false
	}
	acc, err := s.ledger.GetAccountSnapshot(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return core.Account{}, false
	}
	return acc, true
}

func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.account(w, r)
	if !ok {
		return
	}
	writeOK(w, http.StatusOK, "", acc)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := historyFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	acc, ok := s.account(w, r)
	if !ok {
		return
	}
	writeOK(w, http.StatusOK, "", report.History(acc, f))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.account(w, r)
	if !ok {
		return
	}
	writeOK(w, http.StatusOK, "", report.BreakdownOf(acc))
}

func (s *Server) handleAddMoney(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrNoToken)
		return
	}
	var req addMoneyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	remaining, err := s.ledger.AddMoney(r.Context(), sess.UserID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Money added", balanceResponse{AmountRemaining: remaining})
}

func (s *Server) handleAddExpenditure(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, auth.ErrNoToken)
		return
	}
	var req addExpenditureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.expenditure()
	if err != nil {
		writeError(w, r, err)
		return
	}
	remaining, err := s.ledger.AddExpenditure(r.Context(), sess.UserID, e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Expenditure added", balanceResponse{AmountRemaining: remaining})
}
