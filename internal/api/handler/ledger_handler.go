package handler

import (
	"context"
	"net/http"

	"bank_ledger/internal/api/middleware"
	"bank_ledger/internal/app/service"
	"bank_ledger/internal/common"
	"bank_ledger/internal/platform/idempotency"

	"github.com/go-chi/chi/v5"
)

type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type TransactionResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
	Balance int64  `json:"balance"`
}

// LedgerHandler serves the self-service account routes.
type LedgerHandler struct {
	ledgerService *service.LedgerService
	idempotency   *idempotency.Guard
	callers       middleware.CallerResolver
}

func NewLedgerHandler(ls *service.LedgerService, guard *idempotency.Guard, callers middleware.CallerResolver) *LedgerHandler {
	return &LedgerHandler{ledgerService: ls, idempotency: guard, callers: callers}
}

func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/balance", h.getBalance)
	r.Post("/deposit", h.deposit)
	r.Post("/withdraw", h.withdraw)
}

// account reads the target user_id and checks the caller may touch it.
// Ownership is only ever proven by a bearer token.
func (h *LedgerHandler) account(r *http.Request, p common.Params) (int64, error) {
	userID, err := p.Int64("user_id")
	if err != nil {
		return 0, err
	}
	caller, err := h.callers.Caller(r, p, "")
	if err != nil {
		return 0, err
	}
	if err := h.ledgerService.AuthorizeAccountAccess(r.Context(), caller, userID); err != nil {
		return 0, err
	}
	return userID, nil
}

func (h *LedgerHandler) getBalance(w http.ResponseWriter, r *http.Request) {
	p, err := common.ReadParams(r)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	userID, err := h.account(r, p)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	balance, err := h.ledgerService.GetBalance(r.Context(), userID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
}

func (h *LedgerHandler) deposit(w http.ResponseWriter, r *http.Request) {
	h.transact(w, r, "deposit", "Deposit successful", h.ledgerService.Deposit)
}

func (h *LedgerHandler) withdraw(w http.ResponseWriter, r *http.Request) {
	h.transact(w, r, "withdraw", "Withdrawal successful", h.ledgerService.Withdraw)
}

func (h *LedgerHandler) transact(
	w http.ResponseWriter,
	r *http.Request,
	op, message string,
	apply func(ctx context.Context, userID, amount int64) (int64, error),
) {
	p, err := common.ReadParams(r)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	userID, err := h.account(r, p)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	amount, err := p.Int64("amount")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	release, err := h.idempotency.Claim(r.Context(), op, userID, r.Header.Get(idempotency.HeaderName))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	balance, err := apply(r.Context(), userID, amount)
	if err != nil {
		release() // Let the client retry with the same key
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, TransactionResponse{Message: message, UserID: userID, Balance: balance})
}
