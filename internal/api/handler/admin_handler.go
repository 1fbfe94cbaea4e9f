package handler

import (
	"net/http"

	"bank_ledger/internal/api/middleware"
	"bank_ledger/internal/app/service"
	"bank_ledger/internal/common"

	"github.com/go-chi/chi/v5"
)

type CreateUserResponse struct {
	Message   string `json:"message"`
	UserID    int64  `json:"user_id"`
	AccountID int64  `json:"account_id"`
}

// AdminHandler serves the admin-only management routes. Role checks happen in
// the service; the handler only resolves who is asking.
type AdminHandler struct {
	ledgerService *service.LedgerService
	callers       middleware.CallerResolver
}

func NewAdminHandler(ls *service.LedgerService, callers middleware.CallerResolver) *AdminHandler {
	return &AdminHandler{ledgerService: ls, callers: callers}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/create-user", h.createUser)
	r.Get("/customers", h.listCustomers)
	r.Delete("/delete-user", h.deleteUser)
}

func (h *AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	p, err := common.ReadParams(r)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	callerID, err := h.callers.RequireCaller(r, p, "admin_id")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	res, err := h.ledgerService.AdminCreateCustomer(r.Context(), callerID, p["username"], p["password"])
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, CreateUserResponse{
		Message:   "User and account created successfully",
		UserID:    res.UserID,
		AccountID: res.AccountID,
	})
}

func (h *AdminHandler) listCustomers(w http.ResponseWriter, r *http.Request) {
	p, err := common.ReadParams(r)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	callerID, err := h.callers.RequireCaller(r, p, "user_id")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	accounts, err := h.ledgerService.AdminListAccounts(r.Context(), callerID)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, accounts)
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	p, err := common.ReadParams(r)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	callerID, err := h.callers.RequireCaller(r, p, "admin_id")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	targetID, err := p.Int64("user_id")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	if err := h.ledgerService.AdminDeleteUser(r.Context(), callerID, targetID); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, common.MessageResponse{Message: "User deleted successfully"})
}
