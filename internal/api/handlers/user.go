package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marc/credit-identity-api/internal/api/middleware"
	"github.com/marc/credit-identity-api/internal/domain"
	"github.com/marc/credit-identity-api/internal/service"
)

type UserHandler struct {
	authService   *service.AuthService
	ledgerService *service.LedgerService
}

func NewUserHandler(authService *service.AuthService, ledgerService *service.LedgerService) *UserHandler {
	return &UserHandler{authService: authService, ledgerService: ledgerService}
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Country   *string `json:"country"`
	City      *string `json:"city"`
}

type TransferRequest struct {
	ToUserID    string          `json:"toUserId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type AmountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(principal.User))
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), principal.User.ID, service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
		City:      req.City,
	})
	if err != nil {
		log.Printf("ERROR [handlers.UpdateProfile] %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) CreditHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	kind := domain.EntryKind(r.URL.Query().Get("type"))
	if kind != "" && !kind.IsValid() {
		http.Error(w, "Invalid entry type", http.StatusBadRequest)
		return
	}

	result, err := h.ledgerService.History(r.Context(), principal.User.ID, kind, page, limit)
	if err != nil {
		log.Printf("ERROR [handlers.CreditHistory] %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		http.Error(w, "Recipient and amount are required", http.StatusBadRequest)
		return
	}

	result, err := h.ledgerService.Transfer(r.Context(), principal.User.ID, toUserID, req.Amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			http.Error(w, "Amount must be greater than 0", http.StatusBadRequest)
		case errors.Is(err, domain.ErrInsufficientBalance):
			http.Error(w, "Insufficient credit balance", http.StatusBadRequest)
		case errors.Is(err, domain.ErrRecipientNotFound):
			http.Error(w, "Recipient not found", http.StatusNotFound)
		default:
			log.Printf("ERROR [handlers.Transfer] %v", err)
			http.Error(w, "Credit transfer failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, domain.EntryDeposit)
}

func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, domain.EntryWithdrawal)
}

func (h *UserHandler) post(w http.ResponseWriter, r *http.Request, kind domain.EntryKind) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.ledgerService.AddCredit(r.Context(), principal.User.ID, req.Amount, kind, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			http.Error(w, "Amount must be greater than 0", http.StatusBadRequest)
		case errors.Is(err, domain.ErrInsufficientBalance):
			http.Error(w, "Insufficient credit balance", http.StatusBadRequest)
		default:
			log.Printf("ERROR [handlers.post:%s] %v", kind, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *UserHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.ledgerService.Purchase(r.Context(), principal.User.ID, req.Amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			http.Error(w, "Amount must be greater than 0", http.StatusBadRequest)
		case errors.Is(err, domain.ErrInsufficientBalance):
			http.Error(w, "Insufficient credit balance", http.StatusBadRequest)
		default:
			log.Printf("ERROR [handlers.Purchase] %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *UserHandler) AffiliateStats(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.ledgerService.AffiliateStatsFor(r.Context(), principal.User.ID)
	if err != nil {
		log.Printf("ERROR [handlers.AffiliateStats] %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListUsers is the admin listing; the router guards it with
// RequireManageUsers.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.authService.ListUsers(r.Context(), limit, offset)
	if err != nil {
		log.Printf("ERROR [handlers.ListUsers] %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]UserResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": resp})
}
