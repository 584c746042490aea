package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"economy/internal/domain"
	"economy/internal/errors"
	"economy/internal/leaderboard"
	"economy/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

type CreateAccountRequest struct {
	AccountID      string  `json:"account_id"`
	Name           string  `json:"name"`
	InitialBalance *string `json:"initial_balance"`
}

type AmountRequest struct {
	Amount string `json:"amount"`
	Actor  string `json:"actor"`
}

type SetBalanceRequest struct {
	Balance string `json:"balance"`
	Actor   string `json:"actor"`
}

type RenameRequest struct {
	Name string `json:"name"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type AccountResponse struct {
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Balance     string `json:"balance"`
	Formatted   string `json:"formatted_balance"`
	Frozen      bool   `json:"frozen"`
	Online      bool   `json:"online"`
}

type JoinResponse struct {
	AccountResponse
	Created bool `json:"created"`
}

type TransactionResponse struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Amount      string `json:"amount"`
	Actor       string `json:"actor"`
	Timestamp   string `json:"timestamp"`
}

type LeaderboardEntryResponse struct {
	Rank        int    `json:"rank"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Balance     string `json:"balance"`
	Formatted   string `json:"formatted_balance"`
}

func (h *AccountHandler) toResponse(account *domain.Account) AccountResponse {
	snap := account.Snapshot()
	return AccountResponse{
		AccountID:   snap.ID.String(),
		Name:        snap.Name,
		DisplayName: domain.DisplayName(snap.Name),
		Balance:     snap.Balance.String(),
		Formatted:   h.accountService.Format(snap.Balance),
		Frozen:      snap.Frozen,
		Online:      h.accountService.IsOnline(snap.ID),
	}
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var balance *decimal.Decimal
	if req.InitialBalance != nil {
		b, err := parseAmount("initial_balance", *req.InitialBalance)
		if err != nil {
			writeError(w, err)
			return
		}
		balance = &b
	}

	account, err := h.accountService.CreateAccount(req.AccountID, req.Name, balance)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(account))
}

// GetAccount accepts either an account id or an exact account name.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.GetAccount(mux.Vars(r)["account"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(account))
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.DeleteAccount(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountService.Rename(mux.Vars(r)["id"], req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(account))
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.amountMutation(w, r, h.accountService.Deposit)
}

func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.amountMutation(w, r, h.accountService.Withdraw)
}

type mutation func(accountID string, amount decimal.Decimal, transactor domain.Transactor) (*domain.Account, error)

func (h *AccountHandler) amountMutation(w http.ResponseWriter, r *http.Request, apply mutation) {
	var req AmountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	transactor, err := parseTransactor(req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := apply(mux.Vars(r)["id"], amount, transactor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(account))
}

func (h *AccountHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	var req SetBalanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	value, err := parseAmount("balance", req.Balance)
	if err != nil {
		writeError(w, err)
		return
	}
	transactor, err := parseTransactor(req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountService.SetBalance(mux.Vars(r)["id"], value, transactor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(account))
}

func (h *AccountHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.Freeze(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(account))
}

func (h *AccountHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.Unfreeze(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(account))
}

func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, errors.NewAppError(errors.InvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	txs, err := h.accountService.Transactions(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}

	response := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		response = append(response, TransactionResponse{
			AccountID:   tx.AccountID.String(),
			AccountName: tx.AccountName,
			Amount:      tx.Amount.String(),
			Actor:       string(tx.Transactor),
			Timestamp:   tx.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *AccountHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, created, err := h.accountService.Join(mux.Vars(r)["id"], req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, JoinResponse{AccountResponse: h.toResponse(account), Created: created})
}

func (h *AccountHandler) Quit(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.Quit(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.leaderboardResponse(h.accountService.Top()))
}

func (h *AccountHandler) leaderboardResponse(entries []leaderboard.Entry) []LeaderboardEntryResponse {
	response := make([]LeaderboardEntryResponse, 0, len(entries))
	for i, e := range entries {
		response = append(response, LeaderboardEntryResponse{
			Rank:        i + 1,
			AccountID:   e.AccountID.String(),
			Name:        e.Name,
			DisplayName: e.DisplayName,
			Balance:     e.Balance.String(),
			Formatted:   h.accountService.Format(e.Balance),
		})
	}
	return response
}
