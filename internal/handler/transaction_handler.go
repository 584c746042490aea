package handler

import (
	"net/http"

	"economy/internal/service"
)

type TransactionHandler struct {
	accounts           *AccountHandler
	transactionService *service.TransactionService
}

func NewTransactionHandler(transactionService *service.TransactionService, accounts *AccountHandler) *TransactionHandler {
	return &TransactionHandler{
		accounts:           accounts,
		transactionService: transactionService,
	}
}

type PayRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
}

type PayResponse struct {
	From   AccountResponse `json:"from"`
	To     AccountResponse `json:"to"`
	Amount string          `json:"amount"`
}

func (h *TransactionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.transactionService.Pay(&service.PayRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PayResponse{
		From:   h.accounts.toResponse(result.From),
		To:     h.accounts.toResponse(result.To),
		Amount: amount.String(),
	})
}
