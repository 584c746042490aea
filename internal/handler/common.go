package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"economy/internal/domain"
	"economy/internal/errors"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, err error) {
	appErr := errors.As(err)
	w.Header().Set("Content-Type", "application/json")

	statusCode := appErr.HTTPStatus()
	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid request body")
	}
	return nil
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, errors.NewAppErrorf(errors.InvalidAmount, "invalid %s format", field)
	}
	return amount, nil
}

// parseTransactor defaults to EXTERNAL_API when the request names none.
func parseTransactor(value string) (domain.Transactor, error) {
	if value == "" {
		return domain.TransactorExternalAPI, nil
	}
	t, err := domain.ParseTransactor(value)
	if err != nil {
		return "", errors.NewAppError(errors.InvalidInput, "invalid actor").WithDetails(err.Error())
	}
	return t, nil
}
