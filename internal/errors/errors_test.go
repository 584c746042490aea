package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{ErrAccountNotFound, http.StatusNotFound},
		{ErrDuplicateAccount, http.StatusConflict},
		{ErrAccountFrozen, http.StatusLocked},
		{ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{ErrInvalidAmount, http.StatusBadRequest},
		{ErrSameAccountTransfer, http.StatusBadRequest},
		{ErrCacheNotReady, http.StatusServiceUnavailable},
		{ErrCannotBeginTransaction, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestWithDetails_DoesNotMutateSentinel(t *testing.T) {
	detailed := ErrDuplicateAccount.WithDetails("name already in use")

	assert.Equal(t, "name already in use", detailed.Details)
	assert.Empty(t, ErrDuplicateAccount.Details)
}

func TestAs(t *testing.T) {
	assert.Same(t, ErrAccountFrozen, As(ErrAccountFrozen))
	assert.Equal(t, AccountNotFound, As(*ErrAccountNotFound).Code)

	wrapped := As(fmt.Errorf("boom"))
	assert.Equal(t, InternalError, wrapped.Code)
	assert.Equal(t, "boom", wrapped.Details)
}
