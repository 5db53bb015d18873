package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewForbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewStaleState("changed", nil)), "STALE_STATE", http.StatusConflict},
		{"no rows is not found", pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{"unknown is internal", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
		{"unassignable", NewUnassignable("no supervisor", nil), "UNASSIGNABLE", http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			assert.Equal(t, tc.wantCode, got.Code)
			assert.Equal(t, tc.wantStatus, got.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(NewConflict("x", nil), "CONFLICT"))
	assert.False(t, IsCode(errors.New("x"), "CONFLICT"))
}
