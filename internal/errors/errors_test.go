package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "data unavailable", err: NewDataUnavailableError("VTI", stderrors.New("timeout")), sentinel: ErrDataUnavailable},
		{name: "no base value", err: NewNoBaseValueError("VTI"), sentinel: ErrNoBaseValue},
		{name: "degenerate base", err: NewDegenerateBaseError("VTI"), sentinel: ErrDegenerateBase},
		{name: "unknown instrument", err: NewUnknownInstrumentError("XYZ"), sentinel: ErrUnknownInstrument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)

			wrapped := fmt.Errorf("refresh: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}

	assert.NotErrorIs(t, NewNoBaseValueError("VTI"), ErrDegenerateBase)
}

func TestDataUnavailableUnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewDataUnavailableError("BND", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "BND")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "BND", err.Details["instrument"])
}

func TestCategorize(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Categorize(nil))
	})

	t.Run("wrapped categorized error is found", func(t *testing.T) {
		orig := NewUnknownInstrumentError("XYZ")
		got := Categorize(fmt.Errorf("ledger: %w", orig))
		require.NotNil(t, got)
		assert.Same(t, orig, got)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := Categorize(stderrors.New("boom"))
		assert.Equal(t, CodeInternalError, got.Code)
		assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "provider failure", err: NewDataUnavailableError("VTI", nil), want: true},
		{name: "wrapped storage failure", err: fmt.Errorf("save: %w", NewStorageError("save", nil)), want: true},
		{name: "unknown instrument", err: NewUnknownInstrumentError("XYZ"), want: false},
		{name: "invalid parameter", err: NewInvalidParameterError("shares", "not a number"), want: false},
		{name: "rate limit", err: NewRateLimitError(1), want: false},
		{name: "plain error", err: stderrors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, NewDataUnavailableError("VTI", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, NewUnknownInstrumentError("XYZ").StatusCode)
	assert.Equal(t, http.StatusBadRequest, NewInvalidParameterError("range", "unknown").StatusCode)
	assert.Equal(t, http.StatusInternalServerError, Categorize(stderrors.New("boom")).StatusCode)
}

func TestToServiceError(t *testing.T) {
	svc := NewDegenerateBaseError("VNQ").ToServiceError()
	assert.Equal(t, CodeDegenerateBase, svc.Code)
	assert.Equal(t, "VNQ", svc.Details["instrument"])
}
