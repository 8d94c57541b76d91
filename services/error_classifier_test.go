package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winsave/winsave-api/logger"
	"github.com/winsave/winsave-api/services"
	"github.com/winsave/winsave-api/types/business"
)

func init() {
	logger.InitLogger("test")
}

func TestClassify(t *testing.T) {
	classifier := services.NewErrorClassifier()

	tests := []struct {
		name     string
		err      error
		expected business.ErrorKind
	}{
		{
			name:     "insufficient funds",
			err:      errors.New("insufficient funds for gas * price + value"),
			expected: business.ErrKindInsufficientFunds,
		},
		{
			name:     "insufficient funds wins over gas",
			err:      errors.New("insufficient funds: gas too low for balance"),
			expected: business.ErrKindInsufficientFunds,
		},
		{
			name:     "gas too low",
			err:      errors.New("intrinsic gas too low"),
			expected: business.ErrKindGasTooLow,
		},
		{
			name:     "transaction underpriced",
			err:      errors.New("transaction gas price underpriced"),
			expected: business.ErrKindGasTooLow,
		},
		{
			name:     "nonce too low",
			err:      errors.New("nonce too low"),
			expected: business.ErrKindNonceConflict,
		},
		{
			name:     "replacement underpriced",
			err:      errors.New("replacement transaction underpriced"),
			expected: business.ErrKindReplacementConflict,
		},
		{
			name:     "network error text",
			err:      errors.New("network error: unreachable host"),
			expected: business.ErrKindNetwork,
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp 127.0.0.1:8545: connection refused"),
			expected: business.ErrKindNetwork,
		},
		{
			name:     "request timed out",
			err:      errors.New("request timed out"),
			expected: business.ErrKindNetwork,
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("failed to send: %w", context.DeadlineExceeded),
			expected: business.ErrKindNetwork,
		},
		{
			name:     "user rejected",
			err:      errors.New("user rejected the request"),
			expected: business.ErrKindUserRejected,
		},
		{
			name:     "user denied",
			err:      errors.New("MetaMask Tx Signature: User denied transaction signature"),
			expected: business.ErrKindUserRejected,
		},
		{
			name:     "unrecognized",
			err:      errors.New("execution reverted: 0xdeadbeef"),
			expected: business.ErrKindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifier.Classify(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.expected, classified.Kind)
			assert.NotEmpty(t, classified.Message)
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassifyMessageIsTemplateNotRawText(t *testing.T) {
	classifier := services.NewErrorClassifier()

	raw := errors.New("insufficient funds for gas * price + value: have 1 want 2")
	classified := classifier.Classify(raw)

	assert.Equal(t, business.ErrKindInsufficientFunds, classified.Kind)
	assert.NotContains(t, classified.Message, "have 1 want 2")
	assert.Equal(t, raw, classified.Cause)
}

func TestClassifySameKindSameMessage(t *testing.T) {
	classifier := services.NewErrorClassifier()

	a := classifier.Classify(errors.New("nonce too low"))
	b := classifier.Classify(errors.New("tx rejected: nonce too low for account"))

	assert.Equal(t, a.Kind, b.Kind)
	assert.Equal(t, a.Message, b.Message)
}

func TestClassifyPassesThroughClassifiedErrors(t *testing.T) {
	classifier := services.NewErrorClassifier()

	original := services.NewClassifiedError(business.ErrKindValidation, errors.New("missing recipient"))
	wrapped := fmt.Errorf("execute: %w", original)

	classified := classifier.Classify(wrapped)
	assert.Same(t, original, classified)
}

func TestNewClassifiedErrorUnknownKindFallsBack(t *testing.T) {
	classified := services.NewClassifiedError(business.ErrorKind("bogus"), errors.New("x"))
	assert.Equal(t, business.ErrKindUnknown, classified.Kind)
	assert.NotEmpty(t, classified.Message)
}
