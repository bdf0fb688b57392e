package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryCodeHasMetadata(t *testing.T) {
	codes := []Code{
		CodeValidation, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeConflict,
		CodeStateConflict, CodeCapacityExceeded, CodeIdempotency, CodeRateLimit,
		CodeInternal, CodeDependency,
	}
	for _, code := range codes {
		m, ok := metadataByCode[code]
		require.True(t, ok, "code %s", code)
		assert.NotEmpty(t, m.PublicMessage, "code %s", code)
		// server side failures are always worth retrying
		if m.HTTPStatus >= http.StatusInternalServerError {
			assert.True(t, m.Retryable, "code %s", code)
		}
	}

	assert.Equal(t, http.StatusConflict, MetadataFor(CodeCapacityExceeded).HTTPStatus)
	assert.True(t, MetadataFor(CodeStateConflict).DetailsAllowed)
	assert.False(t, MetadataFor(CodeUnauthorized).DetailsAllowed)
	assert.Equal(t, http.StatusTooManyRequests, MetadataFor(CodeRateLimit).HTTPStatus)
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("deadlock detected")
	wrapped := Wrap(CodeConflict, cause, "reserve ticket")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Equal(t, "CONFLICT: reserve ticket", wrapped.Error())

	bare := Wrap(CodeInternal, nil, "no cause")
	assert.NoError(t, bare.Unwrap())

	outer := fmt.Errorf("booking: %w", wrapped)
	require.NotNil(t, As(outer))
	assert.True(t, IsCode(outer, CodeConflict))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeConflict))
	assert.Nil(t, As(nil))
}

func TestWithReasonMergesIntoFieldDetails(t *testing.T) {
	err := Validation("term.count", "count or until is required").WithReason(ReasonInvalidRule)
	assert.Equal(t, ReasonInvalidRule, err.Reason())
	assert.Equal(t, map[string]any{
		"term.count": "count or until is required",
		"reason":     ReasonInvalidRule,
	}, err.Details())

	// non-map details are replaced rather than lost silently
	other := New(CodeStateConflict, "frozen").WithDetails("opaque").WithReason(ReasonItemFrozen)
	assert.Equal(t, ReasonItemFrozen, other.Reason())
	assert.Empty(t, New(CodeConflict, "x").Reason())
}

func TestNilErrorIsSafe(t *testing.T) {
	var err *Error
	assert.Equal(t, CodeInternal, err.Code())
	assert.Empty(t, err.Message())
	assert.Nil(t, err.Details())
	assert.Nil(t, err.WithReason(ReasonSegmentFull))
	assert.Empty(t, err.Error())
}
