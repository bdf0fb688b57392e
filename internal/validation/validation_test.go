package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
)

func TestFieldErrorsEmptyIsNil(t *testing.T) {
	require.NoError(t, FieldErrors{}.Err())
}

func TestFieldErrorsKeyedByField(t *testing.T) {
	errs := FieldErrors{}
	errs.CheckIntRange("byhour", 25, 0, 23)
	errs.Required("label", "  ")
	errs.Add("label", "second message is ignored")

	err := errs.Err()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, "must be between 0 and 23", details["byhour"])
	require.Equal(t, "is required", details["label"])
	require.Equal(t, "VALIDATION_ERROR: invalid byhour, label", typed.Error())
}

func TestMergePrefixesFields(t *testing.T) {
	inner := FieldErrors{}
	inner.Add("value", "bad")
	outer := FieldErrors{}
	outer.Merge("rules[0]", inner)
	outer.Merge("", FieldErrors{"term.count": "missing"})
	require.Equal(t, "bad", outer["rules[0].value"])
	require.Equal(t, "missing", outer["term.count"])
}
