package domainerrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "solace/pkg/domain-errors"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *dErrors.Error
		want string
	}{
		{
			name: "code and message",
			err:  dErrors.New(dErrors.CodeNotFound, "payment not found"),
			want: "not_found: payment not found",
		},
		{
			name: "validation includes field",
			err:  dErrors.NewValidation("amount_cents", "must be positive"),
			want: "validation: amount_cents: must be positive",
		},
		{
			name: "wrapped includes cause",
			err:  dErrors.Wrap(errors.New("connection refused"), dErrors.CodeInternal, "query failed"),
			want: "internal: query failed: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestHasCode(t *testing.T) {
	err := dErrors.Newf(dErrors.CodeConflict, "payment %s superseded concurrently", "abc")

	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.False(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.False(t, dErrors.HasCode(nil, dErrors.CodeConflict))
	assert.False(t, dErrors.HasCode(errors.New("plain"), dErrors.CodeConflict))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := dErrors.New(dErrors.CodeStalePolicy, "policy superseded")
	outer := fmt.Errorf("record payment: %w", inner)

	assert.True(t, dErrors.HasCode(outer, dErrors.CodeStalePolicy))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(dErrors.NewValidation("email", "required")))
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(errors.New("uncoded")))
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(nil))
}

func TestFieldOf(t *testing.T) {
	assert.Equal(t, "reason", dErrors.FieldOf(dErrors.NewValidation("reason", "required when superseding")))
	assert.Empty(t, dErrors.FieldOf(dErrors.New(dErrors.CodeConflict, "lost the race")))
	assert.Empty(t, dErrors.FieldOf(errors.New("uncoded")))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := dErrors.Wrap(cause, dErrors.CodeInternal, "supersede failed")

	assert.ErrorIs(t, err, cause)
}
