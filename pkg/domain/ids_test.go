package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "solace/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseHomeID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCaseID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseContactID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseStaffID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, StaffID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety between ID kinds.
func TestTypeDistinction(t *testing.T) {
	homeID := HomeID(uuid.New())
	caseID := CaseID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ HomeID = caseID   // compile error
	// var _ CaseID = homeID   // compile error

	assert.NotEqual(t, uuid.UUID(homeID), uuid.UUID(caseID))
}
