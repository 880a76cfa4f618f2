// internal/domain/ids_test.go
package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemberID(t *testing.T) {
	want := uuid.New()

	id, err := ParseMemberID(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, id.UUID)
	assert.False(t, id.IsNil())
}

func TestParseMemberIDRejectsMalformed(t *testing.T) {
	_, err := ParseMemberID("not-a-uuid")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestParseMemberIDRejectsNil(t *testing.T) {
	_, err := ParseMemberID(uuid.Nil.String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestValidateRejectsZeroValue(t *testing.T) {
	var id LoanID
	assert.True(t, id.IsNil())
	assert.Error(t, id.Validate())

	assert.NoError(t, NewLoanID().Validate())
}

func TestIDsAreDistinctAcrossConstructors(t *testing.T) {
	a := NewBookCopyID()
	b := NewBookCopyID()
	assert.NotEqual(t, a, b)
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, Allow().Err())

	err := Deny("member is inactive").Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "member is inactive")
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, errors.Is(Validationf("bad %s", "input"), ErrValidation))
	assert.True(t, errors.Is(Conflictf("busy"), ErrConflict))
	assert.True(t, errors.Is(NotFoundf("gone"), ErrNotFound))
}
