package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := Schema("/ligand/properties/formula", "invalid dataset length: %d != %d", 4, 3)
	assert.Equal(t, "SCHEMA: invalid dataset length: 4 != 3 (dataset=/ligand/properties/formula)", err.Error())

	cause := errors.New("bond 3 references atom 9")
	conv := Conversion("CCO", cause)
	assert.Contains(t, conv.Error(), "record=CCO")
	assert.Contains(t, conv.Error(), "bond 3 references atom 9")
	assert.ErrorIs(t, conv, cause)
}

func TestPredicates_Wrapped(t *testing.T) {
	err := fmt.Errorf("from frame: %w", Unavailable("/tmp/x.mol", 3, errors.New("locked")))

	assert.True(t, IsUnavailable(err))
	assert.False(t, IsSchema(err))
	assert.False(t, IsConversion(err))
	assert.False(t, IsDuplicateKey(err))
	assert.True(t, IsDuplicateKey(DuplicateKey("C[O-]", nil)))
	assert.False(t, IsSchema(errors.New("plain")))
}
