package ir

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIDDeterminism(t *testing.T) {
	a, err := DocumentID(GroupLigand, Key{"CCO", "O3"})
	require.NoError(t, err)
	b, err := DocumentID(GroupLigand, Key{"CCO", "O3"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDocumentIDChangesWithInput(t *testing.T) {
	base, err := DocumentID(GroupLigand, Key{"CCO", "O3"})
	require.NoError(t, err)

	otherKey, err := DocumentID(GroupLigand, Key{"CCO", "O2"})
	require.NoError(t, err)
	otherCollection, err := DocumentID(GroupQD, Key{"CCO", "O3"})
	require.NoError(t, err)

	assert.NotEqual(t, base, otherKey)
	assert.NotEqual(t, base, otherCollection)
}

func TestDocumentIDKeyBoundaries(t *testing.T) {
	// Joining parts must not make ("ab", "c") and ("a", "bc") collide.
	a, err := DocumentID(GroupLigand, Key{"ab", "c"})
	require.NoError(t, err)
	b, err := DocumentID(GroupLigand, Key{"a", "bc"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain(DomainDocument, data), hashWithDomain("molstore/document/v2", data))
}

func TestHashHexEncoding(t *testing.T) {
	id, err := DocumentID(GroupQD, Key{"Cd68Se55", "Cl1", "CCO", "O3"})
	require.NoError(t, err)
	assert.Len(t, id, 64)
	_, err = hex.DecodeString(id)
	assert.NoError(t, err)
}
