package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainDocument prefixes every document identity hash.
const DomainDocument = "molstore/document/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentID computes the mirror identity of a record: the same collection
// and key always map onto the same document.
func DocumentID(collection string, key Key) (string, error) {
	parts := make([]any, len(key))
	for i, p := range key {
		parts[i] = p
	}
	canonical, err := MarshalCanonical(map[string]any{
		"collection": collection,
		"key":        parts,
	})
	if err != nil {
		return "", fmt.Errorf("DocumentID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}
