package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/molstore/internal/ir"
)

// Get returns the document stored under key, and whether it exists.
// Numbers are decoded as float64.
func (m *Mirror) Get(ctx context.Context, collection string, key ir.Key) (map[string]any, bool, error) {
	id, err := ir.DocumentID(collection, key)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	var body string
	err = m.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, false, fmt.Errorf("get %s: decode body: %w", key, err)
	}
	return doc, true, nil
}
