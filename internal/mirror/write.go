package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/molstore/internal/fault"
	"github.com/roach88/molstore/internal/ir"
)

// Result counts what InsertMany did.
type Result struct {
	Inserted int `json:"inserted"`
	Replaced int `json:"replaced"`
	Skipped  int `json:"skipped"`
}

type prepared struct {
	id   string
	key  ir.Key
	body []byte
}

// InsertMany stores docs in collection. The key of each document is read
// from the fields named by keyNames.
//
// All documents are first inserted in one transaction. When that fails on a
// duplicate key the transaction is discarded and the documents are inserted
// one at a time; a duplicate is then replaced when overwrite is set and
// skipped otherwise.
func (m *Mirror) InsertMany(ctx context.Context, collection string, docs []map[string]any, keyNames []string, overwrite bool) (Result, error) {
	rows := make([]prepared, len(docs))
	for i, doc := range docs {
		p, err := prepare(collection, doc, keyNames)
		if err != nil {
			return Result{}, err
		}
		rows[i] = p
	}

	err := m.insertAll(ctx, collection, rows)
	if err == nil {
		return Result{Inserted: len(rows)}, nil
	}
	if !fault.IsDuplicateKey(err) {
		return Result{}, err
	}
	slog.Debug("bulk insert hit a duplicate key, inserting one by one",
		"collection", collection,
		"documents", len(rows),
		"error", err,
	)

	var res Result
	for _, row := range rows {
		err := m.insertOne(ctx, collection, row)
		switch {
		case err == nil:
			res.Inserted++
		case !fault.IsDuplicateKey(err):
			return res, err
		case overwrite:
			if err := m.replace(ctx, row); err != nil {
				return res, err
			}
			res.Replaced++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func prepare(collection string, doc map[string]any, keyNames []string) (prepared, error) {
	key := make(ir.Key, len(keyNames))
	for i, name := range keyNames {
		s, ok := doc[name].(string)
		if !ok {
			return prepared{}, fmt.Errorf("insert into %s: document key field %q is %T, want string", collection, name, doc[name])
		}
		key[i] = s
	}
	id, err := ir.DocumentID(collection, key)
	if err != nil {
		return prepared{}, fmt.Errorf("insert into %s: %w", collection, err)
	}
	body, err := ir.MarshalCanonical(doc)
	if err != nil {
		return prepared{}, fault.Conversion(key.String(), err)
	}
	return prepared{id: id, key: key, body: body}, nil
}

func (m *Mirror) insertAll(ctx context.Context, collection string, rows []prepared) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert into %s: begin tx: %w", collection, err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if err := insert(ctx, tx, collection, row); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert into %s: commit: %w", collection, err)
	}
	return nil
}

func (m *Mirror) insertOne(ctx context.Context, collection string, row prepared) error {
	return insert(ctx, m.db, collection, row)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, collection string, row prepared) error {
	keyJSON, err := ir.MarshalCanonical(row.key)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (id, collection, key, body)
		VALUES (?, ?, ?, ?)
	`, row.id, collection, string(keyJSON), string(row.body))
	if isDuplicate(err) {
		return fault.DuplicateKey(row.key.String(), err)
	}
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func (m *Mirror) replace(ctx context.Context, row prepared) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE documents SET body = ?, revision = revision + 1
		WHERE id = ?
	`, string(row.body), row.id)
	if err != nil {
		return fmt.Errorf("replace %s: %w", row.key, err)
	}
	return nil
}

func isDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
