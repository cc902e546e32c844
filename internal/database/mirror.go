package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/molstore/internal/frame"
	"github.com/roach88/molstore/internal/ir"
	"github.com/roach88/molstore/internal/mirror"
)

// ErrNoMirror is returned by UpdateMirror on a handle without a mirror.
var ErrNoMirror = errors.New("database has no document mirror")

// Collection names the mirror collection of a record group and the document
// fields its key parts are stored under.
type Collection struct {
	Name     string
	KeyNames []string
}

// Collections maps record groups to their mirror collection.
var Collections = map[string]Collection{
	ir.GroupLigand: {Name: mirror.CollectionLigand, KeyNames: []string{"smiles", "anchor"}},
	ir.GroupQD:     {Name: mirror.CollectionQD, KeyNames: []string{"core", "core anchor", "ligand smiles", "ligand anchor"}},
}

// UpdateMirror exports every record of group name, without structures, to
// the document mirror. Existing documents are replaced only with overwrite.
func (db *Database) UpdateMirror(ctx context.Context, name string, overwrite bool) (mirror.Result, error) {
	if db.mirror == nil {
		return mirror.Result{}, ErrNoMirror
	}
	coll, ok := Collections[name]
	if !ok {
		return mirror.Result{}, fmt.Errorf("update mirror: no collection for group %q", name)
	}

	f, err := db.ToFrame(ctx, name, ReadOptions{})
	if err != nil {
		return mirror.Result{}, err
	}
	docs, err := frame.Documents(f, coll.KeyNames)
	if err != nil {
		return mirror.Result{}, err
	}
	res, err := db.mirror.InsertMany(ctx, coll.Name, docs, coll.KeyNames, overwrite)
	if err != nil {
		return res, err
	}
	slog.Info("mirror updated",
		"group", name,
		"collection", coll.Name,
		"inserted", res.Inserted,
		"replaced", res.Replaced,
		"skipped", res.Skipped,
	)
	return res, nil
}

// MirrorHandle returns the open mirror, or nil.
func (db *Database) MirrorHandle() *mirror.Mirror { return db.mirror }
