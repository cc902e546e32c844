// Package settings prunes and serializes the job settings that accompany
// optimized records.
package settings

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/roach88/molstore/internal/ir"
)

// Tree is a nested settings document. Values are scalars, []any or nested
// Trees.
type Tree = map[string]any

// GenericSection names the blacklist section applied to every job type.
const GenericSection = "generic"

//go:embed blacklist.yaml
var blacklistYAML []byte

var (
	blacklistOnce sync.Once
	blacklist     map[string]Tree
	blacklistErr  error
)

// Blacklist returns the embedded blacklist, keyed by job type.
func Blacklist() (map[string]Tree, error) {
	blacklistOnce.Do(func() {
		blacklist, blacklistErr = ParseBlacklist(blacklistYAML)
	})
	return blacklist, blacklistErr
}

// ParseBlacklist decodes a YAML blacklist document.
func ParseBlacklist(data []byte) (map[string]Tree, error) {
	var out map[string]Tree
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse settings blacklist: %w", err)
	}
	for section, tree := range out {
		if tree == nil {
			out[section] = Tree{}
		}
	}
	return out, nil
}

// Sanitize returns a pruned copy of tree using the generic blacklist section
// merged with the section of jobType. An unknown jobType yields an
// unmodified copy.
func Sanitize(tree Tree, jobType string) (Tree, error) {
	bl, err := Blacklist()
	if err != nil {
		return nil, err
	}
	section, ok := bl[jobType]
	if !ok {
		return Copy(tree), nil
	}
	merged := Copy(bl[GenericSection])
	if merged == nil {
		merged = Tree{}
	}
	for k, v := range section {
		merged[k] = v
	}
	return Prune(tree, merged), nil
}

// Prune returns a copy of tree without the keys named by blacklist. A
// blacklist leaf deletes the key outright; a blacklist subtree is applied to
// the nested value. Subtrees left empty by pruning are removed.
func Prune(tree, blacklist Tree) Tree {
	out := Copy(tree)
	pruneInto(out, blacklist)
	return out
}

func pruneInto(tree, blacklist Tree) {
	for key, value := range tree {
		del, listed := blacklist[key]
		if listed {
			sub, isTree := del.(Tree)
			if !isTree {
				delete(tree, key)
				continue
			}
			pruneValue(value, sub)
		}
		if isEmptyTree(value) {
			delete(tree, key)
		}
	}
}

func pruneValue(value any, blacklist Tree) {
	switch v := value.(type) {
	case Tree:
		pruneInto(v, blacklist)
	case []any:
		for _, item := range v {
			pruneValue(item, blacklist)
		}
	}
}

func isEmptyTree(v any) bool {
	t, ok := v.(Tree)
	return ok && len(t) == 0
}

// Copy returns a deep copy of tree.
func Copy(tree Tree) Tree {
	if tree == nil {
		return nil
	}
	out := make(Tree, len(tree))
	for k, v := range tree {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case Tree:
		return Copy(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// Canonical serializes tree as canonical JSON.
func Canonical(tree Tree) ([]byte, error) {
	if tree == nil {
		tree = Tree{}
	}
	data, err := ir.MarshalCanonical(tree)
	if err != nil {
		return nil, fmt.Errorf("canonical settings: %w", err)
	}
	return data, nil
}

// Parse decodes a stored settings document. Numbers come back as float64.
func Parse(data []byte) (Tree, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var tree Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return tree, nil
}
