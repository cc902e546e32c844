// Package ir provides the record types shared by every molstore package.
//
// This package contains type definitions and their canonical encodings only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Row labels are composite string keys (Key), never positions
//   - Batch columns carry a two-level label (ColumnKey)
//   - Canonical JSON is the only encoding used for content identity
package ir
