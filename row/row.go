// Package row wraps a native Spanner row behind typed, ordinal- or
// name-addressed column access. Ordinals are 1-based.
package row

import (
	"fmt"

	"cloud.google.com/go/spanner"
)

// Row is an immutable snapshot of one native *spanner.Row. It is safe
// to retain after the originating cursor has advanced or been
// cancelled.
type Row struct {
	native *spanner.Row
}

// New wraps native. native is retained, not copied field-by-field,
// because *spanner.Row is itself already a value snapshot of one
// decoded row: the client library does not reuse or mutate it after
// RowIterator.Next returns it.
func New(native *spanner.Row) *Row {
	return &Row{native: native}
}

// ColumnCount returns the number of columns in the row.
func (r *Row) ColumnCount() int { return r.native.Size() }

// ColumnName returns the name of the column at the given 1-based
// ordinal.
func (r *Row) ColumnName(ordinal int) (string, error) {
	if ordinal < 1 || ordinal > r.native.Size() {
		return "", fmt.Errorf("row: ordinal %d out of range [1,%d]", ordinal, r.native.Size())
	}
	return r.native.ColumnName(ordinal - 1), nil
}

// Scan decodes the column at the given 1-based ordinal into dest,
// following the same decoding rules as spanner.Row.Column.
func (r *Row) Scan(ordinal int, dest any) error {
	if ordinal < 1 || ordinal > r.native.Size() {
		return fmt.Errorf("row: ordinal %d out of range [1,%d]", ordinal, r.native.Size())
	}
	return r.native.Column(ordinal-1, dest)
}

// ScanByName decodes the named column into dest.
func (r *Row) ScanByName(name string, dest any) error {
	return r.native.ColumnByName(name, dest)
}

// Int64At returns the int64 value at the given 1-based ordinal.
func (r *Row) Int64At(ordinal int) (int64, error) {
	var v int64
	err := r.Scan(ordinal, &v)
	return v, err
}

// StringAt returns the string value at the given 1-based ordinal.
func (r *Row) StringAt(ordinal int) (string, error) {
	var v string
	err := r.Scan(ordinal, &v)
	return v, err
}

// Native exposes the underlying *spanner.Row for callers that need
// spanner-specific decoding (spanner.GenericColumnValue, STRUCT
// arrays, ...) beyond what this wrapper's typed getters cover.
func (r *Row) Native() *spanner.Row { return r.native }

// Metadata describes the shape of a result set independent of any
// single row, handed to Result.Map's two-argument callback.
type Metadata struct {
	ColumnNames []string
}

// MetadataFromFields builds a Metadata from a result set's decoded
// column names.
func MetadataFromFields(names []string) Metadata {
	return Metadata{ColumnNames: append([]string(nil), names...)}
}
