// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"kvsql/internal/errs"
	"kvsql/internal/mvcc"
)

// Engine opens table-aware transactions over an mvcc-backed store.
type Engine struct {
	mvcc *mvcc.MVCC
}

// NewEngine wraps an already-opened mvcc store.
func NewEngine(m *mvcc.MVCC) *Engine {
	return &Engine{mvcc: m}
}

// Begin starts a new table-aware transaction.
func (e *Engine) Begin() (*Transaction, error) {
	txn, err := e.mvcc.Begin()
	if err != nil {
		return nil, err
	}
	return &Transaction{txn: txn}, nil
}

// Transaction is a catalog-level unit of work: table DDL plus row CRUD,
// layered on an mvcc.Transaction the same way the reference this package
// is grounded on layers its KVTransaction over storage::mvcc::Mvcc.
type Transaction struct {
	txn *mvcc.Transaction
}

// Commit finalizes every table and row change made through t.
func (t *Transaction) Commit() error { return t.txn.Commit() }

// Rollback discards every table and row change made through t.
func (t *Transaction) Rollback() error { return t.txn.Rollback() }

// CreateTable registers a new table's schema. It is an error to create a
// table that already exists.
func (t *Transaction) CreateTable(schema Schema) error {
	if schema.Name == "" {
		return errs.Parsef("catalog: table name must not be empty")
	}
	if len(schema.Columns) == 0 {
		return errs.Parsef("catalog: table %s must have at least one column", schema.Name)
	}
	if _, ok, err := t.GetTable(schema.Name); err != nil {
		return err
	} else if ok {
		return errs.Parsef("catalog: table %s already exists", schema.Name)
	}
	encoded, err := EncodeSchema(schema)
	if err != nil {
		return err
	}
	return t.txn.Set(EncodeTableKey(schema.Name), encoded)
}

// GetTable looks up a table's schema by name.
func (t *Transaction) GetTable(name string) (Schema, bool, error) {
	value, ok, err := t.txn.Get(EncodeTableKey(name))
	if err != nil || !ok {
		return Schema{}, false, err
	}
	schema, err := DecodeSchema(value)
	if err != nil {
		return Schema{}, false, err
	}
	return schema, true, nil
}

// MustGetTable is GetTable but returns an error instead of ok=false.
func (t *Transaction) MustGetTable(name string) (Schema, error) {
	schema, ok, err := t.GetTable(name)
	if err != nil {
		return Schema{}, err
	}
	if !ok {
		return Schema{}, errs.Parsef("catalog: table %s does not exist", name)
	}
	return schema, nil
}

// CreateRow validates row against table's schema — applying column
// defaults and checking NOT NULL — and stores it keyed by its primary
// key column (the schema's first column, by convention).
func (t *Transaction) CreateRow(table string, row Row) error {
	schema, err := t.MustGetTable(table)
	if err != nil {
		return err
	}
	row, err = normalizeRow(schema, row)
	if err != nil {
		return err
	}
	pk := row[0]
	encoded, err := EncodeRow(row)
	if err != nil {
		return err
	}
	return t.txn.Set(EncodeRowKey(table, pk), encoded)
}

// ScanTable returns every row of table visible to t, ordered by encoded
// row key. That matches primary-key order for strings and non-negative
// integers; negative integers and floats do not sort numerically.
func (t *Transaction) ScanTable(table string) ([]Row, error) {
	if _, err := t.MustGetTable(table); err != nil {
		return nil, err
	}
	results, err := t.txn.ScanPrefix(EncodeRowPrefix(table))
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row, err := DecodeRow(r.Value)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// normalizeRow fills in column defaults for Null cells and enforces
// NOT NULL — the only two SQL-level constraints in this package's scope.
func normalizeRow(schema Schema, row Row) (Row, error) {
	if len(row) != len(schema.Columns) {
		return nil, errs.Parsef("catalog: table %s expects %d columns, got %d",
			schema.Name, len(schema.Columns), len(row))
	}
	out := make(Row, len(row))
	copy(out, row)
	for i, col := range schema.Columns {
		if !out[i].IsNull() {
			continue
		}
		if col.Default != nil {
			out[i] = *col.Default
			continue
		}
		if !col.Nullable {
			return nil, errs.Parsef("catalog: column %s.%s is not nullable and has no default",
				schema.Name, col.Name)
		}
	}
	return out, nil
}
