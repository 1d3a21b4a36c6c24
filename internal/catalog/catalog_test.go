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
	"reflect"
	"testing"

	"kvsql/internal/engine"
	"kvsql/internal/mvcc"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	m, err := mvcc.New(engine.NewMemoryEngine())
	if err != nil {
		t.Fatalf("mvcc.New: %v", err)
	}
	return NewEngine(m)
}

func testSchema() Schema {
	def := NewInteger(0)
	return Schema{
		Name: "accounts",
		Columns: []Column{
			{Name: "id", Type: Integer, PrimaryKey: true},
			{Name: "name", Type: String, Nullable: false},
			{Name: "balance", Type: Integer, Nullable: true, Default: &def},
		},
	}
}

func TestCreateAndGetTable(t *testing.T) {
	e := newTestEngine(t)
	txn, err := e.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	schema := testSchema()
	if err := txn.CreateTable(schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	got, ok, err := txn.GetTable("accounts")
	if err != nil || !ok {
		t.Fatalf("GetTable: got=%v ok=%v err=%v", got, ok, err)
	}
	if !reflect.DeepEqual(got, schema) {
		t.Fatalf("GetTable = %+v, want %+v", got, schema)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestCreateTableAlreadyExists(t *testing.T) {
	e := newTestEngine(t)
	txn, _ := e.Begin()
	schema := testSchema()
	if err := txn.CreateTable(schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := txn.CreateTable(schema); err == nil {
		t.Fatalf("expected error creating duplicate table")
	}
}

func TestGetTableMissing(t *testing.T) {
	e := newTestEngine(t)
	txn, _ := e.Begin()
	if _, ok, err := txn.GetTable("nope"); err != nil || ok {
		t.Fatalf("GetTable(missing) = ok=%v err=%v, want ok=false err=nil", ok, err)
	}
	if _, err := txn.MustGetTable("nope"); err == nil {
		t.Fatalf("MustGetTable(missing) should error")
	}
}

func TestCreateRowAndScanTable(t *testing.T) {
	e := newTestEngine(t)
	txn, _ := e.Begin()
	schema := testSchema()
	if err := txn.CreateTable(schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	rows := []Row{
		{NewInteger(2), NewString("bob"), NewInteger(50)},
		{NewInteger(1), NewString("alice"), Null},
	}
	for _, r := range rows {
		if err := txn.CreateRow("accounts", r); err != nil {
			t.Fatalf("CreateRow(%v): %v", r, err)
		}
	}

	got, err := txn.ScanTable("accounts")
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ScanTable returned %d rows, want 2", len(got))
	}
	// Keyed by primary key, so id=1 (alice) sorts before id=2 (bob).
	if got[0][1].Str() != "alice" {
		t.Fatalf("got[0] = %v, want alice first", got[0])
	}
	if got[1][1].Str() != "bob" {
		t.Fatalf("got[1] = %v, want bob second", got[1])
	}
	// Default applied to alice's Null balance.
	if got[0][2].Int() != 0 {
		t.Fatalf("got[0].balance = %v, want default 0", got[0][2])
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestCreateRowNotNullViolation(t *testing.T) {
	e := newTestEngine(t)
	txn, _ := e.Begin()
	if err := txn.CreateTable(testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	err := txn.CreateRow("accounts", Row{NewInteger(1), Null, NewInteger(0)})
	if err == nil {
		t.Fatalf("expected NOT NULL violation for missing name")
	}
}

func TestCreateRowWrongColumnCount(t *testing.T) {
	e := newTestEngine(t)
	txn, _ := e.Begin()
	if err := txn.CreateTable(testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := txn.CreateRow("accounts", Row{NewInteger(1)}); err == nil {
		t.Fatalf("expected column-count mismatch error")
	}
}

func TestScanTableIsolatedUntilCommit(t *testing.T) {
	e := newTestEngine(t)

	setup, _ := e.Begin()
	if err := setup.CreateTable(testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := setup.Commit(); err != nil {
		t.Fatalf("Commit schema: %v", err)
	}

	txnA, _ := e.Begin()
	txnB, _ := e.Begin()

	if err := txnA.CreateRow("accounts", Row{NewInteger(1), NewString("alice"), Null}); err != nil {
		t.Fatalf("CreateRow: %v", err)
	}

	rowsB, err := txnB.ScanTable("accounts")
	if err != nil {
		t.Fatalf("ScanTable (txnB): %v", err)
	}
	if len(rowsB) != 0 {
		t.Fatalf("txnB should not see txnA's uncommitted row, got %d rows", len(rowsB))
	}

	if err := txnA.Commit(); err != nil {
		t.Fatalf("Commit txnA: %v", err)
	}

	rowsBAfter, err := txnB.ScanTable("accounts")
	if err != nil {
		t.Fatalf("ScanTable (txnB after commit): %v", err)
	}
	if len(rowsBAfter) != 0 {
		t.Fatalf("txnB's snapshot should remain stable after txnA commits, got %d rows", len(rowsBAfter))
	}

	txnC, _ := e.Begin()
	rowsC, err := txnC.ScanTable("accounts")
	if err != nil {
		t.Fatalf("ScanTable (txnC): %v", err)
	}
	if len(rowsC) != 1 {
		t.Fatalf("txnC should see txnA's committed row, got %d rows", len(rowsC))
	}
}

func TestValueGobRoundTrip(t *testing.T) {
	values := []Value{
		Null,
		NewBool(true),
		NewBool(false),
		NewInteger(-42),
		NewFloat(3.5),
		NewString("hello"),
	}
	row := Row(values)
	encoded, err := EncodeRow(row)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	decoded, err := DecodeRow(encoded)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if len(decoded) != len(row) {
		t.Fatalf("DecodeRow returned %d values, want %d", len(decoded), len(row))
	}
	for i := range row {
		if decoded[i].String() != row[i].String() {
			t.Errorf("value %d = %v, want %v", i, decoded[i], row[i])
		}
	}
}

func TestEncodeRowPrefixIsPrefixOfRowKeys(t *testing.T) {
	prefix := EncodeRowPrefix("accounts")
	key := EncodeRowKey("accounts", NewInteger(1))
	if len(key) < len(prefix) {
		t.Fatalf("row key shorter than its own table prefix")
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			t.Fatalf("row key does not start with table prefix at byte %d", i)
		}
	}
	other := EncodeRowPrefix("accounts2")
	if len(other) >= len(prefix) && string(other[:len(prefix)]) == string(prefix) {
		t.Fatalf("distinct table names must not share a key prefix")
	}
}
