package mvcc

import (
	"path/filepath"
	"testing"

	"kvsql/internal/engine"
	"kvsql/internal/errs"
)

func newTestEngines(t *testing.T) []engine.Engine {
	t.Helper()
	disk, err := engine.NewDiskEngine(filepath.Join(t.TempDir(), "sqldb-log"))
	if err != nil {
		t.Fatalf("NewDiskEngine: %v", err)
	}
	t.Cleanup(func() { _ = disk.Close() })
	return []engine.Engine{engine.NewMemoryEngine(), disk}
}

func mustGet(t *testing.T, tx *Transaction, key string) (string, bool) {
	t.Helper()
	v, found, err := tx.Get([]byte(key))
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return string(v), found
}

func TestGet(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, err := New(eng)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		tx, err := m.Begin()
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		must := func(err error) {
			t.Helper()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		must(tx.Set([]byte("key1"), []byte("val1")))
		must(tx.Set([]byte("key2"), []byte("val2")))
		must(tx.Set([]byte("key2"), []byte("val3")))
		must(tx.Set([]byte("key3"), []byte("val4")))
		must(tx.Delete([]byte("key3")))
		must(tx.Commit())

		tx1, err := m.Begin()
		must(err)
		if v, ok := mustGet(t, tx1, "key1"); !ok || v != "val1" {
			t.Fatalf("key1 = %q, %v", v, ok)
		}
		if v, ok := mustGet(t, tx1, "key2"); !ok || v != "val3" {
			t.Fatalf("key2 = %q, %v", v, ok)
		}
		if _, ok := mustGet(t, tx1, "key3"); ok {
			t.Fatalf("key3 should be deleted")
		}
	}
}

func TestGetIsolation(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Set([]byte("key2"), []byte("val3"))
		tx.Set([]byte("key3"), []byte("val4"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx1.Set([]byte("key1"), []byte("val2"))

		tx2, _ := m.Begin()

		tx3, _ := m.Begin()
		tx3.Set([]byte("key2"), []byte("val4"))
		tx3.Delete([]byte("key3"))
		tx3.Commit()

		if v, ok := mustGet(t, tx2, "key1"); !ok || v != "val1" {
			t.Fatalf("key1 = %q, %v", v, ok)
		}
		if v, ok := mustGet(t, tx2, "key2"); !ok || v != "val3" {
			t.Fatalf("key2 = %q, %v", v, ok)
		}
		if v, ok := mustGet(t, tx2, "key3"); !ok || v != "val4" {
			t.Fatalf("key3 = %q, %v", v, ok)
		}
	}
}

func resultsEqual(t *testing.T, got []ScanResult, want []ScanResult) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length: got %d %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range got {
		if string(got[i].Key) != string(want[i].Key) || string(got[i].Value) != string(want[i].Value) {
			t.Fatalf("result %d: got {%q %q}, want {%q %q}", i, got[i].Key, got[i].Value, want[i].Key, want[i].Value)
		}
	}
}

func TestScanPrefix(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("aabb"), []byte("val1"))
		tx.Set([]byte("abcc"), []byte("val2"))
		tx.Set([]byte("bbaa"), []byte("val3"))
		tx.Set([]byte("acca"), []byte("val4"))
		tx.Set([]byte("aaca"), []byte("val5"))
		tx.Set([]byte("bcca"), []byte("val6"))
		tx.Commit()

		tx1, _ := m.Begin()

		r1, err := tx1.ScanPrefix([]byte("aa"))
		if err != nil {
			t.Fatalf("ScanPrefix: %v", err)
		}
		resultsEqual(t, r1, []ScanResult{
			{[]byte("aabb"), []byte("val1")},
			{[]byte("aaca"), []byte("val5")},
		})

		r2, err := tx1.ScanPrefix([]byte("a"))
		if err != nil {
			t.Fatalf("ScanPrefix: %v", err)
		}
		resultsEqual(t, r2, []ScanResult{
			{[]byte("aabb"), []byte("val1")},
			{[]byte("aaca"), []byte("val5")},
			{[]byte("abcc"), []byte("val2")},
			{[]byte("acca"), []byte("val4")},
		})

		r3, err := tx1.ScanPrefix([]byte("bcca"))
		if err != nil {
			t.Fatalf("ScanPrefix: %v", err)
		}
		resultsEqual(t, r3, []ScanResult{{[]byte("bcca"), []byte("val6")}})
	}
}

func TestScanIsolation(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("aabb"), []byte("val1"))
		tx.Set([]byte("abcc"), []byte("val2"))
		tx.Set([]byte("bbaa"), []byte("val3"))
		tx.Set([]byte("acca"), []byte("val4"))
		tx.Set([]byte("aaca"), []byte("val5"))
		tx.Set([]byte("bcca"), []byte("val6"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx2, _ := m.Begin()
		tx2.Set([]byte("acca"), []byte("val4-1"))
		tx2.Set([]byte("aabb"), []byte("val1-1"))

		tx3, _ := m.Begin()
		tx3.Set([]byte("bbaa"), []byte("val3-1"))
		tx3.Delete([]byte("bcca"))
		tx3.Commit()

		r1, _ := tx1.ScanPrefix([]byte("aa"))
		resultsEqual(t, r1, []ScanResult{
			{[]byte("aabb"), []byte("val1")},
			{[]byte("aaca"), []byte("val5")},
		})

		r3, _ := tx1.ScanPrefix([]byte("bcca"))
		resultsEqual(t, r3, []ScanResult{{[]byte("bcca"), []byte("val6")}})
	}
}

func TestSet(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Set([]byte("key2"), []byte("val3"))
		tx.Set([]byte("key3"), []byte("val4"))
		tx.Set([]byte("key4"), []byte("val5"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx2, _ := m.Begin()

		tx1.Set([]byte("key1"), []byte("val1-1"))
		tx1.Set([]byte("key2"), []byte("val3-1"))
		tx1.Set([]byte("key2"), []byte("val3-2"))

		tx2.Set([]byte("key3"), []byte("val4-1"))
		tx2.Set([]byte("key4"), []byte("val5-1"))

		if err := tx1.Commit(); err != nil {
			t.Fatalf("tx1.Commit: %v", err)
		}
		if err := tx2.Commit(); err != nil {
			t.Fatalf("tx2.Commit: %v", err)
		}

		tx3, _ := m.Begin()
		if v, ok := mustGet(t, tx3, "key1"); !ok || v != "val1-1" {
			t.Fatalf("key1 = %q %v", v, ok)
		}
		if v, ok := mustGet(t, tx3, "key2"); !ok || v != "val3-2" {
			t.Fatalf("key2 = %q %v", v, ok)
		}
		if v, ok := mustGet(t, tx3, "key3"); !ok || v != "val4-1" {
			t.Fatalf("key3 = %q %v", v, ok)
		}
		if v, ok := mustGet(t, tx3, "key4"); !ok || v != "val5-1" {
			t.Fatalf("key4 = %q %v", v, ok)
		}
	}
}

func TestSetConflict(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Set([]byte("key2"), []byte("val3"))
		tx.Set([]byte("key3"), []byte("val4"))
		tx.Set([]byte("key4"), []byte("val5"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx2, _ := m.Begin()

		tx1.Set([]byte("key1"), []byte("val1-1"))
		tx1.Set([]byte("key1"), []byte("val1-2"))

		if err := tx2.Set([]byte("key1"), []byte("val1-3")); !errs.IsWriteConflict(err) {
			t.Fatalf("expected write conflict, got %v", err)
		}

		tx3, _ := m.Begin()
		tx3.Set([]byte("key5"), []byte("val6"))
		tx3.Commit()

		if err := tx1.Set([]byte("key5"), []byte("val6-1")); !errs.IsWriteConflict(err) {
			t.Fatalf("expected write conflict, got %v", err)
		}

		if err := tx1.Commit(); err != nil {
			t.Fatalf("tx1.Commit: %v", err)
		}
	}
}

func TestDelete(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Set([]byte("key3"), []byte("val3"))
		tx.Delete([]byte("key2"))
		tx.Delete([]byte("key3"))
		tx.Set([]byte("key3"), []byte("val3-1"))
		tx.Commit()

		tx1, _ := m.Begin()
		if _, ok := mustGet(t, tx1, "key2"); ok {
			t.Fatalf("key2 should be deleted")
		}
		r, err := tx1.ScanPrefix([]byte("ke"))
		if err != nil {
			t.Fatalf("ScanPrefix: %v", err)
		}
		resultsEqual(t, r, []ScanResult{
			{[]byte("key1"), []byte("val1")},
			{[]byte("key3"), []byte("val3-1")},
		})
	}
}

func TestDeleteConflict(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx2, _ := m.Begin()
		tx1.Delete([]byte("key1"))
		tx1.Set([]byte("key2"), []byte("val2-1"))

		if err := tx2.Delete([]byte("key1")); !errs.IsWriteConflict(err) {
			t.Fatalf("expected write conflict, got %v", err)
		}
		if err := tx2.Delete([]byte("key2")); !errs.IsWriteConflict(err) {
			t.Fatalf("expected write conflict, got %v", err)
		}
	}
}

func TestDirtyRead(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Set([]byte("key3"), []byte("val3"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx2, _ := m.Begin()

		tx2.Set([]byte("key1"), []byte("val1-1"))
		if v, ok := mustGet(t, tx1, "key1"); !ok || v != "val1" {
			t.Fatalf("dirty read: got %q %v, want val1", v, ok)
		}
	}
}

func TestUnrepeatableRead(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Set([]byte("key3"), []byte("val3"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx2, _ := m.Begin()

		tx2.Set([]byte("key1"), []byte("val1-1"))
		if v, ok := mustGet(t, tx1, "key1"); !ok || v != "val1" {
			t.Fatalf("got %q %v before commit", v, ok)
		}
		if err := tx2.Commit(); err != nil {
			t.Fatalf("tx2.Commit: %v", err)
		}
		if v, ok := mustGet(t, tx1, "key1"); !ok || v != "val1" {
			t.Fatalf("got %q %v after commit, want unchanged val1", v, ok)
		}
	}
}

func TestPhantomRead(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Set([]byte("key3"), []byte("val3"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx2, _ := m.Begin()

		want := []ScanResult{
			{[]byte("key1"), []byte("val1")},
			{[]byte("key2"), []byte("val2")},
			{[]byte("key3"), []byte("val3")},
		}
		r1, _ := tx1.ScanPrefix([]byte("key"))
		resultsEqual(t, r1, want)

		tx2.Set([]byte("key2"), []byte("val2-1"))
		tx2.Set([]byte("key4"), []byte("val4"))
		tx2.Commit()

		r2, _ := tx1.ScanPrefix([]byte("key"))
		resultsEqual(t, r2, want)
	}
}

func TestRollback(t *testing.T) {
	for _, eng := range newTestEngines(t) {
		m, _ := New(eng)
		tx, _ := m.Begin()
		tx.Set([]byte("key1"), []byte("val1"))
		tx.Set([]byte("key2"), []byte("val2"))
		tx.Set([]byte("key3"), []byte("val3"))
		tx.Commit()

		tx1, _ := m.Begin()
		tx1.Set([]byte("key1"), []byte("val1-1"))
		tx1.Set([]byte("key2"), []byte("val2-1"))
		tx1.Set([]byte("key3"), []byte("val3-1"))
		if err := tx1.Rollback(); err != nil {
			t.Fatalf("Rollback: %v", err)
		}

		tx2, _ := m.Begin()
		if v, ok := mustGet(t, tx2, "key1"); !ok || v != "val1" {
			t.Fatalf("key1 = %q %v", v, ok)
		}
		if v, ok := mustGet(t, tx2, "key2"); !ok || v != "val2" {
			t.Fatalf("key2 = %q %v", v, ok)
		}
		if v, ok := mustGet(t, tx2, "key3"); !ok || v != "val3" {
			t.Fatalf("key3 = %q %v", v, ok)
		}
	}
}

func TestOrphanedActiveTransactionIsRolledBackOnReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqldb-log")

	disk, err := engine.NewDiskEngine(path)
	if err != nil {
		t.Fatalf("NewDiskEngine: %v", err)
	}
	m, err := New(disk)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tx, err := m.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Set([]byte("key1"), []byte("val1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Simulate a crash: never commit or roll back, just close the file.
	if err := disk.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	disk2, err := engine.NewDiskEngine(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer disk2.Close()
	m2, err := New(disk2)
	if err != nil {
		t.Fatalf("New on reopen: %v", err)
	}
	tx2, err := m2.Begin()
	if err != nil {
		t.Fatalf("Begin after reopen: %v", err)
	}
	if _, found, err := tx2.Get([]byte("key1")); err != nil || found {
		t.Fatalf("expected orphaned write to be rolled back, found=%v err=%v", found, err)
	}
}
