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

package mvcc

import (
	"math"
	"sort"

	"kvsql/internal/engine"
	"kvsql/internal/errs"
)

// ScanResult is one visible (key, value) pair from a prefix scan.
type ScanResult struct {
	Key   []byte
	Value []byte
}

// Transaction is a single snapshot-isolated unit of work: it sees every
// version committed before it began, plus its own writes, and nothing
// from transactions still active when it began.
type Transaction struct {
	mvcc    *MVCC
	version Version
	active  map[Version]struct{}
}

// Version reports the transaction's own version number.
func (t *Transaction) Version() Version { return t.version }

// isVisible reports whether a record written at version is visible to
// this transaction: not written by a transaction still active in our
// snapshot, and not from the future. version == t.version (our own
// write) is always visible — see DESIGN.md's resolution of the `<=` vs
// `<` ambiguity between this package and its reference implementation.
func (t *Transaction) isVisible(version Version) bool {
	if _, active := t.active[version]; active {
		return false
	}
	return version <= t.version
}

// Get returns the value visible to this transaction for key, if any.
func (t *Transaction) Get(key []byte) ([]byte, bool, error) {
	t.mvcc.mu.Lock()
	defer t.mvcc.mu.Unlock()

	from := versionKey(key, 0).encode()
	to := versionKey(key, t.version).encode()
	it, err := t.mvcc.eng.Scan(engine.Range{Start: from, End: to})
	if err != nil {
		return nil, false, err
	}
	it.Reverse()

	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		k, err := decodeKey(p.Key)
		if err != nil {
			return nil, false, err
		}
		if k.kind != kindVersion {
			return nil, false, errs.Internalf("mvcc: unexpected key in Get scan: %v", p.Key)
		}
		if !t.isVisible(k.version) {
			continue
		}
		value, present, err := decodeRecord(p.Value)
		if err != nil {
			return nil, false, err
		}
		return value, present, nil
	}
	return nil, false, nil
}

// Set writes key=value, visible to transactions that begin after this
// one commits.
func (t *Transaction) Set(key, value []byte) error {
	return t.writeInner(key, value, true)
}

// Delete marks key as deleted (a tombstone), visible to transactions
// that begin after this one commits.
func (t *Transaction) Delete(key []byte) error {
	return t.writeInner(key, nil, false)
}

func (t *Transaction) writeInner(key, value []byte, present bool) error {
	t.mvcc.mu.Lock()
	defer t.mvcc.mu.Unlock()

	// Conflict detection: scan from the oldest version anyone still
	// active could possibly write (or our own version+1 if nothing is
	// active) up through the maximum possible version, and look at the
	// newest record found. If it exists and isn't visible to us, someone
	// we can't see wrote after us — first writer wins, so we lose.
	lowerBound := t.version + 1
	for v := range t.active {
		if v < lowerBound {
			lowerBound = v
		}
	}
	from := versionKey(key, lowerBound).encode()
	to := versionKey(key, Version(math.MaxUint64)).encode()

	it, err := t.mvcc.eng.Scan(engine.Range{Start: from, End: to})
	if err != nil {
		return err
	}
	pairs := it.Collect()
	if len(pairs) > 0 {
		last := pairs[len(pairs)-1]
		k, err := decodeKey(last.Key)
		if err != nil {
			return err
		}
		if k.kind != kindVersion {
			return errs.Internalf("mvcc: unexpected key in write-conflict scan: %v", last.Key)
		}
		if !t.isVisible(k.version) {
			return errs.ErrWriteConflict
		}
	}

	if err := t.mvcc.eng.Set(txnWriteKey(t.version, key).encode(), nil); err != nil {
		return err
	}
	return t.mvcc.eng.Set(versionKey(key, t.version).encode(), encodeRecord(value, present))
}

// ScanPrefix returns every key with the given prefix visible to this
// transaction, ordered by key.
func (t *Transaction) ScanPrefix(prefix []byte) ([]ScanResult, error) {
	t.mvcc.mu.Lock()
	defer t.mvcc.mu.Unlock()

	encPrefix := versionPrefix(prefix).encode()

	it, err := t.mvcc.eng.ScanPrefix(encPrefix)
	if err != nil {
		return nil, err
	}

	visible := make(map[string][]byte)
	order := make([]string, 0)
	seen := make(map[string]bool)

	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		k, err := decodeKey(p.Key)
		if err != nil {
			return nil, err
		}
		if k.kind != kindVersion {
			return nil, errs.Internalf("mvcc: unexpected key in ScanPrefix: %v", p.Key)
		}
		if !t.isVisible(k.version) {
			continue
		}
		rawKey := string(k.raw)
		value, present, err := decodeRecord(p.Value)
		if err != nil {
			return nil, err
		}
		if !seen[rawKey] {
			seen[rawKey] = true
			order = append(order, rawKey)
		}
		if present {
			visible[rawKey] = value
		} else {
			delete(visible, rawKey)
		}
	}

	sort.Strings(order)
	results := make([]ScanResult, 0, len(order))
	for _, k := range order {
		if v, ok := visible[k]; ok {
			results = append(results, ScanResult{Key: []byte(k), Value: v})
		}
	}
	return results, nil
}

// Commit finalizes the transaction: its TxnWrite markers are discarded
// (the versioned values they point to remain, now permanently part of
// the log) and its TxnActive marker is removed so later transactions
// stop treating it as in-flight.
func (t *Transaction) Commit() error {
	t.mvcc.mu.Lock()
	defer t.mvcc.mu.Unlock()

	prefix := txnWritePrefix(t.version).encode()
	it, err := t.mvcc.eng.ScanPrefix(prefix)
	if err != nil {
		return err
	}
	var toDelete [][]byte
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		toDelete = append(toDelete, p.Key)
	}
	for _, k := range toDelete {
		if err := t.mvcc.eng.Delete(k); err != nil {
			return err
		}
	}
	return t.mvcc.eng.Delete(txnActiveKey(t.version).encode())
}

// Rollback discards every write this transaction made, in addition to
// the bookkeeping Commit would have discarded.
func (t *Transaction) Rollback() error {
	t.mvcc.mu.Lock()
	defer t.mvcc.mu.Unlock()

	prefix := txnWritePrefix(t.version).encode()
	it, err := t.mvcc.eng.ScanPrefix(prefix)
	if err != nil {
		return err
	}
	var toDelete [][]byte
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		k, err := decodeKey(p.Key)
		if err != nil {
			return err
		}
		if k.kind != kindTxnWrite {
			return errs.Internalf("mvcc: unexpected key in Rollback scan: %v", p.Key)
		}
		toDelete = append(toDelete, versionKey(k.raw, t.version).encode())
		toDelete = append(toDelete, p.Key)
	}
	for _, k := range toDelete {
		if err := t.mvcc.eng.Delete(k); err != nil {
			return err
		}
	}
	return t.mvcc.eng.Delete(txnActiveKey(t.version).encode())
}
