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

// Package mvcc implements a snapshot-isolation transaction layer over an
// engine.Engine: every read sees a consistent point-in-time snapshot and
// concurrent writers to the same key are resolved first-writer-wins.
package mvcc

import (
	"sync"

	"kvsql/internal/engine"
	"kvsql/internal/errs"
	"kvsql/pkg/log"
)

// MVCC owns the single underlying engine and hands out transactions.
// Every engine access happens while mu is held.
type MVCC struct {
	mu  sync.Mutex
	eng engine.Engine
}

// New wraps eng in an MVCC manager. Any TxnActive marker already present
// in eng (left behind by a transaction that never committed or rolled
// back before a crash) is swept and rolled back before the manager is
// returned, so a reopened disk engine never serves versions an earlier,
// now-gone process abandoned mid-transaction.
func New(eng engine.Engine) (*MVCC, error) {
	m := &MVCC{eng: eng}
	m.mu.Lock()
	defer m.mu.Unlock()

	orphans, err := scanActive(eng)
	if err != nil {
		return nil, err
	}
	for v := range orphans {
		if err := rollbackVersion(eng, v); err != nil {
			return nil, err
		}
		log.Warnf("mvcc: rolled back orphaned transaction at startup, version=%d", v)
	}
	return m, nil
}

// Begin starts a new transaction, assigning it the next version and
// snapshotting the set of currently-active (uncommitted) versions it
// must treat as invisible.
func (m *MVCC) Begin() (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nextVersion, err := readNextVersion(m.eng)
	if err != nil {
		return nil, err
	}
	if err := writeNextVersion(m.eng, nextVersion+1); err != nil {
		return nil, err
	}

	active, err := scanActive(m.eng)
	if err != nil {
		return nil, err
	}

	if err := m.eng.Set(txnActiveKey(nextVersion).encode(), nil); err != nil {
		return nil, err
	}

	return &Transaction{
		mvcc:    m,
		version: nextVersion,
		active:  active,
	}, nil
}

func readNextVersion(eng engine.Engine) (Version, error) {
	v, found, err := eng.Get(nextVersionKey().encode())
	if err != nil {
		return 0, err
	}
	if !found {
		return 1, nil
	}
	n, ok := decodeVersionValue(v)
	if !ok {
		return 0, errs.Internalf("mvcc: corrupt NextVersion record")
	}
	return n, nil
}

func writeNextVersion(eng engine.Engine, v Version) error {
	return eng.Set(nextVersionKey().encode(), encodeVersionValue(v))
}

// scanActive returns the set of versions with a live TxnActive marker.
func scanActive(eng engine.Engine) (map[Version]struct{}, error) {
	prefix := txnActivePrefix().encode()
	it, err := eng.ScanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	active := make(map[Version]struct{})
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		k, err := decodeKey(p.Key)
		if err != nil {
			return nil, err
		}
		if k.kind != kindTxnActive {
			return nil, errs.Internalf("mvcc: unexpected key in TxnActive scan: %v", p.Key)
		}
		active[k.version] = struct{}{}
	}
	return active, nil
}

// rollbackVersion removes every Version/TxnWrite record a given
// transaction wrote, plus its TxnActive marker — the same cleanup
// Transaction.Rollback performs, usable directly against the engine
// before any Transaction exists (startup orphan sweep).
func rollbackVersion(eng engine.Engine, v Version) error {
	prefix := txnWritePrefix(v).encode()
	it, err := eng.ScanPrefix(prefix)
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
			return errs.Internalf("mvcc: unexpected key in TxnWrite scan: %v", p.Key)
		}
		toDelete = append(toDelete, versionKey(k.raw, v).encode())
		toDelete = append(toDelete, p.Key)
	}
	for _, k := range toDelete {
		if err := eng.Delete(k); err != nil {
			return err
		}
	}
	return eng.Delete(txnActiveKey(v).encode())
}
