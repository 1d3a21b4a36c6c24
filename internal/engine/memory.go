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

package engine

import (
	"bytes"

	"github.com/google/btree"
)

// memItem is a single (key, value) entry stored in the B-tree, ordered by
// key.
type memItem struct {
	key   []byte
	value []byte
}

// Less implements btree.Item.
func (m *memItem) Less(other btree.Item) bool {
	return bytes.Compare(m.key, other.(*memItem).key) < 0
}

// MemoryEngine is an Engine backed by an in-memory ordered B-tree. It is
// the fastest backend and the one used by tests; nothing survives
// process restart.
type MemoryEngine struct {
	tree *btree.BTree
}

// NewMemoryEngine builds an empty MemoryEngine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{tree: btree.New(32)}
}

func (e *MemoryEngine) Set(key, value []byte) error {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	e.tree.ReplaceOrInsert(&memItem{key: k, value: v})
	return nil
}

func (e *MemoryEngine) Get(key []byte) ([]byte, bool, error) {
	item := e.tree.Get(&memItem{key: key})
	if item == nil {
		return nil, false, nil
	}
	return item.(*memItem).value, true, nil
}

func (e *MemoryEngine) Delete(key []byte) error {
	e.tree.Delete(&memItem{key: key})
	return nil
}

func (e *MemoryEngine) Scan(rng Range) (*Iterator, error) {
	var pairs []Pair
	e.tree.Ascend(func(it btree.Item) bool {
		m := it.(*memItem)
		if rng.contains(m.key) {
			pairs = append(pairs, Pair{Key: append([]byte(nil), m.key...), Value: append([]byte(nil), m.value...)})
		}
		return true
	})
	return NewIterator(pairs), nil
}

func (e *MemoryEngine) ScanPrefix(prefix []byte) (*Iterator, error) {
	end := prefixEnd(prefix)
	return e.Scan(Range{Start: prefix, End: end, EndExcl: true})
}

func (e *MemoryEngine) Close() error { return nil }
