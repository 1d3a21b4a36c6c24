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
	"bytes"
	"encoding/gob"
	"math"

	"kvsql/internal/errs"
	"kvsql/internal/keycode"
)

// floatBits/floatFromBits round-trip a float64 through its raw bit
// pattern so it can ride through keycode.EncodeUint64/DecodeUint64 —
// primary-key ordering among floats isn't a goal here (see DESIGN.md),
// only a stable, reversible encoding is.
func floatBits(f float64) uint64     { return math.Float64bits(f) }
func floatFromBits(u uint64) float64 { return math.Float64frombits(u) }

// Catalog keys are a distinct, non-order-preserving key space layered on
// top of the mvcc key space: a tag byte, then a keycode-encoded byte
// string so prefix scans ("every row of this table") still work, since
// keycode.EncodeBytes is self-delimiting.
const (
	keyTagTable byte = 0
	keyTagRow   byte = 1
)

// EncodeTableKey builds the mvcc key holding a table's Schema.
func EncodeTableKey(name string) []byte {
	out := []byte{keyTagTable}
	return append(out, keycode.EncodeBytes([]byte(name))...)
}

// EncodeRowPrefix builds the byte prefix shared by every row key of
// table name — safe to hand to Transaction.ScanPrefix directly.
func EncodeRowPrefix(name string) []byte {
	out := []byte{keyTagRow}
	return append(out, keycode.EncodeBytes([]byte(name))...)
}

// EncodeRowKey builds the mvcc key for one row, identified by its
// primary-key value.
func EncodeRowKey(table string, pk Value) []byte {
	out := EncodeRowPrefix(table)
	return append(out, encodeValue(pk)...)
}

// EncodeSchema/DecodeSchema and EncodeRow/DecodeRow serialize the actual
// stored payloads with encoding/gob — payload order doesn't matter, only
// the keys above do, so gob's self-describing wire format is a fine fit.
func EncodeSchema(s Schema) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, errs.Wrap(err, "catalog: encode schema %s", s.Name)
	}
	return buf.Bytes(), nil
}

func DecodeSchema(b []byte) (Schema, error) {
	var s Schema
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&s); err != nil {
		return Schema{}, errs.Wrap(err, "catalog: decode schema")
	}
	return s, nil
}

func EncodeRow(r Row) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, errs.Wrap(err, "catalog: encode row")
	}
	return buf.Bytes(), nil
}

func DecodeRow(b []byte) (Row, error) {
	var r Row
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return nil, errs.Wrap(err, "catalog: decode row")
	}
	return r, nil
}

// Value's on-the-wire shape: a tag byte identifying Null/Bool/Integer/
// Float/String, then a type-specific payload. Used both for primary-key
// encoding in row keys and as Value's gob.GobEncoder implementation.
const (
	valTagNull    byte = 0
	valTagBool    byte = 1
	valTagInteger byte = 2
	valTagFloat   byte = 3
	valTagString  byte = 4
)

func encodeValue(v Value) []byte {
	if v.null {
		return []byte{valTagNull}
	}
	switch v.kind {
	case Boolean:
		b := byte(0)
		if v.boolean {
			b = 1
		}
		return []byte{valTagBool, b}
	case Integer:
		return append([]byte{valTagInteger}, keycode.EncodeUint64(uint64(v.integer))...)
	case Float:
		return append([]byte{valTagFloat}, keycode.EncodeUint64(floatBits(v.float))...)
	case String:
		return append([]byte{valTagString}, keycode.EncodeBytes([]byte(v.str))...)
	default:
		return []byte{valTagNull}
	}
}

func decodeValue(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return Value{}, nil, errs.Internalf("catalog: empty value encoding")
	}
	switch b[0] {
	case valTagNull:
		return Null, b[1:], nil
	case valTagBool:
		if len(b) < 2 {
			return Value{}, nil, errs.Internalf("catalog: truncated bool value")
		}
		return NewBool(b[1] != 0), b[2:], nil
	case valTagInteger:
		u, rest, err := keycode.DecodeUint64(b[1:])
		if err != nil {
			return Value{}, nil, err
		}
		return NewInteger(int64(u)), rest, nil
	case valTagFloat:
		u, rest, err := keycode.DecodeUint64(b[1:])
		if err != nil {
			return Value{}, nil, err
		}
		return NewFloat(floatFromBits(u)), rest, nil
	case valTagString:
		s, rest, err := keycode.DecodeBytes(b[1:])
		if err != nil {
			return Value{}, nil, err
		}
		return NewString(string(s)), rest, nil
	default:
		return Value{}, nil, errs.Internalf("catalog: unknown value tag 0x%02x", b[0])
	}
}

// GobEncode implements gob.GobEncoder so Value's unexported fields still
// round-trip through encoding/gob-serialized Rows and Schemas.
func (v Value) GobEncode() ([]byte, error) {
	return encodeValue(v), nil
}

// GobDecode implements gob.GobDecoder.
func (v *Value) GobDecode(data []byte) error {
	decoded, _, err := decodeValue(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
