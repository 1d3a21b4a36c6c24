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
	"kvsql/internal/errs"
	"kvsql/internal/keycode"
)

// Version identifies a point in the monotonic version sequence every
// transaction is assigned at Begin.
type Version uint64

// keyKind is the tag byte distinguishing the four variants of the mvcc
// key space. The byte values and their order are part of the on-disk
// format: Version sorts after TxnWrite sorts after TxnActive sorts after
// NextVersion, which is what lets a single engine scan serve both the
// internal bookkeeping keys and user data without colliding.
type keyKind byte

const (
	kindNextVersion keyKind = 0
	kindTxnActive   keyKind = 1
	kindTxnWrite    keyKind = 2
	kindVersion     keyKind = 3
)

// key is a tagged union over the mvcc key space:
//
//	NextVersion                     — holds the next Version to hand out
//	TxnActive(Version)              — marks a transaction still open
//	TxnWrite(Version, []byte)       — records that Version wrote key
//	Version([]byte, Version)        — one versioned value for key
type key struct {
	kind    keyKind
	version Version
	raw     []byte
}

func nextVersionKey() key               { return key{kind: kindNextVersion} }
func txnActiveKey(v Version) key        { return key{kind: kindTxnActive, version: v} }
func txnWriteKey(v Version, k []byte) key {
	return key{kind: kindTxnWrite, version: v, raw: k}
}
func versionKey(k []byte, v Version) key {
	return key{kind: kindVersion, version: v, raw: k}
}

// encode renders k into its exact on-disk byte representation.
func (k key) encode() []byte {
	switch k.kind {
	case kindNextVersion:
		return []byte{byte(kindNextVersion)}
	case kindTxnActive:
		out := []byte{byte(kindTxnActive)}
		return append(out, keycode.EncodeUint64(uint64(k.version))...)
	case kindTxnWrite:
		out := []byte{byte(kindTxnWrite)}
		out = append(out, keycode.EncodeUint64(uint64(k.version))...)
		out = append(out, keycode.EncodeBytes(k.raw)...)
		return out
	case kindVersion:
		out := []byte{byte(kindVersion)}
		out = append(out, keycode.EncodeBytes(k.raw)...)
		out = append(out, keycode.EncodeUint64(uint64(k.version))...)
		return out
	default:
		panic("mvcc: unreachable key kind")
	}
}

// decodeKey parses the full on-disk representation produced by encode.
func decodeKey(input []byte) (key, error) {
	if len(input) == 0 {
		return key{}, errs.Internalf("mvcc: empty key")
	}
	kind := keyKind(input[0])
	rest := input[1:]
	switch kind {
	case kindNextVersion:
		return nextVersionKey(), nil
	case kindTxnActive:
		v, rest, err := keycode.DecodeUint64(rest)
		if err != nil {
			return key{}, err
		}
		if len(rest) != 0 {
			return key{}, errs.Internalf("mvcc: trailing bytes after TxnActive key")
		}
		return txnActiveKey(Version(v)), nil
	case kindTxnWrite:
		v, rest, err := keycode.DecodeUint64(rest)
		if err != nil {
			return key{}, err
		}
		k, rest, err := keycode.DecodeBytes(rest)
		if err != nil {
			return key{}, err
		}
		if len(rest) != 0 {
			return key{}, errs.Internalf("mvcc: trailing bytes after TxnWrite key")
		}
		return txnWriteKey(Version(v), k), nil
	case kindVersion:
		k, rest, err := keycode.DecodeBytes(rest)
		if err != nil {
			return key{}, err
		}
		v, rest, err := keycode.DecodeUint64(rest)
		if err != nil {
			return key{}, err
		}
		if len(rest) != 0 {
			return key{}, errs.Internalf("mvcc: trailing bytes after Version key")
		}
		return versionKey(k, Version(v)), nil
	default:
		return key{}, errs.Internalf("mvcc: unknown key kind %d", kind)
	}
}

// keyPrefix renders the prefix-scan byte representation for each variant
// the engine is ever asked to prefix-scan over: the portion of key's
// encoding up to (but not including) the field that varies across the
// scanned set.
type keyPrefix struct {
	kind    keyKind
	version Version
	raw     []byte
}

func txnActivePrefix() keyPrefix             { return keyPrefix{kind: kindTxnActive} }
func txnWritePrefix(v Version) keyPrefix     { return keyPrefix{kind: kindTxnWrite, version: v} }
func versionPrefix(k []byte) keyPrefix       { return keyPrefix{kind: kindVersion, raw: k} }

func (p keyPrefix) encode() []byte {
	switch p.kind {
	case kindNextVersion:
		return []byte{byte(kindNextVersion)}
	case kindTxnActive:
		return []byte{byte(kindTxnActive)}
	case kindTxnWrite:
		out := []byte{byte(kindTxnWrite)}
		return append(out, keycode.EncodeUint64(uint64(p.version))...)
	case kindVersion:
		// encode's Version arm writes EncodeBytes(raw) followed by the
		// version's EncodeUint64. A prefix scan must stop short of the
		// 0x00 0x00 terminator EncodeBytes appends, or it excludes every
		// stored key longer than raw (the terminator sorts between raw's
		// exact-length encoding and any continuation of it).
		out := []byte{byte(kindVersion)}
		encRaw := keycode.EncodeBytes(p.raw)
		out = append(out, encRaw[:len(encRaw)-2]...)
		return out
	default:
		panic("mvcc: unreachable key prefix kind")
	}
}
