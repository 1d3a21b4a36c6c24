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

// Package keycode implements an order-preserving byte encoding for the
// primitives the mvcc key space is built from: variable-length byte
// strings and fixed-width unsigned integers. Two encoded keys compare
// equal under bytes.Compare iff the tuples they were built from compare
// equal lexicographically — this is what lets the storage engine's plain
// byte-ordered scan double as a tuple-ordered scan.
package keycode

import (
	"encoding/binary"

	"kvsql/internal/errs"
)

// EncodeBytes escapes every 0x00 byte in v as 0x00 0xFF and appends a
// 0x00 0x00 terminator, so the encoding of a byte string always sorts
// before the encoding of any longer string that starts with it.
//
//	97 98 99     -> 97 98 99 0 0
//	97 98 0 99   -> 97 98 0 255 99 0 0
//	97 98 0 0 99 -> 97 98 0 255 0 255 99 0 0
func EncodeBytes(v []byte) []byte {
	out := make([]byte, 0, len(v)+2)
	for _, b := range v {
		if b == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, b)
		}
	}
	return append(out, 0x00, 0x00)
}

// DecodeBytes reads one EncodeBytes-encoded byte string off the front of
// input and returns the decoded value along with the remaining,
// unconsumed input.
func DecodeBytes(input []byte) (value []byte, rest []byte, err error) {
	out := make([]byte, 0, len(input))
	i := 0
	for {
		if i >= len(input) {
			return nil, nil, errs.Internalf("keycode: unexpected end of input decoding byte string")
		}
		if input[i] != 0x00 {
			out = append(out, input[i])
			i++
			continue
		}
		// input[i] == 0x00: look at the next byte.
		if i+1 >= len(input) {
			return nil, nil, errs.Internalf("keycode: unexpected end of input decoding byte string")
		}
		switch input[i+1] {
		case 0x00:
			return out, input[i+2:], nil
		case 0xFF:
			out = append(out, 0x00)
			i += 2
		default:
			return nil, nil, errs.Internalf("keycode: unexpected escape byte 0x%02x", input[i+1])
		}
	}
}

// EncodeUint64 writes v as 8 big-endian bytes, so unsigned numeric order
// matches byte order.
func EncodeUint64(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

// DecodeUint64 reads 8 big-endian bytes off the front of input.
func DecodeUint64(input []byte) (value uint64, rest []byte, err error) {
	if len(input) < 8 {
		return 0, nil, errs.Internalf("keycode: need 8 bytes for uint64, got %d", len(input))
	}
	return binary.BigEndian.Uint64(input[:8]), input[8:], nil
}
