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
	"encoding/binary"

	"kvsql/internal/errs"
)

// encodeVersionValue encodes the plain uint64 stored at the NextVersion
// key.
func encodeVersionValue(v Version) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(v))
	return out
}

func decodeVersionValue(b []byte) (Version, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return Version(binary.BigEndian.Uint64(b)), true
}

// A Version() record's value is an optional byte string: a tombstone
// (Delete) versus a present value (Set). The leading tag byte carries
// that distinction since the record's own length already delimits the
// value, so no extra framing is needed.
const (
	tagTombstone byte = 0x00
	tagPresent   byte = 0x01
)

func encodeRecord(value []byte, present bool) []byte {
	if !present {
		return []byte{tagTombstone}
	}
	out := make([]byte, 0, len(value)+1)
	out = append(out, tagPresent)
	return append(out, value...)
}

// decodeRecord splits a Version() record back into its value and
// presence flag.
func decodeRecord(b []byte) (value []byte, present bool, err error) {
	if len(b) == 0 {
		return nil, false, errs.Internalf("mvcc: empty version record")
	}
	switch b[0] {
	case tagTombstone:
		return nil, false, nil
	case tagPresent:
		return b[1:], true, nil
	default:
		return nil, false, errs.Internalf("mvcc: unknown version record tag 0x%02x", b[0])
	}
}
