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
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/google/btree"
	"golang.org/x/sys/unix"

	"kvsql/internal/errs"
	"kvsql/pkg/log"
)

// logHeadSize is the length, in bytes, of an on-disk record's header: a
// 4-byte big-endian key length followed by a 4-byte big-endian signed
// value length (-1 marks a tombstone).
const logHeadSize = 8

// dirEntry records where a live value lives in the log file: its byte
// offset and length. Tombstoned keys have no entry.
type dirEntry struct {
	offset  uint64
	valSize uint32
}

// dirItem adapts a key/dirEntry pair for google/btree ordering.
type dirItem struct {
	key   []byte
	entry dirEntry
}

func (d *dirItem) Less(other btree.Item) bool {
	return bytes.Compare(d.key, other.(*dirItem).key) < 0
}

// DiskEngine is a Bitcask-style Engine: an append-only log file on disk,
// indexed by an in-memory key directory rebuilt from the log at startup.
type DiskEngine struct {
	keydir *btree.BTree
	log    *diskLog
}

// NewDiskEngine opens (creating if absent) the log file at path and
// rebuilds its key directory.
func NewDiskEngine(path string) (*DiskEngine, error) {
	l, err := newDiskLog(path)
	if err != nil {
		return nil, err
	}
	keydir, err := l.buildKeyDir()
	if err != nil {
		_ = l.file.Close()
		return nil, err
	}
	return &DiskEngine{keydir: keydir, log: l}, nil
}

// NewCompactedDiskEngine opens path and immediately compacts it.
func NewCompactedDiskEngine(path string) (*DiskEngine, error) {
	e, err := NewDiskEngine(path)
	if err != nil {
		return nil, err
	}
	if err := e.Compact(); err != nil {
		return nil, err
	}
	return e, nil
}

// Compact rewrites the log into a fresh file containing only the
// currently-live values, then atomically replaces the old log with it.
func (e *DiskEngine) Compact() error {
	newPath := e.log.path + ".compact"
	newLog, err := newDiskLog(newPath)
	if err != nil {
		return err
	}
	newKeydir := btree.New(32)
	var walkErr error
	e.keydir.Ascend(func(it btree.Item) bool {
		d := it.(*dirItem)
		val, err := e.log.readValue(d.entry.offset, d.entry.valSize)
		if err != nil {
			walkErr = err
			return false
		}
		offset, size, err := newLog.writeEntry(d.key, val, false)
		if err != nil {
			walkErr = err
			return false
		}
		newKeydir.ReplaceOrInsert(&dirItem{
			key:   append([]byte(nil), d.key...),
			entry: dirEntry{offset: offset + uint64(size) - uint64(d.entry.valSize), valSize: d.entry.valSize},
		})
		return true
	})
	if walkErr != nil {
		_ = newLog.file.Close()
		_ = os.Remove(newPath)
		return walkErr
	}
	if err := newLog.file.Close(); err != nil {
		return errs.Wrap(err, "disk engine: close compacted log")
	}
	if err := e.log.file.Close(); err != nil {
		return errs.Wrap(err, "disk engine: close old log")
	}
	if err := os.Rename(newPath, e.log.path); err != nil {
		return errs.Wrap(err, "disk engine: rename compacted log over %s", e.log.path)
	}
	reopened, err := newDiskLog(e.log.path)
	if err != nil {
		return err
	}
	e.log = reopened
	e.keydir = newKeydir
	return nil
}

func (e *DiskEngine) Set(key, value []byte) error {
	offset, size, err := e.log.writeEntry(key, value, false)
	if err != nil {
		return err
	}
	valSize := uint32(len(value))
	e.keydir.ReplaceOrInsert(&dirItem{
		key:   append([]byte(nil), key...),
		entry: dirEntry{offset: offset + uint64(size) - uint64(valSize), valSize: valSize},
	})
	return nil
}

func (e *DiskEngine) Get(key []byte) ([]byte, bool, error) {
	item := e.keydir.Get(&dirItem{key: key})
	if item == nil {
		return nil, false, nil
	}
	d := item.(*dirItem)
	val, err := e.log.readValue(d.entry.offset, d.entry.valSize)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (e *DiskEngine) Delete(key []byte) error {
	if _, _, err := e.log.writeEntry(key, nil, true); err != nil {
		return err
	}
	e.keydir.Delete(&dirItem{key: key})
	return nil
}

func (e *DiskEngine) Scan(rng Range) (*Iterator, error) {
	var pairs []Pair
	var readErr error
	e.keydir.Ascend(func(it btree.Item) bool {
		d := it.(*dirItem)
		if !rng.contains(d.key) {
			return true
		}
		val, err := e.log.readValue(d.entry.offset, d.entry.valSize)
		if err != nil {
			readErr = err
			return false
		}
		pairs = append(pairs, Pair{Key: append([]byte(nil), d.key...), Value: val})
		return true
	})
	if readErr != nil {
		return nil, readErr
	}
	return NewIterator(pairs), nil
}

func (e *DiskEngine) ScanPrefix(prefix []byte) (*Iterator, error) {
	end := prefixEnd(prefix)
	return e.Scan(Range{Start: prefix, End: end, EndExcl: true})
}

func (e *DiskEngine) Close() error {
	return e.log.file.Close()
}

// diskLog is the append-only file backing a DiskEngine.
type diskLog struct {
	path string
	file *os.File
}

// newDiskLog opens (creating if needed) the log file and takes a
// non-blocking exclusive advisory lock on it, so two engines can never
// share the same log file concurrently.
func newDiskLog(path string) (*diskLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(err, "disk engine: create directory %s", dir)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errs.Wrap(err, "disk engine: open %s", path)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, errs.Wrap(err, "disk engine: lock %s (already in use?)", path)
	}
	return &diskLog{path: path, file: file}, nil
}

// buildKeyDir replays the log from the start, reconstructing the key
// directory. A short trailing record (the log was not gracefully closed)
// is truncated with a logged warning rather than failing the open.
func (l *diskLog) buildKeyDir() (*btree.BTree, error) {
	tree := btree.New(32)
	info, err := l.file.Stat()
	if err != nil {
		return nil, errs.Wrap(err, "disk engine: stat %s", l.path)
	}
	fileSize := info.Size()

	var offset int64
	for offset < fileSize {
		key, valSize, entrySize, err := l.readEntryHeader(offset)
		if err == nil && offset+entrySize > fileSize {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				log.Warnf("disk engine: truncating short trailing record at offset %d in %s", offset, l.path)
				if truncErr := l.file.Truncate(offset); truncErr != nil {
					return nil, errs.Wrap(truncErr, "disk engine: truncate %s", l.path)
				}
				break
			}
			return nil, err
		}
		if valSize < 0 {
			tree.Delete(&dirItem{key: key})
		} else {
			tree.ReplaceOrInsert(&dirItem{
				key:   key,
				entry: dirEntry{offset: uint64(offset) + logHeadSize + uint64(len(key)), valSize: uint32(valSize)},
			})
		}
		offset += entrySize
	}
	return tree, nil
}

// readEntryHeader reads one record's header and key at offset, returning
// the key, the encoded value size (-1 for a tombstone) and the total
// record length in bytes.
func (l *diskLog) readEntryHeader(offset int64) (key []byte, valSize int32, entrySize int64, err error) {
	header := make([]byte, logHeadSize)
	if _, err := l.file.ReadAt(header, offset); err != nil {
		return nil, 0, 0, io.ErrUnexpectedEOF
	}
	keySize := binary.BigEndian.Uint32(header[0:4])
	valSize = int32(binary.BigEndian.Uint32(header[4:8]))

	key = make([]byte, keySize)
	if keySize > 0 {
		if _, err := l.file.ReadAt(key, offset+logHeadSize); err != nil {
			return nil, 0, 0, io.ErrUnexpectedEOF
		}
	}

	total := int64(logHeadSize) + int64(keySize)
	if valSize > 0 {
		total += int64(valSize)
	}
	return key, valSize, total, nil
}

// writeEntry appends one record to the end of the log and returns its
// offset and total on-disk size. deleted writes a tombstone (value_len
// == -1) regardless of value; the tombstone decision must come from the
// caller, not be inferred from value == nil, since a present key can
// itself have an empty value.
func (l *diskLog) writeEntry(key, value []byte, deleted bool) (offset uint64, size uint32, err error) {
	off, err := l.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, errs.Wrap(err, "disk engine: seek end of %s", l.path)
	}
	keySize := uint32(len(key))
	var valSize int32 = -1
	if !deleted {
		valSize = int32(len(value))
	}
	total := logHeadSize + keySize
	if valSize > 0 {
		total += uint32(valSize)
	}

	buf := make([]byte, 0, total)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], keySize)
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint32(tmp[:], uint32(valSize))
	buf = append(buf, tmp[:]...)
	buf = append(buf, key...)
	if !deleted {
		buf = append(buf, value...)
	}
	if _, err := l.file.Write(buf); err != nil {
		return 0, 0, errs.Wrap(err, "disk engine: write entry to %s", l.path)
	}
	return uint64(off), total, nil
}

// readValue reads a value of valSize bytes at offset.
func (l *diskLog) readValue(offset uint64, valSize uint32) ([]byte, error) {
	buf := make([]byte, valSize)
	if valSize > 0 {
		if _, err := l.file.ReadAt(buf, int64(offset)); err != nil {
			return nil, errs.Wrap(err, "disk engine: read value at offset %d", offset)
		}
	}
	return buf, nil
}
