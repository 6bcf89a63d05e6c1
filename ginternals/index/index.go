// Package index contains methods and structs to read and write the
// staging index file
package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"sort"
	"strings"

	"github.com/go-vcs/gitcore/ginternals"
	"golang.org/x/xerrors"
)

const (
	// headerSize contains the size of the header of an index file.
	// The first 4 bytes contain the magic ('D', 'I', 'R', 'C'), the
	// next 4 bytes contain the version, and the last 4 bytes contain
	// the number of entries in the file
	headerSize = 12

	// entryFixedSize is the size of the fixed-layout part of an
	// entry: 10 4-byte fields, a 20-byte oid, and 2 bytes of flags.
	// The variable-size path and its padding follow
	entryFixedSize = 62

	// version is the index version written on save.
	// Versions 2, 3 and 4 exist; only the layout of version 2 is
	// produced
	version = 2
)

func indexMagic() []byte {
	return []byte{'D', 'I', 'R', 'C'}
}

var (
	// ErrIndexInvalid is an error thrown when the index file is
	// malformed: bad magic, truncated entries, or a checksum mismatch
	ErrIndexInvalid = errors.New("index file is invalid")
)

// Entry represents a file in the staging area.
// Most fields mirror stat(2) and let git detect changed files without
// re-hashing their content
// https://git-scm.com/docs/index-format
type Entry struct {
	Path string
	ID   ginternals.Oid

	CTime     uint32
	CTimeNano uint32
	MTime     uint32
	MTimeNano uint32
	Dev       uint32
	Ino       uint32
	Mode      uint32
	UID       uint32
	GID       uint32
	Size      uint32

	// Stage holds the merge-conflict stage of the entry (0 for a
	// regularly staged file, 1-3 during a conflict)
	Stage uint8
}

// Index represents the content of the staging index file.
// Entries are keyed by path and unique per path; the whole file is
// read and rewritten on every change, never patched in place
type Index struct {
	entries map[string]Entry
	version uint32
}

// New returns a new empty index
func New() *Index {
	return &Index{
		entries: map[string]Entry{},
		version: version,
	}
}

// NewFromBytes parses the content of an index file.
// ErrIndexInvalid is returned if the data doesn't start with the DIRC
// magic, if an entry is truncated, or if the trailing checksum
// doesn't match the preceding bytes
func NewFromBytes(data []byte) (*Index, error) {
	if len(data) < headerSize+ginternals.OidSize {
		return nil, xerrors.Errorf("file of %d bytes is too short: %w", len(data), ErrIndexInvalid)
	}
	if !bytes.Equal(data[0:4], indexMagic()) {
		return nil, xerrors.Errorf("invalid magic: %w", ErrIndexInvalid)
	}

	// The footer is the SHA-1 of everything that precedes it
	trailerOffset := len(data) - ginternals.OidSize
	expectedSum := sha1.Sum(data[:trailerOffset])
	if !bytes.Equal(expectedSum[:], data[trailerOffset:]) {
		return nil, xerrors.Errorf("checksum mismatch: %w", ErrIndexInvalid)
	}

	idx := &Index{
		entries: map[string]Entry{},
		version: binary.BigEndian.Uint32(data[4:8]),
	}
	entryCount := binary.BigEndian.Uint32(data[8:12])

	offset := headerSize
	for i := uint32(0); i < entryCount; i++ {
		if offset+entryFixedSize > trailerOffset {
			return nil, xerrors.Errorf("truncated entry %d: %w", i, ErrIndexInvalid)
		}
		fixed := data[offset : offset+entryFixedSize]
		e := Entry{
			CTime:     binary.BigEndian.Uint32(fixed[0:4]),
			CTimeNano: binary.BigEndian.Uint32(fixed[4:8]),
			MTime:     binary.BigEndian.Uint32(fixed[8:12]),
			MTimeNano: binary.BigEndian.Uint32(fixed[12:16]),
			Dev:       binary.BigEndian.Uint32(fixed[16:20]),
			Ino:       binary.BigEndian.Uint32(fixed[20:24]),
			Mode:      binary.BigEndian.Uint32(fixed[24:28]),
			UID:       binary.BigEndian.Uint32(fixed[28:32]),
			GID:       binary.BigEndian.Uint32(fixed[32:36]),
			Size:      binary.BigEndian.Uint32(fixed[36:40]),
		}
		e.ID, _ = ginternals.NewOidFromHex(fixed[40:60])

		// The flags hold, from high to low: an assume-valid bit, an
		// extended bit, the 2-bit merge stage, and 12 bits of
		// path length
		flags := binary.BigEndian.Uint16(fixed[60:62])
		e.Stage = uint8(flags >> 12 & 0b_0011)

		// The path is NUL terminated, and the entry is then padded
		// with 1 to 8 NUL bytes to the next 8-byte boundary
		nameStart := offset + entryFixedSize
		nameEnd := nameStart
		for nameEnd < trailerOffset && data[nameEnd] != 0 {
			nameEnd++
		}
		if nameEnd == trailerOffset {
			return nil, xerrors.Errorf("unterminated path in entry %d: %w", i, ErrIndexInvalid)
		}
		e.Path = string(data[nameStart:nameEnd])

		consumed := entryFixedSize + (nameEnd - nameStart)
		padding := 8 - consumed%8
		offset += consumed + padding
		if offset > trailerOffset {
			return nil, xerrors.Errorf("entry %d padding overflows the file: %w", i, ErrIndexInvalid)
		}

		idx.entries[e.Path] = e
	}

	// anything left before the footer is extension data that we
	// don't process
	return idx, nil
}

// Version returns the version of the parsed file
func (idx *Index) Version() uint32 {
	return idx.version
}

// Entry returns the entry matching the given path
func (idx *Index) Entry(path string) (Entry, bool) {
	e, ok := idx.entries[path]
	return e, ok
}

// Entries returns all the entries, sorted case-insensitively by path
func (idx *Index) Entries() []Entry {
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Path) < strings.ToLower(out[j].Path)
	})
	return out
}

// Len returns the number of entries in the index
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Add inserts the entry in the index, replacing any entry that has
// the same path
func (idx *Index) Add(e Entry) {
	idx.entries[e.Path] = e
}

// Remove deletes the entry matching the given path, if any
func (idx *Index) Remove(path string) {
	delete(idx.entries, path)
}

// Bytes serializes the index, checksum included, ready to be written
// on disk
func (idx *Index) Bytes() []byte {
	entries := idx.Entries()

	buf := new(bytes.Buffer)
	buf.Write(indexMagic())

	scratch := make([]byte, 4)
	binary.BigEndian.PutUint32(scratch, version)
	buf.Write(scratch)
	binary.BigEndian.PutUint32(scratch, uint32(len(entries)))
	buf.Write(scratch)

	for _, e := range entries {
		for _, field := range []uint32{
			e.CTime, e.CTimeNano, e.MTime, e.MTimeNano,
			e.Dev, e.Ino, e.Mode, e.UID, e.GID, e.Size,
		} {
			binary.BigEndian.PutUint32(scratch, field)
			buf.Write(scratch)
		}
		buf.Write(e.ID.Bytes())

		nameLen := len(e.Path)
		if nameLen > 0x0FFF {
			nameLen = 0x0FFF
		}
		flags := uint16(e.Stage&0b_0011)<<12 | uint16(nameLen)
		binary.BigEndian.PutUint16(scratch[:2], flags)
		buf.Write(scratch[:2])

		buf.WriteString(e.Path)
		padding := 8 - (entryFixedSize+len(e.Path))%8
		for i := 0; i < padding; i++ {
			buf.WriteByte(0)
		}
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}
