// Package packfile contains methods and structs to read and write
// packfiles
package packfile

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/xerrors"
)

const (
	// headerSize contains the size of the header of a packfile.
	// The first 4 bytes contain the magic, the next 4 bytes contain
	// the version, and the last 4 bytes contain the number of objects
	// in the packfile, for a total of 12 bytes
	headerSize = 12

	// ExtPackfile is the extension of a packfile
	ExtPackfile = ".pack"
	// ExtIndex is the extension of a packfile index
	ExtIndex = ".idx"
)

func packfileMagic() []byte {
	return []byte{'P', 'A', 'C', 'K'}
}

func packfileVersion() []byte {
	return []byte{0, 0, 0, 2}
}

var (
	// ErrIntOverflow is an error thrown when the packfile couldn't
	// be parsed because some data couldn't fit in an int64
	ErrIntOverflow = errors.New("int64 overflow")

	// ErrInvalidMagic is an error thrown when a stream doesn't have
	// the expected magic
	ErrInvalidMagic = errors.New("invalid magic")

	// ErrInvalidVersion is an error thrown when a stream has an
	// unsupported version
	ErrInvalidVersion = errors.New("invalid version")

	// ErrPackInvalid is an error thrown when a pack stream is
	// malformed (truncated records, bad sizes, checksum mismatch, or
	// a misaligned trailer)
	ErrPackInvalid = errors.New("pack is invalid")

	// ErrDeltaCorrupt is an error thrown when a delta record cannot
	// be resolved or its application doesn't produce the expected
	// number of bytes
	ErrDeltaCorrupt = errors.New("delta is corrupt")
)

// Pack represents a fully decoded packfile.
// The packfile format contains a header, a content, and a footer:
// Header: 12 bytes
//         The first 4 bytes contain the magic ('P', 'A', 'C', 'K')
//         The next 4 bytes contain the version (0, 0, 0, 2)
//         The last 4 bytes contain the number of objects in the pack
// Content: Variable size
//          The content contains all the records of the packfile, each
//          zlib compressed. Before every compressed payload comes a
//          few bytes of metadata (the type and inflated size of the
//          record), and for delta records a reference to their base
//          (a raw 20-byte oid for ref-deltas, a variable-size negative
//          byte offset for ofs-deltas).
// Footer: 20 bytes
//         Contains the SHA-1 sum of the packfile (without this SHA)
// https://github.com/git/git/blob/master/Documentation/technical/pack-format.txt
type Pack struct {
	objects  map[ginternals.Oid]*object.Object
	byOffset map[uint64]ginternals.Oid
	order    []ginternals.Oid
	id       ginternals.Oid
}

// pendingDelta is a delta record buffered during the first pass,
// waiting for its base to be materialized
type pendingDelta struct {
	payload    []byte
	baseOid    ginternals.Oid
	baseOffset uint64
	offset     uint64
}

// Parse decodes a full pack stream held in memory.
//
// Because deltas may reference bases that appear later in the pack, or
// bases that are themselves deltas, the decoder works in passes: a
// first pass materializes all the direct records and buffers the
// deltas, then resolution passes run against the table of materialized
// records until every delta is resolved. A pass that resolves nothing
// while deltas remain means the pack is unresolvable and fails with
// ErrDeltaCorrupt
func Parse(data []byte) (*Pack, error) {
	if len(data) < headerSize+ginternals.OidSize {
		return nil, xerrors.Errorf("stream of %d bytes is too short: %w", len(data), ErrPackInvalid)
	}
	if !bytes.Equal(data[0:4], packfileMagic()) {
		return nil, xerrors.Errorf("invalid header: %w", ErrInvalidMagic)
	}
	if !bytes.Equal(data[4:8], packfileVersion()) {
		return nil, xerrors.Errorf("invalid header: %w", ErrInvalidVersion)
	}
	objectCount := binary.BigEndian.Uint32(data[8:headerSize])

	// The footer is the SHA-1 of everything that precedes it
	trailerOffset := len(data) - ginternals.OidSize
	expectedSum := sha1.Sum(data[:trailerOffset])
	if !bytes.Equal(expectedSum[:], data[trailerOffset:]) {
		return nil, xerrors.Errorf("checksum mismatch: %w", ErrPackInvalid)
	}
	id, _ := ginternals.NewOidFromHex(data[trailerOffset:])

	p := &Pack{
		objects:  make(map[ginternals.Oid]*object.Object, objectCount),
		byOffset: make(map[uint64]ginternals.Oid, objectCount),
		id:       id,
	}

	var pending []pendingDelta
	offset := uint64(headerSize)
	for i := uint32(0); i < objectCount; i++ {
		if offset >= uint64(trailerOffset) {
			return nil, xerrors.Errorf("record %d starts past the footer: %w", i, ErrPackInvalid)
		}
		consumed, delta, err := p.parseRecord(data[offset:trailerOffset], offset)
		if err != nil {
			return nil, xerrors.Errorf("record %d: %w", i, err)
		}
		if delta != nil {
			pending = append(pending, *delta)
		}
		offset += consumed
	}

	// After the declared number of records there must be exactly the
	// 20 bytes of the footer left
	if offset != uint64(trailerOffset) {
		return nil, xerrors.Errorf("%d bytes of trailing data before the footer: %w", uint64(trailerOffset)-offset, ErrPackInvalid)
	}

	if err := p.resolveDeltas(pending); err != nil {
		return nil, err
	}
	return p, nil
}

// parseRecord decodes the record starting at data[0], which sits at
// absolute position recordOffset in the pack stream. Direct records
// are materialized in place; delta records are returned for deferred
// resolution
func (p *Pack) parseRecord(data []byte, recordOffset uint64) (consumed uint64, delta *pendingDelta, err error) {
	// The metadata of a record is X bytes long and contains:
	// 1 first byte that contains
	//   - a MSB (1 bit)
	//   - the record type (3 bits)
	//   - the beginning of the inflated size (4 bits)
	// X more bytes that contain:
	//   - a MSB (1 bit)
	//   - the next part of the size (7 bits)
	// Once the MSB of a byte is 0 the metadata is over
	if len(data) == 0 {
		return 0, nil, xerrors.Errorf("empty record: %w", ErrPackInvalid)
	}

	// To extract the type (bits 2, 3, and 4) we apply a mask to unset
	// all the bits we don't want, then we move our 3 bits to the
	// right:
	// value       : MTTT_SSSS // M = MSB ; T = type ; S = size
	// & 0111_0000 : 0TTT_0000
	// >> 4        : 0000_0TTT
	typ := object.Type((data[0] & 0b_0111_0000) >> 4)
	if !typ.IsValid() {
		return 0, nil, xerrors.Errorf("unknown record type %d: %w", typ, ErrPackInvalid)
	}

	// The first part of the size is on the last 4 bits of the first
	// byte:
	// value       : MTTT_SSSS // M = MSB ; T = type ; S = size
	// & 0000_1111 : 0000_SSSS
	size := uint64(data[0] & 0b_0000_1111)
	pos := 1
	if isMSBSet(data[0]) {
		rest, read, err := readSize(data[pos:])
		if err != nil {
			return 0, nil, err
		}
		pos += read
		// the first byte already holds the 4 low bits of the size
		size |= rest << 4
	}

	var baseOid ginternals.Oid
	var baseOffset uint64
	switch typ {
	case object.TypeDeltaRef:
		// ref-deltas are prefixed by the raw oid of their base
		if pos+ginternals.OidSize > len(data) {
			return 0, nil, xerrors.Errorf("truncated ref-delta base: %w", ErrPackInvalid)
		}
		baseOid, err = ginternals.NewOidFromHex(data[pos : pos+ginternals.OidSize])
		if err != nil {
			return 0, nil, xerrors.Errorf("could not parse ref-delta base: %w", err)
		}
		pos += ginternals.OidSize
	case object.TypeDeltaOFS:
		// ofs-deltas are prefixed by a variable-size negative offset
		// pointing at their base, relative to the record's own start
		negOffset, read, err := readDeltaOffset(data[pos:])
		if err != nil {
			return 0, nil, err
		}
		pos += read
		if negOffset > recordOffset {
			return 0, nil, xerrors.Errorf("ofs-delta base offset points before the pack start: %w", ErrPackInvalid)
		}
		baseOffset = recordOffset - negOffset
	}

	// The payload of the record is zlib compressed. bytes.Reader
	// implements io.ByteReader so the inflater won't read past the
	// end of the stream, which lets us compute the compressed size
	br := bytes.NewReader(data[pos:])
	zr, err := zlib.NewReader(br)
	if err != nil {
		return 0, nil, xerrors.Errorf("could not inflate record: %s: %w", err.Error(), ErrPackInvalid)
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		zr.Close() //nolint:errcheck // it already failed
		return 0, nil, xerrors.Errorf("could not inflate record: %s: %w", err.Error(), ErrPackInvalid)
	}
	if err = zr.Close(); err != nil {
		return 0, nil, xerrors.Errorf("could not inflate record: %s: %w", err.Error(), ErrPackInvalid)
	}
	if uint64(len(payload)) != size {
		return 0, nil, xerrors.Errorf("record marked as size %d, but has %d: %w", size, len(payload), ErrPackInvalid)
	}
	pos += len(data[pos:]) - br.Len()

	if typ.IsDelta() {
		return uint64(pos), &pendingDelta{
			payload:    payload,
			baseOid:    baseOid,
			baseOffset: baseOffset,
			offset:     recordOffset,
		}, nil
	}

	o := object.New(typ, payload)
	p.add(o, recordOffset)
	return uint64(pos), nil, nil
}

func (p *Pack) add(o *object.Object, offset uint64) {
	oid := o.ID()
	if _, ok := p.objects[oid]; !ok {
		p.order = append(p.order, oid)
	}
	p.objects[oid] = o
	p.byOffset[offset] = oid
}

// resolveDeltas applies the buffered deltas against the table of
// materialized records. Deltas whose base is itself a delta resolve on
// a later pass, once their base has been materialized
func (p *Pack) resolveDeltas(pending []pendingDelta) error {
	for len(pending) > 0 {
		var unresolved []pendingDelta
		for _, d := range pending {
			var base *object.Object
			switch {
			case !d.baseOid.IsZero():
				base = p.objects[d.baseOid]
			default:
				if oid, ok := p.byOffset[d.baseOffset]; ok {
					base = p.objects[oid]
				}
			}
			if base == nil {
				unresolved = append(unresolved, d)
				continue
			}

			content, err := applyDelta(base.Bytes(), d.payload)
			if err != nil {
				return err
			}
			p.add(object.New(base.Type(), content), d.offset)
		}

		// no progress on a full pass means the remaining deltas can
		// never be resolved
		if len(unresolved) == len(pending) {
			return xerrors.Errorf("%d unresolvable delta(s): %w", len(unresolved), ErrDeltaCorrupt)
		}
		pending = unresolved
	}
	return nil
}

// Object returns the object that has the given oid.
// ginternals.ErrObjectNotFound is returned if the pack doesn't
// contain the object
func (p *Pack) Object(oid ginternals.Oid) (*object.Object, error) {
	o, ok := p.objects[oid]
	if !ok {
		return nil, ginternals.ErrObjectNotFound
	}
	return o, nil
}

// Objects returns all the objects of the pack, in the order they
// were materialized
func (p *Pack) Objects() []*object.Object {
	out := make([]*object.Object, 0, len(p.order))
	for _, oid := range p.order {
		out = append(out, p.objects[oid])
	}
	return out
}

// ObjectCount returns the number of objects in the pack
func (p *Pack) ObjectCount() int {
	return len(p.objects)
}

// ID returns the ID of the pack, ie. its trailing SHA-1
func (p *Pack) ID() ginternals.Oid {
	return p.id
}

// readSize reads the provided bytes to extract a size encoded over
// little-endian groups of 7 bits:
// - 1 bit (MSB) that indicates whether the next byte is part of
//   the size
// - 7 bits of size data
func readSize(data []byte) (size uint64, bytesRead int, err error) {
	if len(data) == 0 {
		return 0, 0, xerrors.Errorf("truncated size: %w", ErrPackInvalid)
	}

	for i, b := range data {
		bytesRead++

		// We make sure to remove the MSB because it's not part of
		// the size. Each group is stored right to left:
		// Final_size = [part_2][part_1][part_0]
		size |= uint64(unsetMSB(b)) << (uint(i) * 7)

		if !isMSBSet(b) {
			break
		}
		if bytesRead >= 9 {
			return 0, 0, ErrIntOverflow
		}
	}

	// if the last byte read has its MSB set it means the stream
	// was truncated
	if isMSBSet(data[bytesRead-1]) {
		return 0, 0, xerrors.Errorf("truncated size: %w", ErrPackInvalid)
	}

	return size, bytesRead, nil
}

// readDeltaOffset reads the provided bytes to extract the offset of an
// ofs-delta's base. The groups of 7 bits are stored big-endian
// (most significant group first), and every group beside the last one
// is stored off by one: each continuation step computes
// offset = (offset+1)<<7 | group, so the correction carries into the
// higher bits the way git encodes it
func readDeltaOffset(data []byte) (offset uint64, bytesRead int, err error) {
	if len(data) == 0 {
		return 0, 0, xerrors.Errorf("truncated delta offset: %w", ErrPackInvalid)
	}

	b := data[0]
	bytesRead = 1
	offset = uint64(unsetMSB(b))

	for isMSBSet(b) {
		if bytesRead >= len(data) {
			return 0, 0, xerrors.Errorf("truncated delta offset: %w", ErrPackInvalid)
		}
		if bytesRead >= 9 {
			return 0, 0, ErrIntOverflow
		}
		b = data[bytesRead]
		bytesRead++
		offset = (offset+1)<<7 | uint64(unsetMSB(b))
	}

	return offset, bytesRead, nil
}

// isMSBSet checks if the Most Significant Bit of a byte is set to 1
func isMSBSet(b byte) bool {
	return b >= 0b_1000_0000
}

// unsetMSB sets the Most Significant Bit of the byte to 0
func unsetMSB(b byte) byte {
	return b & 0b_0111_1111
}
