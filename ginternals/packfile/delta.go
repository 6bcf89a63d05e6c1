package packfile

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"
)

// applyDelta reconstructs an object's bytes from its base and a delta
// payload.
//
// The format of a delta is:
// - A header with:
//   - The expected size of the base (variable size)
//   - The expected size of the result (variable size)
// - A stream of instructions:
//   - A byte with its MSB set is a COPY: its low 4 bits select which
//     of the 4 following offset bytes are present, the next 3 bits
//     select which of the 3 following length bytes are present
//     (absent bytes are 0). A copy of length 0 means 65536, since the
//     field cannot otherwise represent that value.
//   - A byte with its MSB unset is an INSERT: its value is the number
//     of bytes to copy verbatim from the delta stream
func applyDelta(base, delta []byte) ([]byte, error) {
	baseSize, read, err := readSize(delta)
	if err != nil {
		return nil, xerrors.Errorf("couldn't read the base size: %w", err)
	}
	if baseSize != uint64(len(base)) {
		return nil, xerrors.Errorf("base is %d bytes but the delta expects %d: %w", len(base), baseSize, ErrDeltaCorrupt)
	}
	pos := read

	resultSize, read, err := readSize(delta[pos:])
	if err != nil {
		return nil, xerrors.Errorf("couldn't read the result size: %w", err)
	}
	pos += read

	out := bytes.Buffer{}
	out.Grow(int(resultSize))

	instructions := delta[pos:]
	for i := 0; i < len(instructions); i++ {
		instr := instructions[i]

		switch isMSBSet(instr) {
		case true: // COPY
			// The low 4 bits of the instruction tell which of the
			// 4 offset bytes follow. With flags 1010 we read 2 bytes
			// and place them at positions 1 and 3 of the
			// little-endian offset, leaving 0s at 0 and 2
			offsetFlags := uint(instr & 0b_0000_1111)
			offsetBytes := make([]byte, 4)
			byteRead := 0
			for j := uint(0); j < 4; j++ {
				if (offsetFlags >> j & 1) == 1 {
					if i+1+byteRead >= len(instructions) {
						return nil, xerrors.Errorf("truncated copy offset: %w", ErrDeltaCorrupt)
					}
					offsetBytes[j] = instructions[i+1+byteRead]
					byteRead++
				}
			}
			offset := binary.LittleEndian.Uint32(offsetBytes)
			i += byteRead

			// The next 3 bits tell which of the 3 length bytes follow
			lenFlags := uint((instr & 0b_0111_0000) >> 4)
			lenBytes := make([]byte, 4)
			byteRead = 0
			for j := uint(0); j < 3; j++ {
				if (lenFlags >> j & 1) == 1 {
					if i+1+byteRead >= len(instructions) {
						return nil, xerrors.Errorf("truncated copy length: %w", ErrDeltaCorrupt)
					}
					lenBytes[j] = instructions[i+1+byteRead]
					byteRead++
				}
			}
			copyLen := binary.LittleEndian.Uint32(lenBytes)
			i += byteRead

			// 0 cannot be encoded and means 65536 bytes
			if copyLen == 0 {
				copyLen = 65536
			}

			if uint64(offset)+uint64(copyLen) > uint64(len(base)) {
				return nil, xerrors.Errorf("copy of %d bytes at %d overflows the %d-byte base: %w", copyLen, offset, len(base), ErrDeltaCorrupt)
			}
			out.Write(base[offset : offset+copyLen])
		case false: // INSERT
			if instr == 0 {
				return nil, xerrors.Errorf("insert of 0 bytes is reserved: %w", ErrDeltaCorrupt)
			}
			start := i + 1
			end := start + int(instr)
			if end > len(instructions) {
				return nil, xerrors.Errorf("truncated insert of %d bytes: %w", instr, ErrDeltaCorrupt)
			}
			out.Write(instructions[start:end])
			i += int(instr)
		}
	}

	// Never silently truncate or pad: the reconstruction must produce
	// exactly the declared number of bytes
	if uint64(out.Len()) != resultSize {
		return nil, xerrors.Errorf("delta produced %d bytes, expected %d: %w", out.Len(), resultSize, ErrDeltaCorrupt)
	}
	return out.Bytes(), nil
}
