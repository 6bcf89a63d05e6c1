// Package readutil contains helpers to scan raw bytes
package readutil

// ReadTo reads from b until sep is seen and returns the bytes between
// the start and sep, exclusive of sep. Returns nil if sep is not found
func ReadTo(b []byte, sep byte) []byte {
	var i int
	for ; i < len(b) && b[i] != sep; i++ {
	}

	if i == len(b) {
		return nil
	}

	return b[0:i]
}
