package readelf

import "bytes"

// getString returns the NUL-terminated string starting at off in a string
// table blob. A string that is not terminated before the end of the blob is
// treated as out of bounds.
func getString(strtab []byte, off uint32) (string, error) {
	if uint64(off) >= uint64(len(strtab)) {
		return "", ErrNameOffsetOutOfBounds
	}
	end := bytes.IndexByte(strtab[off:], 0)
	if end < 0 {
		return "", ErrNameOffsetOutOfBounds
	}
	return string(strtab[off : int(off)+end]), nil
}

// loadStrtab reads a string table section as a raw blob.
func (d *Decoder) loadStrtab(op string, s SectionHeader) ([]byte, error) {
	return d.readAt(op, s.Off, s.Size)
}
