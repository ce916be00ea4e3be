package readelf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/go-kit/log"
	"go.uber.org/multierr"
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger phases report to. The default discards
// everything.
func WithLogger(l log.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// Open opens the named file and returns a decoder that owns the handle until
// Close. No ELF validation happens here; the first decode call does it.
func Open(path string, opts ...Option) (*Decoder, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Err: err}
	}
	fi, err := fh.Stat()
	if err != nil {
		return nil, &IOError{Op: "stat", Err: multierr.Append(err, fh.Close())}
	}

	d := newDecoder(fh, fi.Size(), opts)
	d.release = append(d.release, fh.Close)
	return d, nil
}

// OpenMapped is like Open but serves every read from a read-only memory
// mapping of the file.
func OpenMapped(path string, opts ...Option) (*Decoder, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Err: err}
	}
	fi, err := fh.Stat()
	if err != nil {
		return nil, &IOError{Op: "stat", Err: multierr.Append(err, fh.Close())}
	}

	// mmap refuses zero-length mappings.
	if fi.Size() == 0 {
		d := newDecoder(bytes.NewReader(nil), 0, opts)
		d.release = append(d.release, fh.Close)
		return d, nil
	}

	mapped, err := mmap.Map(fh, mmap.RDONLY, 0)
	if err != nil {
		return nil, &IOError{Op: "mmap", Err: multierr.Append(err, fh.Close())}
	}

	d := newDecoder(bytes.NewReader(mapped), int64(len(mapped)), opts)
	d.release = append(d.release, mapped.Unmap, fh.Close)
	return d, nil
}

// NewDecoder adopts an already-open source. The caller keeps ownership of
// src: Close releases nothing it did not acquire.
func NewDecoder(src io.ReadSeeker, opts ...Option) (*Decoder, error) {
	size, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, &IOError{Op: "seek", Err: err}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, &IOError{Op: "seek", Err: err}
	}

	ra, ok := src.(io.ReaderAt)
	if !ok {
		ra = &seekReaderAt{rs: src}
	}
	return newDecoder(ra, size, opts), nil
}

func newDecoder(src io.ReaderAt, size int64, opts []Option) *Decoder {
	d := &Decoder{
		src:    src,
		size:   size,
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close releases the handle (and mapping) acquired by Open or OpenMapped.
// Calling it more than once is harmless.
func (d *Decoder) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true

	var err error
	for _, release := range d.release {
		err = multierr.Append(err, release())
	}
	d.release = nil
	d.src = nil
	return err
}

// seekReaderAt turns a plain ReadSeeker into a ReaderAt: every read seeks to
// its absolute offset first.
type seekReaderAt struct {
	rs io.ReadSeeker
}

func (s *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(s.rs, p)
}

func inBounds(off, n, size uint64) bool {
	return off <= size && n <= size-off
}

// tableInBounds checks count entries of entsize bytes at off without letting
// count*entsize wrap.
func tableInBounds(off, count, entsize, size uint64) bool {
	if entsize != 0 && count > size/entsize {
		return false
	}
	return inBounds(off, count*entsize, size)
}

// readAt is the only way phases touch the source: exactly n bytes at the
// absolute offset off, checked against the real source size first.
func (d *Decoder) readAt(op string, off, n uint64) ([]byte, error) {
	if d.src == nil {
		return nil, ErrNotReady
	}
	if !inBounds(off, n, uint64(d.size)) {
		return nil, formatErr(op, off, ErrOffsetOutOfBounds)
	}

	buf := make([]byte, n)
	sr := io.NewSectionReader(d.src, int64(off), int64(n))
	if _, err := io.ReadFull(sr, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, formatErr(op, off, ErrTruncatedRead)
		}
		return nil, &IOError{Op: op, Err: err}
	}
	return buf, nil
}

// decodeEntry fills v from the front of buf, which must hold at least the
// fixed layout of v.
// entrySize is the encoded size of one table entry for the object's class.
func entrySize(c Class, v32, v64 any) uint64 {
	if c == Class32 {
		return uint64(binary.Size(v32))
	}
	return uint64(binary.Size(v64))
}

func decodeEntry(op string, off uint64, buf []byte, order binary.ByteOrder, v any) error {
	n := binary.Size(v)
	if n < 0 || len(buf) < n {
		return formatErr(op, off, ErrTruncatedRead)
	}
	if err := binary.Read(bytes.NewReader(buf[:n]), order, v); err != nil {
		return formatErr(op, off, ErrTruncatedRead)
	}
	return nil
}
