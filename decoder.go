// Package readelf decodes ELF object metadata: identification, file header,
// program headers, section headers with resolved names and the symbol table.
//
// Every phase reads through one bounded "exact bytes at absolute offset"
// primitive, so phases may be interleaved freely. The first failing phase
// leaves the decoder permanently not ready, but whatever was decoded before
// the failure stays queryable.
package readelf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/go-kit/log/level"
)

// ready fails fast once the decoder is closed or a phase has failed.
func (d *Decoder) ready() error {
	if d == nil {
		return ErrNotReady
	}
	if d.closed {
		return fmt.Errorf("%w: closed", ErrNotReady)
	}
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, d.err)
	}
	return nil
}

// fail records the first error that invalidates the decoder and returns err.
func (d *Decoder) fail(phase string, err error) error {
	if d.err == nil {
		d.err = err
		level.Warn(d.logger).Log("msg", "decoder invalidated", "phase", phase, "err", err)
	}
	return err
}

func isElf(magic []byte) bool {
	return len(magic) >= len(elf.ELFMAG) && bytes.Equal(magic[:len(elf.ELFMAG)], []byte(elf.ELFMAG))
}

// DecodeIdentification reads and validates the identification prefix.
func (d *Decoder) DecodeIdentification() (Identification, error) {
	if err := d.ready(); err != nil {
		return Identification{}, err
	}

	id, err := d.readIdent()
	if err != nil {
		return Identification{}, d.fail("identification", err)
	}
	d.ident = &id

	level.Debug(d.logger).Log("msg", "decoded identification", "class", id.Class, "data", id.Data, "osabi", id.OSABI)
	return id, nil
}

func (d *Decoder) readIdent() (Identification, error) {
	const op = "identification"

	n := uint64(elf.EI_NIDENT)
	if uint64(d.size) < n {
		n = uint64(d.size)
	}
	ident, err := d.readAt(op, 0, n)
	if err != nil {
		return Identification{}, err
	}
	if !isElf(ident) {
		return Identification{}, formatErr(op, 0, ErrBadMagic)
	}
	if len(ident) < elf.EI_NIDENT {
		return Identification{}, formatErr(op, 0, ErrTruncatedRead)
	}

	var id Identification
	copy(id.Magic[:], ident[:len(elf.ELFMAG)])

	id.Class = Class(ident[elf.EI_CLASS])
	if id.Class.Bits() == 0 {
		return Identification{}, formatErr(op, elf.EI_CLASS, fmt.Errorf("%w: %d", ErrUnsupportedBitWidth, ident[elf.EI_CLASS]))
	}

	id.Data = Data(ident[elf.EI_DATA])
	if id.Data.ByteOrder() == nil {
		return Identification{}, formatErr(op, elf.EI_DATA, fmt.Errorf("%w: %d", ErrUnsupportedEndianness, ident[elf.EI_DATA]))
	}

	id.Version = elf.Version(ident[elf.EI_VERSION])
	id.OSABI = elf.OSABI(ident[elf.EI_OSABI])
	id.ABIVersion = ident[elf.EI_ABIVERSION]
	return id, nil
}

// identification returns the cached identification, decoding it first if
// needed.
func (d *Decoder) identification() (Identification, error) {
	if d.ident != nil {
		return *d.ident, nil
	}
	return d.DecodeIdentification()
}

// DecodeHeader reads the file header, decoding the identification first if no
// earlier call did.
func (d *Decoder) DecodeHeader() (FileHeader, error) {
	if err := d.ready(); err != nil {
		return FileHeader{}, err
	}
	id, err := d.identification()
	if err != nil {
		return FileHeader{}, err
	}

	hdr, err := d.mapHeader(id)
	if err != nil {
		return FileHeader{}, d.fail("file header", err)
	}
	d.hdr = &hdr

	level.Debug(d.logger).Log("msg", "decoded file header", "type", hdr.Type, "machine", hdr.Machine,
		"phnum", hdr.Phnum, "shnum", hdr.Shnum)
	return hdr, nil
}

func (d *Decoder) header() (FileHeader, error) {
	if d.hdr != nil {
		return *d.hdr, nil
	}
	return d.DecodeHeader()
}

// mapHeader re-reads from offset 0 with the layout selected by the class.
func (d *Decoder) mapHeader(id Identification) (FileHeader, error) {
	const op = "file header"
	order := id.ByteOrder()

	switch id.Class {
	case Class32:
		var h elf.Header32
		buf, err := d.readAt(op, 0, uint64(binary.Size(&h)))
		if err != nil {
			return FileHeader{}, err
		}
		if err := decodeEntry(op, 0, buf, order, &h); err != nil {
			return FileHeader{}, err
		}
		return FileHeader{
			Ident:     id,
			Type:      ObjectType(h.Type),
			Machine:   elf.Machine(h.Machine),
			Version:   elf.Version(h.Version),
			Entry:     uint64(h.Entry),
			Phoff:     uint64(h.Phoff),
			Shoff:     uint64(h.Shoff),
			Flags:     h.Flags,
			Ehsize:    h.Ehsize,
			Phentsize: h.Phentsize,
			Phnum:     h.Phnum,
			Shentsize: h.Shentsize,
			Shnum:     h.Shnum,
			Shstrndx:  h.Shstrndx,
		}, nil

	case Class64:
		var h elf.Header64
		buf, err := d.readAt(op, 0, uint64(binary.Size(&h)))
		if err != nil {
			return FileHeader{}, err
		}
		if err := decodeEntry(op, 0, buf, order, &h); err != nil {
			return FileHeader{}, err
		}
		return FileHeader{
			Ident:     id,
			Type:      ObjectType(h.Type),
			Machine:   elf.Machine(h.Machine),
			Version:   elf.Version(h.Version),
			Entry:     h.Entry,
			Phoff:     h.Phoff,
			Shoff:     h.Shoff,
			Flags:     h.Flags,
			Ehsize:    h.Ehsize,
			Phentsize: h.Phentsize,
			Phnum:     h.Phnum,
			Shentsize: h.Shentsize,
			Shnum:     h.Shnum,
			Shstrndx:  h.Shstrndx,
		}, nil
	}

	return FileHeader{}, formatErr(op, elf.EI_CLASS, ErrUnsupportedBitWidth)
}
