package readelf

import (
	"debug/elf"

	"github.com/go-kit/log/level"
)

// DecodeProgramHeaders reads the program header table named by the file
// header. On a failure the entries decoded so far stay available through
// ProgramHeaders.
func (d *Decoder) DecodeProgramHeaders() ([]ProgramHeader, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	hdr, err := d.header()
	if err != nil {
		return nil, err
	}

	d.progs = make([]ProgramHeader, 0, hdr.Phnum)
	if err := d.getProgHeaders(hdr); err != nil {
		return d.progs, d.fail("program headers", err)
	}

	level.Debug(d.logger).Log("msg", "decoded program headers", "phase", "program headers", "count", len(d.progs))
	return d.progs, nil
}

// Program Header Table Offset = Phoff
// Number of entries = Phnum, size per entry = Phentsize
func (d *Decoder) getProgHeaders(hdr FileHeader) error {
	const op = "program headers"
	if hdr.Phnum == 0 {
		return nil
	}

	entsize := uint64(hdr.Phentsize)
	if entsize < entrySize(hdr.Ident.Class, elf.Prog32{}, elf.Prog64{}) {
		return formatErr(op, hdr.Phoff, ErrInvalidEntrySize)
	}
	if !tableInBounds(hdr.Phoff, uint64(hdr.Phnum), entsize, uint64(d.size)) {
		return formatErr(op, hdr.Phoff, ErrOffsetOutOfBounds)
	}

	order := hdr.Ident.ByteOrder()
	for i := 0; i < int(hdr.Phnum); i++ {
		off := hdr.Phoff + uint64(i)*entsize
		buf, err := d.readAt(op, off, entsize)
		if err != nil {
			return err
		}

		ph := ProgramHeader{Index: i}
		switch hdr.Ident.Class {
		case Class32:
			var p elf.Prog32
			if err := decodeEntry(op, off, buf, order, &p); err != nil {
				return err
			}
			ph.Type = SegmentType(p.Type)
			ph.Flags = SegmentFlag(p.Flags)
			ph.Off = uint64(p.Off)
			ph.Vaddr = uint64(p.Vaddr)
			ph.Paddr = uint64(p.Paddr)
			ph.Filesz = uint64(p.Filesz)
			ph.Memsz = uint64(p.Memsz)
			ph.Align = uint64(p.Align)
		case Class64:
			var p elf.Prog64
			if err := decodeEntry(op, off, buf, order, &p); err != nil {
				return err
			}
			ph.Type = SegmentType(p.Type)
			ph.Flags = SegmentFlag(p.Flags)
			ph.Off = p.Off
			ph.Vaddr = p.Vaddr
			ph.Paddr = p.Paddr
			ph.Filesz = p.Filesz
			ph.Memsz = p.Memsz
			ph.Align = p.Align
		}
		d.progs = append(d.progs, ph)
	}
	return nil
}

