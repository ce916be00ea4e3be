package readelf

import (
	"debug/elf"
	"fmt"

	"github.com/go-kit/log/level"
)

// Section Header Table Offset = Shoff
// Number of Section Header Table Entries = Shnum
// Size per entry in Section Header Table = Shentsize

// DecodeSectionHeaders reads the section header table and resolves every
// section name through the section name string table. Calling it again
// replaces the previous result.
func (d *Decoder) DecodeSectionHeaders() ([]SectionHeader, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	hdr, err := d.header()
	if err != nil {
		return nil, err
	}

	d.sectionsDone = false
	d.sections = []SectionHeader{}
	shstrndx, err := d.getSections(hdr)
	if err != nil {
		return d.sections, d.fail("section headers", err)
	}
	if err := d.resolveSectionNames(shstrndx); err != nil {
		return d.sections, d.fail("section names", err)
	}
	d.sectionsDone = true

	level.Debug(d.logger).Log("msg", "decoded section headers", "phase", "section headers", "count", len(d.sections))
	return d.sections, nil
}

// getSections fills d.sections and returns the effective index of the section
// name string table. Extended numbering is honoured: when e_shnum or
// e_shstrndx do not fit the file header, section 0 carries the real values.
func (d *Decoder) getSections(hdr FileHeader) (uint32, error) {
	const op = "section headers"
	if hdr.Shoff == 0 {
		if hdr.Shnum != 0 {
			return 0, formatErr(op, 0, fmt.Errorf("%d sections without a table: %w", hdr.Shnum, ErrOffsetOutOfBounds))
		}
		return 0, nil
	}

	entsize := uint64(hdr.Shentsize)
	count := uint64(hdr.Shnum)
	shstrndx := uint32(hdr.Shstrndx)

	if entsize < entrySize(hdr.Ident.Class, elf.Section32{}, elf.Section64{}) {
		return 0, formatErr(op, hdr.Shoff, ErrInvalidEntrySize)
	}

	if count == 0 || shstrndx == uint32(elf.SHN_XINDEX) {
		s0, err := d.readSection(op, hdr, hdr.Shoff, 0)
		if err != nil {
			return 0, err
		}
		if count == 0 {
			count = s0.Size
		}
		if shstrndx == uint32(elf.SHN_XINDEX) {
			shstrndx = s0.Link
		}
	}

	if !tableInBounds(hdr.Shoff, count, entsize, uint64(d.size)) {
		return 0, formatErr(op, hdr.Shoff, ErrOffsetOutOfBounds)
	}

	d.sections = make([]SectionHeader, 0, count)
	for i := uint64(0); i < count; i++ {
		s, err := d.readSection(op, hdr, hdr.Shoff+i*entsize, int(i))
		if err != nil {
			return 0, err
		}
		d.sections = append(d.sections, s)
	}

	if shstrndx != uint32(elf.SHN_UNDEF) && uint64(shstrndx) >= count {
		return 0, formatErr(op, hdr.Shoff, fmt.Errorf("section name table %d: %w", shstrndx, ErrIndexOutOfRange))
	}
	return shstrndx, nil
}

func (d *Decoder) readSection(op string, hdr FileHeader, off uint64, index int) (SectionHeader, error) {
	buf, err := d.readAt(op, off, uint64(hdr.Shentsize))
	if err != nil {
		return SectionHeader{}, err
	}

	order := hdr.Ident.ByteOrder()
	s := SectionHeader{Index: index}
	switch hdr.Ident.Class {
	case Class32:
		var sh elf.Section32
		if err := decodeEntry(op, off, buf, order, &sh); err != nil {
			return SectionHeader{}, err
		}
		s.NameOff = sh.Name
		s.Type = SectionType(sh.Type)
		s.Flags = SectionFlag(sh.Flags)
		s.Addr = uint64(sh.Addr)
		s.Off = uint64(sh.Off)
		s.Size = uint64(sh.Size)
		s.Link = sh.Link
		s.Info = sh.Info
		s.Addralign = uint64(sh.Addralign)
		s.Entsize = uint64(sh.Entsize)
	case Class64:
		var sh elf.Section64
		if err := decodeEntry(op, off, buf, order, &sh); err != nil {
			return SectionHeader{}, err
		}
		s.NameOff = sh.Name
		s.Type = SectionType(sh.Type)
		s.Flags = SectionFlag(sh.Flags)
		s.Addr = sh.Addr
		s.Off = sh.Off
		s.Size = sh.Size
		s.Link = sh.Link
		s.Info = sh.Info
		s.Addralign = sh.Addralign
		s.Entsize = sh.Entsize
	}
	return s, nil
}

// resolveSectionNames is the second pass over the table. Names resolved
// before a failure are kept.
func (d *Decoder) resolveSectionNames(shstrndx uint32) error {
	const op = "section names"
	if shstrndx == uint32(elf.SHN_UNDEF) || len(d.sections) == 0 {
		return nil
	}

	strs := d.sections[shstrndx]
	shstrtab, err := d.loadStrtab(op, strs)
	if err != nil {
		return err
	}

	for i := range d.sections {
		name, err := getString(shstrtab, d.sections[i].NameOff)
		if err != nil {
			return formatErr(op, strs.Off+uint64(d.sections[i].NameOff), err)
		}
		d.sections[i].Name = name
	}
	return nil
}

// Section returns the section at index.
func (d *Decoder) Section(index int) (SectionHeader, error) {
	if d.sections == nil {
		return SectionHeader{}, fmt.Errorf("section %d: %w", index, ErrPrerequisiteNotMet)
	}
	if index < 0 || index >= len(d.sections) {
		return SectionHeader{}, fmt.Errorf("section %d: %w", index, ErrIndexOutOfRange)
	}
	return d.sections[index], nil
}

// SectionByName returns the first section called name.
func (d *Decoder) SectionByName(name string) (SectionHeader, error) {
	if d.sections == nil {
		return SectionHeader{}, fmt.Errorf("section %q: %w", name, ErrPrerequisiteNotMet)
	}
	for _, s := range d.sections {
		if s.Name == name {
			return s, nil
		}
	}
	return SectionHeader{}, fmt.Errorf("section %q: %w", name, ErrNotFound)
}

func (d *Decoder) sectionsByType(t SectionType) []SectionHeader {
	var list []SectionHeader
	for _, s := range d.sections {
		if s.Type == t {
			list = append(list, s)
		}
	}
	return list
}

// SectionData returns the raw contents of the section at index. A NOBITS
// section has no file image and yields an empty slice.
func (d *Decoder) SectionData(index int) ([]byte, error) {
	s, err := d.Section(index)
	if err != nil {
		return nil, err
	}
	if s.Type == SectionNobits {
		return []byte{}, nil
	}
	return d.readAt("section data", s.Off, s.Size)
}
