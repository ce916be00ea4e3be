package readelf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type testSection struct {
	name    string
	typ     SectionType
	flags   SectionFlag
	addr    uint64
	data    []byte
	size    uint64 // overrides len(data) when non-zero
	link    uint32
	info    uint32
	align   uint64
	entsize uint64
}

type testSegment struct {
	typ    SegmentType
	flags  SegmentFlag
	off    uint64
	vaddr  uint64
	filesz uint64
	memsz  uint64
	align  uint64
}

type testSymbol struct {
	name  string
	info  uint8
	other uint8
	shndx uint16
	value uint64
	size  uint64
}

// elfBuilder assembles a small ELF image in memory: header, program
// headers, section contents and the section header table, in that order.
// Section 0 and .shstrtab are added automatically, as are .symtab and
// .strtab when symbols is non-nil.
type elfBuilder struct {
	class    Class
	data     Data
	typ      ObjectType
	machine  elf.Machine
	osabi    elf.OSABI
	entry    uint64
	segments []testSegment
	sections []testSection
	symbols  []testSymbol

	phentsize int

	// editSections runs on the final section list before layout.
	editSections func(secs []testSection)
	// editHeader runs on the computed header before it is written.
	editHeader func(h *FileHeader)
}

func newBuilder(class Class, data Data) *elfBuilder {
	return &elfBuilder{
		class:   class,
		data:    data,
		typ:     ObjectExec,
		machine: elf.EM_X86_64,
	}
}

func (b *elfBuilder) layoutSizes() (ehsize, phsize, shsize, symsize int) {
	if b.class == Class32 {
		return binary.Size(elf.Header32{}), binary.Size(elf.Prog32{}), binary.Size(elf.Section32{}), binary.Size(elf.Sym32{})
	}
	return binary.Size(elf.Header64{}), binary.Size(elf.Prog64{}), binary.Size(elf.Section64{}), binary.Size(elf.Sym64{})
}

func (b *elfBuilder) build(t testing.TB) []byte {
	t.Helper()
	order := b.data.ByteOrder()
	require.NotNil(t, order)

	ehsize, phsize, shsize, symsize := b.layoutSizes()
	phentsize := phsize
	if b.phentsize != 0 {
		phentsize = b.phentsize
	}

	secs := append([]testSection{{}}, b.sections...)
	if b.symbols != nil {
		strtab := []byte{0}
		var symtab bytes.Buffer
		for _, s := range b.symbols {
			nameOff := uint32(0)
			if s.name != "" {
				nameOff = uint32(len(strtab))
				strtab = append(append(strtab, s.name...), 0)
			}
			b.writeSym(t, &symtab, nameOff, s)
		}
		secs = append(secs,
			testSection{name: ".symtab", typ: SectionSymtab, data: symtab.Bytes(),
				link: uint32(len(secs) + 1), info: 1, align: 8, entsize: uint64(symsize)},
			testSection{name: ".strtab", typ: SectionStrtab, data: strtab, align: 1},
		)
	}
	secs = append(secs, testSection{name: ".shstrtab", typ: SectionStrtab, align: 1})
	if b.editSections != nil {
		b.editSections(secs)
	}

	shstrtab := []byte{0}
	names := make([]uint32, len(secs))
	for i := 1; i < len(secs); i++ {
		names[i] = uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, secs[i].name...), 0)
	}
	last := len(secs) - 1
	if secs[last].data == nil {
		secs[last].data = shstrtab
	}

	offs := make([]uint64, len(secs))
	off := uint64(ehsize + len(b.segments)*phentsize)
	for i := 1; i < len(secs); i++ {
		offs[i] = off
		if secs[i].typ != SectionNobits {
			off += uint64(len(secs[i].data))
		}
	}
	shoff := (off + 7) &^ 7

	hdr := FileHeader{
		Type:      b.typ,
		Machine:   b.machine,
		Version:   elf.EV_CURRENT,
		Entry:     b.entry,
		Shoff:     shoff,
		Ehsize:    uint16(ehsize),
		Phentsize: uint16(phentsize),
		Phnum:     uint16(len(b.segments)),
		Shentsize: uint16(shsize),
		Shnum:     uint16(len(secs)),
		Shstrndx:  uint16(last),
	}
	if len(b.segments) > 0 {
		hdr.Phoff = uint64(ehsize)
	}
	if b.editHeader != nil {
		b.editHeader(&hdr)
	}

	var out bytes.Buffer
	b.writeHeader(t, &out, hdr)
	for _, seg := range b.segments {
		b.writeSegment(t, &out, order, seg, phentsize)
	}
	for i := 1; i < len(secs); i++ {
		if secs[i].typ != SectionNobits {
			out.Write(secs[i].data)
		}
	}
	out.Write(make([]byte, shoff-off))
	for i, s := range secs {
		size := uint64(len(s.data))
		if s.size != 0 {
			size = s.size
		}
		b.writeSection(t, &out, s, names[i], offs[i], size)
	}
	return out.Bytes()
}

func (b *elfBuilder) ident() [elf.EI_NIDENT]byte {
	var id [elf.EI_NIDENT]byte
	copy(id[:], elf.ELFMAG)
	id[elf.EI_CLASS] = byte(b.class)
	id[elf.EI_DATA] = byte(b.data)
	id[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	id[elf.EI_OSABI] = byte(b.osabi)
	return id
}

func (b *elfBuilder) writeHeader(t testing.TB, out *bytes.Buffer, h FileHeader) {
	var v any
	if b.class == Class32 {
		v = &elf.Header32{
			Ident: b.ident(), Type: uint16(h.Type), Machine: uint16(h.Machine), Version: uint32(h.Version),
			Entry: uint32(h.Entry), Phoff: uint32(h.Phoff), Shoff: uint32(h.Shoff), Flags: h.Flags,
			Ehsize: h.Ehsize, Phentsize: h.Phentsize, Phnum: h.Phnum,
			Shentsize: h.Shentsize, Shnum: h.Shnum, Shstrndx: h.Shstrndx,
		}
	} else {
		v = &elf.Header64{
			Ident: b.ident(), Type: uint16(h.Type), Machine: uint16(h.Machine), Version: uint32(h.Version),
			Entry: h.Entry, Phoff: h.Phoff, Shoff: h.Shoff, Flags: h.Flags,
			Ehsize: h.Ehsize, Phentsize: h.Phentsize, Phnum: h.Phnum,
			Shentsize: h.Shentsize, Shnum: h.Shnum, Shstrndx: h.Shstrndx,
		}
	}
	require.NoError(t, binary.Write(out, b.data.ByteOrder(), v))
}

// writeSegment writes exactly entsize bytes: the entry is cut short or zero
// padded to fit.
func (b *elfBuilder) writeSegment(t testing.TB, out *bytes.Buffer, order binary.ByteOrder, p testSegment, entsize int) {
	var v any
	if b.class == Class32 {
		v = &elf.Prog32{Type: uint32(p.typ), Off: uint32(p.off), Vaddr: uint32(p.vaddr), Paddr: uint32(p.vaddr),
			Filesz: uint32(p.filesz), Memsz: uint32(p.memsz), Flags: uint32(p.flags), Align: uint32(p.align)}
	} else {
		v = &elf.Prog64{Type: uint32(p.typ), Flags: uint32(p.flags), Off: p.off, Vaddr: p.vaddr, Paddr: p.vaddr,
			Filesz: p.filesz, Memsz: p.memsz, Align: p.align}
	}
	var entry bytes.Buffer
	require.NoError(t, binary.Write(&entry, order, v))
	raw := entry.Bytes()
	if len(raw) > entsize {
		raw = raw[:entsize]
	}
	out.Write(raw)
	out.Write(make([]byte, entsize-len(raw)))
}

func (b *elfBuilder) writeSection(t testing.TB, out *bytes.Buffer, s testSection, name uint32, off, size uint64) {
	var v any
	if b.class == Class32 {
		v = &elf.Section32{Name: name, Type: uint32(s.typ), Flags: uint32(s.flags), Addr: uint32(s.addr),
			Off: uint32(off), Size: uint32(size), Link: s.link, Info: s.info,
			Addralign: uint32(s.align), Entsize: uint32(s.entsize)}
	} else {
		v = &elf.Section64{Name: name, Type: uint32(s.typ), Flags: uint64(s.flags), Addr: s.addr,
			Off: off, Size: size, Link: s.link, Info: s.info, Addralign: s.align, Entsize: s.entsize}
	}
	require.NoError(t, binary.Write(out, b.data.ByteOrder(), v))
}

func (b *elfBuilder) writeSym(t testing.TB, out *bytes.Buffer, name uint32, s testSymbol) {
	var v any
	if b.class == Class32 {
		v = &elf.Sym32{Name: name, Value: uint32(s.value), Size: uint32(s.size), Info: s.info, Other: s.other, Shndx: s.shndx}
	} else {
		v = &elf.Sym64{Name: name, Info: s.info, Other: s.other, Shndx: s.shndx, Value: s.value, Size: s.size}
	}
	require.NoError(t, binary.Write(out, b.data.ByteOrder(), v))
}

// sampleBuilder is a small executable with two segments, code, data, bss
// and a handful of symbols.
func sampleBuilder(class Class, data Data) *elfBuilder {
	b := newBuilder(class, data)
	b.entry = 0x401000
	b.segments = []testSegment{
		{typ: SegmentLoad, flags: SegmentFlagR | SegmentFlagX, off: 0, vaddr: 0x401000, filesz: 0x10, memsz: 0x10, align: 0x1000},
		{typ: SegmentLoad, flags: SegmentFlagR | SegmentFlagW, off: 0x10, vaddr: 0x402000, filesz: 0x8, memsz: 0x10, align: 0x1000},
		{typ: SegmentType(0x6474e551), flags: SegmentFlagR | SegmentFlagW, align: 0x10},
	}
	b.sections = []testSection{
		{name: ".text", typ: SectionProgbits, flags: SectionFlagAlloc | SectionFlagExecInstr, addr: 0x401000,
			data: bytes.Repeat([]byte{0x90}, 16), align: 16},
		{name: ".data", typ: SectionProgbits, flags: SectionFlagAlloc | SectionFlagWrite, addr: 0x402000,
			data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, align: 8},
		{name: ".bss", typ: SectionNobits, flags: SectionFlagAlloc | SectionFlagWrite, addr: 0x402008,
			size: 8, align: 8},
	}
	b.symbols = []testSymbol{
		{},
		{name: "sample.c", info: 0x04, shndx: uint16(elf.SHN_ABS)},
		{name: "local_counter", info: 0x01, shndx: 2, value: 0x402004, size: 4},
		{name: "_start", info: 0x12, shndx: 1, value: 0x401000, size: 8},
		{name: "helper", info: 0x22, other: 0x2, shndx: 1, value: 0x401008},
		{name: "counter", info: 0x11, shndx: 2, value: 0x402000, size: 4},
		{name: "puts", info: 0x10},
	}
	return b
}

func newTestDecoder(t testing.TB, img []byte) *Decoder {
	t.Helper()
	d, err := NewDecoder(bytes.NewReader(img))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}
