package readelf

import (
	"encoding/binary"
	"fmt"
	"strings"
)

type rawCode interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func label[T rawCode](names map[T]string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(0x%x)", uint64(v))
}

// Class is the bit width byte of the identification (EI_CLASS).
type Class uint8

const (
	ClassNone Class = 0
	Class32   Class = 1
	Class64   Class = 2
)

var classNames = map[Class]string{
	Class32: "ELF32",
	Class64: "ELF64",
}

func (c Class) String() string { return label(classNames, c) }

func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Bits returns 32 or 64, or 0 for an unsupported class.
func (c Class) Bits() int {
	switch c {
	case Class32:
		return 32
	case Class64:
		return 64
	}
	return 0
}

// Data is the endianness byte of the identification (EI_DATA).
type Data uint8

const (
	DataNone   Data = 0
	DataLittle Data = 1
	DataBig    Data = 2
)

var dataNames = map[Data]string{
	DataLittle: "little endian",
	DataBig:    "big endian",
}

func (d Data) String() string { return label(dataNames, d) }

func (d Data) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// ByteOrder returns nil for anything but little or big endian.
func (d Data) ByteOrder() binary.ByteOrder {
	switch d {
	case DataLittle:
		return binary.LittleEndian
	case DataBig:
		return binary.BigEndian
	}
	return nil
}

// ObjectType is e_type.
type ObjectType uint16

const (
	ObjectNone   ObjectType = 0
	ObjectRel    ObjectType = 1
	ObjectExec   ObjectType = 2
	ObjectDyn    ObjectType = 3
	ObjectCore   ObjectType = 4
	ObjectLoOS   ObjectType = 0xfe00
	ObjectHiOS   ObjectType = 0xfeff
	ObjectLoProc ObjectType = 0xff00
	ObjectHiProc ObjectType = 0xffff
)

var objectTypeNames = map[ObjectType]string{
	ObjectNone: "NONE (No file type)",
	ObjectRel:  "REL (Relocatable file)",
	ObjectExec: "EXEC (Executable file)",
	ObjectDyn:  "DYN (Shared object file)",
	ObjectCore: "CORE (Core file)",
}

func (t ObjectType) String() string {
	switch {
	case t >= ObjectLoOS && t <= ObjectHiOS:
		return fmt.Sprintf("OS-specific(0x%x)", uint16(t))
	case t >= ObjectLoProc:
		return fmt.Sprintf("Processor-specific(0x%x)", uint16(t))
	}
	return label(objectTypeNames, t)
}

func (t ObjectType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// SegmentType is p_type. Only the original System V set is known; any other
// code is kept verbatim and rendered as Unknown.
type SegmentType uint32

const (
	SegmentNull    SegmentType = 0
	SegmentLoad    SegmentType = 1
	SegmentDynamic SegmentType = 2
	SegmentInterp  SegmentType = 3
	SegmentNote    SegmentType = 4
	SegmentShlib   SegmentType = 5
	SegmentPhdr    SegmentType = 6
)

var segmentTypeNames = map[SegmentType]string{
	SegmentNull:    "NULL",
	SegmentLoad:    "LOAD",
	SegmentDynamic: "DYNAMIC",
	SegmentInterp:  "INTERP",
	SegmentNote:    "NOTE",
	SegmentShlib:   "SHLIB",
	SegmentPhdr:    "PHDR",
}

func (t SegmentType) Known() bool {
	_, ok := segmentTypeNames[t]
	return ok
}

func (t SegmentType) String() string { return label(segmentTypeNames, t) }

func (t SegmentType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// SegmentFlag is the p_flags permission mask.
type SegmentFlag uint32

const (
	SegmentFlagX SegmentFlag = 0x1
	SegmentFlagW SegmentFlag = 0x2
	SegmentFlagR SegmentFlag = 0x4
)

// String renders the mask the way readelf does: "R E", "RW ", ...
func (f SegmentFlag) String() string {
	out := []byte("   ")
	if f&SegmentFlagR != 0 {
		out[0] = 'R'
	}
	if f&SegmentFlagW != 0 {
		out[1] = 'W'
	}
	if f&SegmentFlagX != 0 {
		out[2] = 'E'
	}
	return string(out)
}

func (f SegmentFlag) MarshalText() ([]byte, error) {
	return []byte(strings.ReplaceAll(f.String(), " ", "")), nil
}

// SectionType is sh_type.
type SectionType uint32

const (
	SectionNull         SectionType = 0
	SectionProgbits     SectionType = 1
	SectionSymtab       SectionType = 2
	SectionStrtab       SectionType = 3
	SectionRela         SectionType = 4
	SectionHash         SectionType = 5
	SectionDynamic      SectionType = 6
	SectionNote         SectionType = 7
	SectionNobits       SectionType = 8
	SectionRel          SectionType = 9
	SectionShlib        SectionType = 10
	SectionDynsym       SectionType = 11
	SectionInitArray    SectionType = 14
	SectionFiniArray    SectionType = 15
	SectionPreinitArray SectionType = 16
	SectionGroup        SectionType = 17
	SectionSymtabShndx  SectionType = 18
	SectionGNUHash      SectionType = 0x6ffffff6
	SectionGNUVerdef    SectionType = 0x6ffffffd
	SectionGNUVerneed   SectionType = 0x6ffffffe
	SectionGNUVersym    SectionType = 0x6fffffff
)

var sectionTypeNames = map[SectionType]string{
	SectionNull:         "NULL",
	SectionProgbits:     "PROGBITS",
	SectionSymtab:       "SYMTAB",
	SectionStrtab:       "STRTAB",
	SectionRela:         "RELA",
	SectionHash:         "HASH",
	SectionDynamic:      "DYNAMIC",
	SectionNote:         "NOTE",
	SectionNobits:       "NOBITS",
	SectionRel:          "REL",
	SectionShlib:        "SHLIB",
	SectionDynsym:       "DYNSYM",
	SectionInitArray:    "INIT_ARRAY",
	SectionFiniArray:    "FINI_ARRAY",
	SectionPreinitArray: "PREINIT_ARRAY",
	SectionGroup:        "GROUP",
	SectionSymtabShndx:  "SYMTAB_SHNDX",
	SectionGNUHash:      "GNU_HASH",
	SectionGNUVerdef:    "VERDEF",
	SectionGNUVerneed:   "VERNEED",
	SectionGNUVersym:    "VERSYM",
}

func (t SectionType) String() string { return label(sectionTypeNames, t) }

func (t SectionType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// SectionFlag is the sh_flags attribute mask. Several bits may be set at once.
type SectionFlag uint64

const (
	SectionFlagWrite           SectionFlag = 0x1
	SectionFlagAlloc           SectionFlag = 0x2
	SectionFlagExecInstr       SectionFlag = 0x4
	SectionFlagMerge           SectionFlag = 0x10
	SectionFlagStrings         SectionFlag = 0x20
	SectionFlagInfoLink        SectionFlag = 0x40
	SectionFlagLinkOrder       SectionFlag = 0x80
	SectionFlagOSNonconforming SectionFlag = 0x100
	SectionFlagGroup           SectionFlag = 0x200
	SectionFlagTLS             SectionFlag = 0x400
	SectionFlagCompressed      SectionFlag = 0x800
	SectionFlagMaskOS          SectionFlag = 0x0ff00000
	SectionFlagMaskProc        SectionFlag = 0xf0000000
)

var sectionFlags = []struct {
	flag SectionFlag
	name string
	key  byte
}{
	{SectionFlagWrite, "WRITE", 'W'},
	{SectionFlagAlloc, "ALLOC", 'A'},
	{SectionFlagExecInstr, "EXECINSTR", 'X'},
	{SectionFlagMerge, "MERGE", 'M'},
	{SectionFlagStrings, "STRINGS", 'S'},
	{SectionFlagInfoLink, "INFO_LINK", 'I'},
	{SectionFlagLinkOrder, "LINK_ORDER", 'L'},
	{SectionFlagOSNonconforming, "OS_NONCONFORMING", 'O'},
	{SectionFlagGroup, "GROUP", 'G'},
	{SectionFlagTLS, "TLS", 'T'},
	{SectionFlagCompressed, "COMPRESSED", 'C'},
	{SectionFlagMaskOS, "MASKOS", 'o'},
	{SectionFlagMaskProc, "MASKPROC", 'p'},
}

const knownSectionFlags = SectionFlagWrite | SectionFlagAlloc | SectionFlagExecInstr |
	SectionFlagMerge | SectionFlagStrings | SectionFlagInfoLink | SectionFlagLinkOrder |
	SectionFlagOSNonconforming | SectionFlagGroup | SectionFlagTLS | SectionFlagCompressed |
	SectionFlagMaskOS | SectionFlagMaskProc

// Flags returns every attribute set in f, in table order. The OS and
// processor ranges are reported once each, as their mask.
func (f SectionFlag) Flags() []SectionFlag {
	var set []SectionFlag
	for _, sf := range sectionFlags {
		if f&sf.flag != 0 {
			set = append(set, sf.flag)
		}
	}
	return set
}

func (f SectionFlag) Has(flag SectionFlag) bool {
	return f&flag == flag
}

func (f SectionFlag) String() string {
	if f == 0 {
		return "0"
	}
	var names []string
	for _, sf := range sectionFlags {
		if f&sf.flag != 0 {
			names = append(names, sf.name)
		}
	}
	if rest := f &^ knownSectionFlags; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint64(rest)))
	}
	return strings.Join(names, "|")
}

func (f SectionFlag) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// Key renders f with the single letters used in readelf's "Key to Flags".
func (f SectionFlag) Key() string {
	var key []byte
	for _, sf := range sectionFlags {
		if f&sf.flag != 0 {
			key = append(key, sf.key)
		}
	}
	if f&^knownSectionFlags != 0 {
		key = append(key, 'x')
	}
	return string(key)
}

// SymbolBinding is the upper nibble of st_info.
type SymbolBinding uint8

const (
	BindLocal  SymbolBinding = 0
	BindGlobal SymbolBinding = 1
	BindWeak   SymbolBinding = 2
)

var bindingNames = map[SymbolBinding]string{
	BindLocal:  "LOCAL",
	BindGlobal: "GLOBAL",
	BindWeak:   "WEAK",
}

func (b SymbolBinding) Known() bool {
	_, ok := bindingNames[b]
	return ok
}

func (b SymbolBinding) String() string { return label(bindingNames, b) }

func (b SymbolBinding) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// SymbolType is the lower nibble of st_info.
type SymbolType uint8

const (
	SymNoType  SymbolType = 0
	SymObject  SymbolType = 1
	SymFunc    SymbolType = 2
	SymSection SymbolType = 3
)

var symbolTypeNames = map[SymbolType]string{
	SymNoType:  "NOTYPE",
	SymObject:  "OBJECT",
	SymFunc:    "FUNC",
	SymSection: "SECTION",
}

func (t SymbolType) Known() bool {
	_, ok := symbolTypeNames[t]
	return ok
}

func (t SymbolType) String() string { return label(symbolTypeNames, t) }

func (t SymbolType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// SymbolVisibility is the lower two bits of st_other.
type SymbolVisibility uint8

const (
	VisDefault   SymbolVisibility = 0
	VisInternal  SymbolVisibility = 1
	VisHidden    SymbolVisibility = 2
	VisProtected SymbolVisibility = 3
)

var visibilityNames = map[SymbolVisibility]string{
	VisDefault:   "DEFAULT",
	VisInternal:  "INTERNAL",
	VisHidden:    "HIDDEN",
	VisProtected: "PROTECTED",
}

func (v SymbolVisibility) String() string { return label(visibilityNames, v) }

func (v SymbolVisibility) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// splitInfo decodes st_info as two independent nibbles.
func splitInfo(info uint8) (SymbolBinding, SymbolType) {
	return SymbolBinding(info >> 4), SymbolType(info & 0xf)
}
