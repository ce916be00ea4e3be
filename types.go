package readelf

import (
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/go-kit/log"
)

// Identification is the decoded e_ident prefix.
type Identification struct {
	Magic      [4]byte     `json:"magic" yaml:"magic"`
	Class      Class       `json:"class" yaml:"class"`
	Data       Data        `json:"data" yaml:"data"`
	Version    elf.Version `json:"version" yaml:"version"`
	OSABI      elf.OSABI   `json:"osabi" yaml:"osabi"`
	ABIVersion uint8       `json:"abi_version" yaml:"abi_version"`
}

// ByteOrder is the order multi-byte fields are stored in.
func (id Identification) ByteOrder() binary.ByteOrder { return id.Data.ByteOrder() }

// FileHeader is the widened form of Elf32_Ehdr/Elf64_Ehdr. Entry, Phoff and
// Shoff hold 32-bit values for ELF32 objects.
type FileHeader struct {
	Ident     Identification `json:"ident" yaml:"ident"`
	Type      ObjectType     `json:"type" yaml:"type"`
	Machine   elf.Machine    `json:"machine" yaml:"machine"`
	Version   elf.Version    `json:"version" yaml:"version"`
	Entry     uint64         `json:"entry" yaml:"entry"`
	Phoff     uint64         `json:"phoff" yaml:"phoff"`
	Shoff     uint64         `json:"shoff" yaml:"shoff"`
	Flags     uint32         `json:"flags" yaml:"flags"`
	Ehsize    uint16         `json:"ehsize" yaml:"ehsize"`
	Phentsize uint16         `json:"phentsize" yaml:"phentsize"`
	Phnum     uint16         `json:"phnum" yaml:"phnum"`
	Shentsize uint16         `json:"shentsize" yaml:"shentsize"`
	Shnum     uint16         `json:"shnum" yaml:"shnum"`
	Shstrndx  uint16         `json:"shstrndx" yaml:"shstrndx"`
}

// ProgramHeader is one segment descriptor, widened to 64 bits.
type ProgramHeader struct {
	Index  int         `json:"index" yaml:"index"`
	Type   SegmentType `json:"type" yaml:"type"`
	Flags  SegmentFlag `json:"flags" yaml:"flags"`
	Off    uint64      `json:"offset" yaml:"offset"`
	Vaddr  uint64      `json:"vaddr" yaml:"vaddr"`
	Paddr  uint64      `json:"paddr" yaml:"paddr"`
	Filesz uint64      `json:"filesz" yaml:"filesz"`
	Memsz  uint64      `json:"memsz" yaml:"memsz"`
	Align  uint64      `json:"align" yaml:"align"`
}

// SectionHeader is one section descriptor with its resolved name.
type SectionHeader struct {
	Index     int         `json:"index" yaml:"index"`
	NameOff   uint32      `json:"name_offset" yaml:"name_offset"`
	Name      string      `json:"name" yaml:"name"`
	Type      SectionType `json:"type" yaml:"type"`
	Flags     SectionFlag `json:"flags" yaml:"flags"`
	Addr      uint64      `json:"addr" yaml:"addr"`
	Off       uint64      `json:"offset" yaml:"offset"`
	Size      uint64      `json:"size" yaml:"size"`
	Link      uint32      `json:"link" yaml:"link"`
	Info      uint32      `json:"info" yaml:"info"`
	Addralign uint64      `json:"addralign" yaml:"addralign"`
	Entsize   uint64      `json:"entsize" yaml:"entsize"`
}

// Symbol is one symbol table entry with its info byte split into binding and
// type.
type Symbol struct {
	Index      int              `json:"index" yaml:"index"`
	NameOff    uint32           `json:"name_offset" yaml:"name_offset"`
	Name       string           `json:"name" yaml:"name"`
	Info       uint8            `json:"info" yaml:"info"`
	Other      uint8            `json:"other" yaml:"other"`
	Bind       SymbolBinding    `json:"bind" yaml:"bind"`
	Type       SymbolType       `json:"type" yaml:"type"`
	Visibility SymbolVisibility `json:"visibility" yaml:"visibility"`
	Shndx      uint16           `json:"shndx" yaml:"shndx"`
	Value      uint64           `json:"value" yaml:"value"`
	Size       uint64           `json:"size" yaml:"size"`
}

// Decoder decodes one ELF object. Phases run in dependency order on demand
// and keep what they produced until the same phase runs again. A Decoder is
// not safe for concurrent use.
type Decoder struct {
	src     io.ReaderAt
	size    int64
	release []func() error
	closed  bool
	logger  log.Logger

	ident    *Identification
	hdr      *FileHeader
	progs    []ProgramHeader
	sections []SectionHeader
	symbols  []Symbol
	byAddr   []int

	// sectionsDone is set only by a fully successful section header decode.
	sectionsDone bool

	// err is the first failure; once set every phase refuses to run.
	err error
}

// Size is the length in bytes of the underlying source.
func (d *Decoder) Size() int64 { return d.size }

// IsReady reports whether decode phases may still run: false for a nil
// decoder, after Close, and after any phase failed.
func (d *Decoder) IsReady() bool {
	return d != nil && !d.closed && d.err == nil
}

// ProgramHeaders returns the program headers retained from the last decode,
// which may be partial if it failed.
func (d *Decoder) ProgramHeaders() []ProgramHeader { return d.progs }

// SectionHeaders returns the section headers retained from the last decode.
func (d *Decoder) SectionHeaders() []SectionHeader { return d.sections }

// Symbols returns the symbols retained from the last decode.
func (d *Decoder) Symbols() []Symbol { return d.symbols }
