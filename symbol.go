package readelf

import (
	"debug/elf"
	"fmt"

	"github.com/go-kit/log/level"
	"golang.org/x/exp/slices"
)

// DecodeSymbols decodes the static symbol table. It needs the section headers
// from a successful DecodeSectionHeaders; an object without a symbol table
// yields an empty result.
func (d *Decoder) DecodeSymbols() ([]Symbol, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	if !d.sectionsDone || d.hdr == nil {
		return nil, fmt.Errorf("symbols: %w", ErrPrerequisiteNotMet)
	}

	d.symbols = []Symbol{}
	d.byAddr = nil

	symtab, ok := d.findSymtab()
	if !ok {
		level.Debug(d.logger).Log("msg", "no symbol table", "phase", "symbols")
		return d.symbols, nil
	}
	if err := d.loadSymbols(*d.hdr, symtab); err != nil {
		return d.symbols, d.fail("symbols", err)
	}

	level.Debug(d.logger).Log("msg", "decoded symbols", "phase", "symbols", "section", symtab.Name, "count", len(d.symbols))
	return d.symbols, nil
}

// findSymtab prefers the section typed SHT_SYMTAB and falls back to one named
// ".symtab".
func (d *Decoder) findSymtab() (SectionHeader, bool) {
	if list := d.sectionsByType(SectionSymtab); len(list) > 0 {
		return list[0], true
	}
	if s, err := d.SectionByName(".symtab"); err == nil {
		return s, true
	}
	return SectionHeader{}, false
}

// symbolStrtab resolves the string table through sh_link, then by the name
// ".strtab". A link to anything but a string table is ignored.
func (d *Decoder) symbolStrtab(symtab SectionHeader) (SectionHeader, error) {
	if link := int(symtab.Link); link > 0 && link < len(d.sections) && d.sections[link].Type == SectionStrtab {
		return d.sections[link], nil
	}
	if s, err := d.SectionByName(".strtab"); err == nil {
		return s, nil
	}
	return SectionHeader{}, formatErr("symbols", symtab.Off,
		fmt.Errorf("string table for %s: %w", symtab.Name, ErrNotFound))
}

func (d *Decoder) loadSymbols(hdr FileHeader, symtab SectionHeader) error {
	const op = "symbols"

	if symtab.Entsize < entrySize(hdr.Ident.Class, elf.Sym32{}, elf.Sym64{}) {
		return formatErr(op, symtab.Off, ErrInvalidEntrySize)
	}
	count := symtab.Size / symtab.Entsize
	if !tableInBounds(symtab.Off, count, symtab.Entsize, uint64(d.size)) {
		return formatErr(op, symtab.Off, ErrOffsetOutOfBounds)
	}

	strs, err := d.symbolStrtab(symtab)
	if err != nil {
		return err
	}
	strtab, err := d.loadStrtab("symbol names", strs)
	if err != nil {
		return err
	}

	table, err := d.readAt(op, symtab.Off, count*symtab.Entsize)
	if err != nil {
		return err
	}

	order := hdr.Ident.ByteOrder()
	d.symbols = make([]Symbol, 0, count)
	for i := uint64(0); i < count; i++ {
		off := symtab.Off + i*symtab.Entsize
		entry := table[i*symtab.Entsize : (i+1)*symtab.Entsize]

		sym := Symbol{Index: int(i)}
		switch hdr.Ident.Class {
		case Class32:
			var s elf.Sym32
			if err := decodeEntry(op, off, entry, order, &s); err != nil {
				return err
			}
			sym.NameOff = s.Name
			sym.Info = s.Info
			sym.Other = s.Other
			sym.Shndx = s.Shndx
			sym.Value = uint64(s.Value)
			sym.Size = uint64(s.Size)
		case Class64:
			var s elf.Sym64
			if err := decodeEntry(op, off, entry, order, &s); err != nil {
				return err
			}
			sym.NameOff = s.Name
			sym.Info = s.Info
			sym.Other = s.Other
			sym.Shndx = s.Shndx
			sym.Value = s.Value
			sym.Size = s.Size
		}
		sym.Bind, sym.Type = splitInfo(sym.Info)
		sym.Visibility = SymbolVisibility(sym.Other & 0x3)

		name, err := getString(strtab, sym.NameOff)
		if err != nil {
			return formatErr("symbol names", strs.Off+uint64(sym.NameOff), err)
		}
		sym.Name = name
		d.symbols = append(d.symbols, sym)
	}
	return nil
}

// SymbolByName returns the first symbol called name.
func (d *Decoder) SymbolByName(name string) (Symbol, error) {
	if d.symbols == nil {
		return Symbol{}, fmt.Errorf("symbol %q: %w", name, ErrPrerequisiteNotMet)
	}
	for _, s := range d.symbols {
		if s.Name == name {
			return s, nil
		}
	}
	return Symbol{}, fmt.Errorf("symbol %q: %w", name, ErrNotFound)
}

// SymbolAt returns the function or object symbol covering addr. A symbol
// with a size covers [Value, Value+Size); a zero-sized one covers everything
// up to the next symbol.
func (d *Decoder) SymbolAt(addr uint64) (Symbol, error) {
	if d.symbols == nil {
		return Symbol{}, fmt.Errorf("symbol at 0x%x: %w", addr, ErrPrerequisiteNotMet)
	}
	if d.byAddr == nil {
		d.indexSymbols()
	}

	// First entry starting past addr; its predecessor is the candidate.
	i, _ := slices.BinarySearchFunc(d.byAddr, addr, func(idx int, addr uint64) int {
		if d.symbols[idx].Value <= addr {
			return -1
		}
		return 1
	})
	if i == 0 {
		return Symbol{}, fmt.Errorf("symbol at 0x%x: %w", addr, ErrNotFound)
	}

	s := d.symbols[d.byAddr[i-1]]
	if s.Size > 0 && addr-s.Value >= s.Size {
		return Symbol{}, fmt.Errorf("symbol at 0x%x: %w", addr, ErrNotFound)
	}
	return s, nil
}

// indexSymbols sorts the defined function and object symbols by address.
func (d *Decoder) indexSymbols() {
	d.byAddr = make([]int, 0, len(d.symbols))
	for i, s := range d.symbols {
		if s.Shndx == uint16(elf.SHN_UNDEF) {
			continue
		}
		if s.Type == SymFunc || s.Type == SymObject {
			d.byAddr = append(d.byAddr, i)
		}
	}
	slices.SortStableFunc(d.byAddr, func(a, b int) int {
		va, vb := d.symbols[a].Value, d.symbols[b].Value
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	})
}
