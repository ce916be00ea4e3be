package main

import (
	"debug/elf"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	readelf "github.com/sad0p/go-readelf"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	return table
}

func renderTables(w io.Writer, rep *report) error {
	addr := addrFormat(rep.hdr.Ident.Class)

	if rep.Header != nil {
		printHeader(w, rep.Header)
	}
	if rep.ProgramHeaders != nil {
		printProgHeaders(w, rep.ProgramHeaders, rep.hdr, addr)
	}
	if rep.Sections != nil {
		fmt.Fprintf(w, "\nThere are %d section headers, starting at offset 0x%x:\n\n", len(rep.Sections), rep.hdr.Shoff)
		printSections(w, rep.Sections, addr)
		printFlagKey(w)
	}
	if rep.Symbols != nil {
		fmt.Fprintf(w, "\nSymbol table '%s' contains %d entries:\n", rep.Symbols.Section, len(rep.Symbols.Entries))
		printSymbols(w, rep.Symbols.Entries, addr)
	}
	if rep.Section != nil {
		fmt.Fprintf(w, "\nSection [%d] %s:\n", rep.Section.Index, rep.Section.Name)
		printSections(w, []readelf.SectionHeader{*rep.Section}, addr)
	}
	if rep.Symbol != nil {
		fmt.Fprintf(w, "\nSymbol %s:\n", rep.Symbol.Name)
		printSymbols(w, []readelf.Symbol{*rep.Symbol}, addr)
	}
	if rep.SymbolAt != nil {
		fmt.Fprintf(w, "\nSymbol at 0x%x:\n", rep.SymbolAt.Addr)
		printSymbols(w, []readelf.Symbol{rep.SymbolAt.Symbol}, addr)
	}
	if rep.HexDump != nil {
		fmt.Fprintf(w, "\nHex dump of section '%s':\n", rep.HexDump.Section)
		if len(rep.HexDump.Data) == 0 {
			fmt.Fprintf(w, "Section '%s' has no data to dump.\n", rep.HexDump.Section)
		} else {
			fmt.Fprint(w, hex.Dump(rep.HexDump.Data))
		}
	}
	return nil
}

// addrFormat pads addresses to the natural width of the object.
func addrFormat(c readelf.Class) string {
	if c == readelf.Class32 {
		return "%08x"
	}
	return "%016x"
}

func printHeader(w io.Writer, h *headerView) {
	fmt.Fprintln(w, "ELF Header:")
	table := newTable(w)
	table.AppendBulk([][]string{
		{"Magic:", h.Magic},
		{"Class:", h.Class},
		{"Data:", h.Data},
		{"Version:", h.Version},
		{"OS/ABI:", h.OSABI},
		{"ABI Version:", strconv.Itoa(int(h.ABIVersion))},
		{"Type:", h.Type},
		{"Machine:", h.Machine},
		{"Entry point address:", fmt.Sprintf("0x%x", h.Entry)},
		{"Start of program headers:", fmt.Sprintf("%d (bytes into file)", h.Phoff)},
		{"Start of section headers:", fmt.Sprintf("%d (bytes into file)", h.Shoff)},
		{"Flags:", fmt.Sprintf("0x%x", h.Flags)},
		{"Size of this header:", fmt.Sprintf("%d (bytes)", h.Ehsize)},
		{"Size of program headers:", fmt.Sprintf("%d (bytes)", h.Phentsize)},
		{"Number of program headers:", strconv.Itoa(int(h.Phnum))},
		{"Size of section headers:", fmt.Sprintf("%d (bytes)", h.Shentsize)},
		{"Number of section headers:", strconv.Itoa(int(h.Shnum))},
		{"Section header string table index:", strconv.Itoa(int(h.Shstrndx))},
	})
	table.Render()
}

func printProgHeaders(w io.Writer, progs []readelf.ProgramHeader, hdr readelf.FileHeader, addr string) {
	if len(progs) == 0 {
		fmt.Fprintln(w, "\nThere are no program headers in this file.")
		return
	}
	fmt.Fprintf(w, "\nEntry point 0x%x\nThere are %d program headers, starting at offset %d\n\nProgram Headers:\n",
		hdr.Entry, len(progs), hdr.Phoff)

	table := newTable(w, "Type", "Offset", "VirtAddr", "PhysAddr", "FileSiz", "MemSiz", "Flg", "Align")
	for _, p := range progs {
		table.Append([]string{
			p.Type.String(),
			fmt.Sprintf("0x%06x", p.Off),
			fmt.Sprintf("0x"+addr, p.Vaddr),
			fmt.Sprintf("0x"+addr, p.Paddr),
			fmt.Sprintf("0x%05x", p.Filesz),
			fmt.Sprintf("0x%05x", p.Memsz),
			p.Flags.String(),
			fmt.Sprintf("0x%x", p.Align),
		})
	}
	table.Render()
}

func printSections(w io.Writer, secs []readelf.SectionHeader, addr string) {
	table := newTable(w, "[Nr]", "Name", "Type", "Address", "Off", "Size", "ES", "Flg", "Lk", "Inf", "Al")
	for _, s := range secs {
		table.Append([]string{
			fmt.Sprintf("[%2d]", s.Index),
			s.Name,
			s.Type.String(),
			fmt.Sprintf(addr, s.Addr),
			fmt.Sprintf("%06x", s.Off),
			fmt.Sprintf("%06x", s.Size),
			fmt.Sprintf("%02x", s.Entsize),
			s.Flags.Key(),
			strconv.FormatUint(uint64(s.Link), 10),
			strconv.FormatUint(uint64(s.Info), 10),
			strconv.FormatUint(s.Addralign, 10),
		})
	}
	table.Render()
}

func printFlagKey(w io.Writer) {
	fmt.Fprintln(w, "Key to Flags:")
	fmt.Fprintln(w, "  W (write), A (alloc), X (execute), M (merge), S (strings), I (info),")
	fmt.Fprintln(w, "  L (link order), O (extra OS processing required), G (group), T (TLS),")
	fmt.Fprintln(w, "  C (compressed), x (unknown), o (OS specific), p (processor specific)")
}

func printSymbols(w io.Writer, syms []readelf.Symbol, addr string) {
	table := newTable(w, "Num:", "Value", "Size", "Type", "Bind", "Vis", "Ndx", "Name")
	for _, s := range syms {
		table.Append([]string{
			fmt.Sprintf("%d:", s.Index),
			fmt.Sprintf(addr, s.Value),
			strconv.FormatUint(s.Size, 10),
			s.Type.String(),
			s.Bind.String(),
			s.Visibility.String(),
			sectionIndex(s.Shndx),
			s.Name,
		})
	}
	table.Render()
}

func sectionIndex(ndx uint16) string {
	switch elf.SectionIndex(ndx) {
	case elf.SHN_UNDEF:
		return "UND"
	case elf.SHN_ABS:
		return "ABS"
	case elf.SHN_COMMON:
		return "COM"
	}
	return strconv.Itoa(int(ndx))
}
