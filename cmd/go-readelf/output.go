package main

import (
	"encoding/hex"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	readelf "github.com/sad0p/go-readelf"
)

// report is everything one invocation decoded. Only the parts that were
// asked for are set.
type report struct {
	File           string                  `json:"file" yaml:"file"`
	Header         *headerView             `json:"header,omitempty" yaml:"header,omitempty"`
	ProgramHeaders []readelf.ProgramHeader `json:"program_headers,omitempty" yaml:"program_headers,omitempty"`
	Sections       []readelf.SectionHeader `json:"sections,omitempty" yaml:"sections,omitempty"`
	Symbols        *symbolTable            `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Section        *readelf.SectionHeader  `json:"section,omitempty" yaml:"section,omitempty"`
	Symbol         *readelf.Symbol         `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	SymbolAt       *symbolAt               `json:"symbol_at,omitempty" yaml:"symbol_at,omitempty"`
	HexDump        *hexDump                `json:"hex_dump,omitempty" yaml:"hex_dump,omitempty"`

	hdr readelf.FileHeader
}

type symbolTable struct {
	Section string           `json:"section" yaml:"section"`
	Entries []readelf.Symbol `json:"entries" yaml:"entries"`
}

type symbolAt struct {
	Addr   uint64         `json:"addr" yaml:"addr"`
	Symbol readelf.Symbol `json:"symbol" yaml:"symbol"`
}

type hexDump struct {
	Section string   `json:"section" yaml:"section"`
	Index   int      `json:"index" yaml:"index"`
	Addr    uint64   `json:"addr" yaml:"addr"`
	Data    hexBytes `json:"data" yaml:"data"`
}

// hexBytes encodes as a plain hex string in both YAML and JSON.
type hexBytes []byte

func (b hexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

// headerView is the file header with every code rendered as its label.
type headerView struct {
	Magic      string `json:"magic" yaml:"magic"`
	Class      string `json:"class" yaml:"class"`
	Data       string `json:"data" yaml:"data"`
	Version    string `json:"version" yaml:"version"`
	OSABI      string `json:"osabi" yaml:"osabi"`
	ABIVersion uint8  `json:"abi_version" yaml:"abi_version"`
	Type       string `json:"type" yaml:"type"`
	Machine    string `json:"machine" yaml:"machine"`
	Entry      uint64 `json:"entry" yaml:"entry"`
	Phoff      uint64 `json:"phoff" yaml:"phoff"`
	Shoff      uint64 `json:"shoff" yaml:"shoff"`
	Flags      uint32 `json:"flags" yaml:"flags"`
	Ehsize     uint16 `json:"ehsize" yaml:"ehsize"`
	Phentsize  uint16 `json:"phentsize" yaml:"phentsize"`
	Phnum      uint16 `json:"phnum" yaml:"phnum"`
	Shentsize  uint16 `json:"shentsize" yaml:"shentsize"`
	Shnum      uint16 `json:"shnum" yaml:"shnum"`
	Shstrndx   uint16 `json:"shstrndx" yaml:"shstrndx"`
}

func newHeaderView(h readelf.FileHeader) headerView {
	return headerView{
		Magic:      fmt.Sprintf("% x", h.Ident.Magic),
		Class:      h.Ident.Class.String(),
		Data:       h.Ident.Data.String(),
		Version:    h.Ident.Version.String(),
		OSABI:      h.Ident.OSABI.String(),
		ABIVersion: h.Ident.ABIVersion,
		Type:       h.Type.String(),
		Machine:    h.Machine.String(),
		Entry:      h.Entry,
		Phoff:      h.Phoff,
		Shoff:      h.Shoff,
		Flags:      h.Flags,
		Ehsize:     h.Ehsize,
		Phentsize:  h.Phentsize,
		Phnum:      h.Phnum,
		Shentsize:  h.Shentsize,
		Shnum:      h.Shnum,
		Shstrndx:   h.Shstrndx,
	}
}

type renderFunc func(w io.Writer, rep *report) error

func renderer(format string) (renderFunc, error) {
	switch format {
	case "table":
		return renderTables, nil
	case "yaml":
		return renderYAML, nil
	case "json":
		return renderJSON, nil
	}
	return nil, fmt.Errorf("unrecognized output format %q", format)
}

func renderYAML(w io.Writer, rep *report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}

func renderJSON(w io.Writer, rep *report) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
