// Command go-readelf displays the headers, sections and symbols of ELF object
// files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	readelf "github.com/sad0p/go-readelf"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

var errNoDisplay = errors.New("at least one of -h, -l, -S, -s, -a, -x, --section, --symbol or --addr is required")

type options struct {
	header      bool
	progHeaders bool
	sections    bool
	symbols     bool
	all         bool

	section string
	symbol  string
	addr    string
	hexDump string

	mmap   bool
	output string

	logLevel  string
	logFormat string
}

func (o *options) expand() {
	if o.all {
		o.header, o.progHeaders, o.sections, o.symbols = true, true, true, true
	}
}

func (o options) any() bool {
	return o.header || o.progHeaders || o.sections || o.symbols ||
		o.section != "" || o.symbol != "" || o.addr != "" || o.hexDump != ""
}

func (o options) needSymbols() bool {
	return o.symbols || o.symbol != "" || o.addr != ""
}

func (o options) needSections() bool {
	return o.sections || o.section != "" || o.hexDump != "" || o.needSymbols()
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "go-readelf [flags] <target-binary>",
		Short: "Display information about ELF object files",
		Long: `go-readelf decodes the identification, file header, program headers,
section headers and symbol table of an ELF object and prints them as tables,
YAML or JSON. Short options can be combined, e.g. -hSl.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			// From here on failures are reported through the logger.
			cmd.SilenceErrors = true

			opts.expand()
			if err := run(cmd.OutOrStdout(), logger, args[0], opts); err != nil {
				level.Error(logger).Log("msg", "failed to read object", "file", args[0], "err", err)
				return err
			}
			return nil
		},
	}

	// -h is the file header, as in readelf, so help is long-only.
	cmd.Flags().Bool("help", false, "help for go-readelf")

	cmd.Flags().BoolVarP(&opts.header, "file-header", "h", false, "display the ELF file header")
	cmd.Flags().BoolVarP(&opts.progHeaders, "program-headers", "l", false, "display the program headers")
	cmd.Flags().BoolVarP(&opts.sections, "section-headers", "S", false, "display the section headers")
	cmd.Flags().BoolVarP(&opts.symbols, "syms", "s", false, "display the symbol table")
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "equivalent to -h -l -S -s")
	cmd.Flags().StringVarP(&opts.hexDump, "hex-dump", "x", "", "dump the contents of a section, by name or index")
	cmd.Flags().StringVar(&opts.section, "section", "", "display a single section header, by name or index")
	cmd.Flags().StringVar(&opts.symbol, "symbol", "", "display a single symbol by name")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "display the symbol covering a hexadecimal address")
	cmd.Flags().BoolVar(&opts.mmap, "mmap", false, "read the file through a memory mapping")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table, yaml or json")
	cmd.Flags().StringVar(&opts.logLevel, "log.level", "warn", "log level: debug, info, warn or error")
	cmd.Flags().StringVar(&opts.logFormat, "log.format", "logfmt", "log format: logfmt or json")
	return cmd
}

func newLogger(w io.Writer, lvl, format string) (log.Logger, error) {
	var allow level.Option
	switch lvl {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		return nil, fmt.Errorf("unrecognized log level %q", lvl)
	}

	var logger log.Logger
	switch format {
	case "logfmt":
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}

	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC), nil
}

func run(w io.Writer, logger log.Logger, path string, opts options) (err error) {
	if !opts.any() {
		return errNoDisplay
	}
	render, err := renderer(opts.output)
	if err != nil {
		return err
	}

	open := readelf.Open
	if opts.mmap {
		open = readelf.OpenMapped
	}
	d, err := open(path, readelf.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, d.Close())
	}()

	rep, err := collect(d, path, opts)
	if err != nil {
		return err
	}
	return render(w, rep)
}

// collect runs the phases the options ask for, in dependency order.
func collect(d *readelf.Decoder, path string, opts options) (*report, error) {
	hdr, err := d.DecodeHeader()
	if err != nil {
		return nil, err
	}
	rep := &report{File: path, hdr: hdr}
	if opts.header {
		v := newHeaderView(hdr)
		rep.Header = &v
	}

	if opts.progHeaders {
		if rep.ProgramHeaders, err = d.DecodeProgramHeaders(); err != nil {
			return nil, err
		}
	}

	if opts.needSections() {
		secs, err := d.DecodeSectionHeaders()
		if err != nil {
			return nil, err
		}
		if opts.sections {
			rep.Sections = secs
		}
	}

	if opts.needSymbols() {
		syms, err := d.DecodeSymbols()
		if err != nil {
			return nil, err
		}
		if opts.symbols {
			rep.Symbols = &symbolTable{Section: symtabName(d), Entries: syms}
		}
	}

	if opts.section != "" {
		s, err := lookupSection(d, opts.section)
		if err != nil {
			return nil, err
		}
		rep.Section = &s
	}

	if opts.symbol != "" {
		s, err := d.SymbolByName(opts.symbol)
		if err != nil {
			return nil, err
		}
		rep.Symbol = &s
	}

	if opts.addr != "" {
		addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(opts.addr), "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", opts.addr, err)
		}
		s, err := d.SymbolAt(addr)
		if err != nil {
			return nil, err
		}
		rep.SymbolAt = &symbolAt{Addr: addr, Symbol: s}
	}

	if opts.hexDump != "" {
		s, err := lookupSection(d, opts.hexDump)
		if err != nil {
			return nil, err
		}
		data, err := d.SectionData(s.Index)
		if err != nil {
			return nil, err
		}
		rep.HexDump = &hexDump{Section: s.Name, Index: s.Index, Addr: s.Addr, Data: data}
	}

	return rep, nil
}

// lookupSection accepts either a section index or a section name.
func lookupSection(d *readelf.Decoder, ref string) (readelf.SectionHeader, error) {
	if i, err := strconv.Atoi(ref); err == nil {
		return d.Section(i)
	}
	return d.SectionByName(ref)
}

func symtabName(d *readelf.Decoder) string {
	for _, s := range d.SectionHeaders() {
		if s.Type == readelf.SectionSymtab {
			return s.Name
		}
	}
	return ".symtab"
}
