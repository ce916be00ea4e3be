package main

import (
	"bytes"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testdata(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestFileHeader(t *testing.T) {
	out, _, err := execute(t, "-h", testdata("tiny64"))
	require.NoError(t, err)
	assert.Contains(t, out, "ELF Header:")
	assert.Contains(t, out, "7f 45 4c 46")
	assert.Contains(t, out, "ELF64")
	assert.Contains(t, out, "EXEC (Executable file)")
	assert.Contains(t, out, "EM_X86_64")
	assert.Contains(t, out, "0x401000")
	assert.NotContains(t, out, "Section Headers")
}

func TestCombinedFlags(t *testing.T) {
	out, _, err := execute(t, "-hSl", testdata("tiny32"))
	require.NoError(t, err)
	assert.Contains(t, out, "ELF32")
	assert.Contains(t, out, "Program Headers:")
	assert.Contains(t, out, "Unknown(0x6474e551)")
	assert.Contains(t, out, "There are 7 section headers")
	assert.Contains(t, out, ".shstrtab")
	assert.Contains(t, out, "Key to Flags:")
	assert.NotContains(t, out, "Symbol table")
}

func TestAll(t *testing.T) {
	for _, mmap := range []bool{false, true} {
		args := []string{"-a", testdata("hello64.o")}
		if mmap {
			args = append(args, "--mmap")
		}
		out, _, err := execute(t, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "REL (Relocatable file)")
		assert.Contains(t, out, "There are no program headers in this file.")
		assert.Contains(t, out, ".rela.text")
		assert.Contains(t, out, "Symbol table '.symtab' contains 9 entries:")
		assert.Contains(t, out, "main")
		assert.Contains(t, out, "UND")
		assert.Contains(t, out, "Unknown(0x4)")
	}
}

func TestLookups(t *testing.T) {
	out, _, err := execute(t, "--section", ".text", "--symbol", "value", "--addr", "0x401001", testdata("tiny64"))
	require.NoError(t, err)
	assert.Contains(t, out, "Section [1] .text:")
	assert.Contains(t, out, "Symbol value:")
	assert.Contains(t, out, "Symbol at 0x401001:")
	assert.Contains(t, out, "_start")

	out, _, err = execute(t, "--section", "6", testdata("tiny64"))
	require.NoError(t, err)
	assert.Contains(t, out, "Section [6] .shstrtab:")
}

func TestHexDump(t *testing.T) {
	out, _, err := execute(t, "-x", ".comment", testdata("hello32.o"))
	require.NoError(t, err)
	assert.Contains(t, out, "Hex dump of section '.comment':")
	assert.Contains(t, out, "GCC: (")

	out, _, err = execute(t, "-x", ".bss", testdata("hello32.o"))
	require.NoError(t, err)
	assert.Contains(t, out, "has no data to dump")
}

func TestYAMLOutput(t *testing.T) {
	out, _, err := execute(t, "-o", "yaml", "-h", "-s", testdata("tiny64"))
	require.NoError(t, err)

	var rep struct {
		File   string `yaml:"file"`
		Header struct {
			Class   string `yaml:"class"`
			Type    string `yaml:"type"`
			Machine string `yaml:"machine"`
			Entry   uint64 `yaml:"entry"`
		} `yaml:"header"`
		Symbols struct {
			Section string `yaml:"section"`
			Entries []struct {
				Name string `yaml:"name"`
				Bind string `yaml:"bind"`
				Type string `yaml:"type"`
			} `yaml:"entries"`
		} `yaml:"symbols"`
		Sections []any `yaml:"sections"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "ELF64", rep.Header.Class)
	assert.Equal(t, "EM_X86_64", rep.Header.Machine)
	assert.Equal(t, uint64(0x401000), rep.Header.Entry)
	assert.Equal(t, ".symtab", rep.Symbols.Section)
	require.Len(t, rep.Symbols.Entries, 7)
	assert.Equal(t, "_start", rep.Symbols.Entries[2].Name)
	assert.Equal(t, "GLOBAL", rep.Symbols.Entries[2].Bind)
	assert.Equal(t, "FUNC", rep.Symbols.Entries[2].Type)
	assert.Empty(t, rep.Sections)
}

func TestJSONOutput(t *testing.T) {
	out, _, err := execute(t, "-o", "json", "-l", "-S", "-x", ".data", testdata("tiny32"))
	require.NoError(t, err)

	var rep struct {
		ProgramHeaders []struct {
			Type  string `json:"type"`
			Flags string `json:"flags"`
			Vaddr uint64 `json:"vaddr"`
		} `json:"program_headers"`
		Sections []struct {
			Name  string `json:"name"`
			Type  string `json:"type"`
			Flags string `json:"flags"`
		} `json:"sections"`
		HexDump struct {
			Section string `json:"section"`
			Data    string `json:"data"`
		} `json:"hex_dump"`
	}
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.ProgramHeaders, 4)
	assert.Equal(t, "LOAD", rep.ProgramHeaders[1].Type)
	assert.Equal(t, "RE", rep.ProgramHeaders[1].Flags)
	assert.Equal(t, uint64(0x8049000), rep.ProgramHeaders[1].Vaddr)

	require.Len(t, rep.Sections, 7)
	assert.Equal(t, ".text", rep.Sections[1].Name)
	assert.Equal(t, "PROGBITS", rep.Sections[1].Type)
	assert.Equal(t, "ALLOC|EXECINSTR", rep.Sections[1].Flags)

	assert.Equal(t, ".data", rep.HexDump.Section)
	assert.Len(t, rep.HexDump.Data, 8)
}

func TestErrors(t *testing.T) {
	tt := []struct {
		name string
		args []string
		want string
	}{
		{"no display flag", []string{testdata("tiny64")}, "at least one of"},
		{"missing file", []string{"-h", testdata("nope")}, "no such file"},
		{"not elf", []string{"-h", testdata("hello.c")}, "bad magic"},
		{"unknown section", []string{"--section", ".nope", testdata("tiny64")}, "not found"},
		{"section index", []string{"-x", "99", testdata("tiny64")}, "index out of range"},
		{"bad address", []string{"--addr", "zz", testdata("tiny64")}, "invalid address"},
		{"bad output", []string{"-h", "-o", "xml", testdata("tiny64")}, "unrecognized output format"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, stderr, err := execute(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.Contains(t, stderr, "level=error")
		})
	}
}

func TestBadLogLevel(t *testing.T) {
	_, stderr, err := execute(t, "-h", "--log.level", "loud", testdata("tiny64"))
	require.Error(t, err)
	assert.Contains(t, stderr, "unrecognized log level")
}

func TestDebugLogging(t *testing.T) {
	_, stderr, err := execute(t, "-s", "--log.level", "debug", "--log.format", "json", testdata("tiny64"))
	require.NoError(t, err)
	assert.Contains(t, stderr, `"msg":"decoded symbols"`)
	assert.Contains(t, stderr, `"level":"debug"`)
}

func TestArgs(t *testing.T) {
	_, _, err := execute(t, "-h")
	require.Error(t, err)

	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--file-header")
}
