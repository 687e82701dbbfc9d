package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"

	"gamemem/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options controls the layout of a dump
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// GroupSize defines the grouping of bytes (usually 1, 2, 4, or 8)
	GroupSize int

	ShowASCII bool

	// StartAddress is printed for the first byte
	StartAddress process.ProcessMemoryAddress

	// PointerWidth sizes the address column and the pointer previews
	PointerWidth process.PointerWidth

	// Color enables ANSI colors, leave it off when the output is not a terminal
	Color bool

	OffsetColor       coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ASCIIColor        coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode
	ZeroColor         coloransi.ColorCode
	PointerColor      coloransi.ColorCode

	// Highlight is a byte pattern to mark wherever it occurs
	Highlight           []byte
	HighlightColor      coloransi.ColorCode
	HighlightBackground coloransi.ColorCode

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// IsPointer enables the pointer preview column. Every aligned pointer sized
	// value on a line for which it returns true is listed after the ASCII column.
	IsPointer func(process.ProcessMemoryAddress) bool
}

// DefaultOptions returns the options used by the CLI
func DefaultOptions() Options {
	return Options{
		BytesPerLine:        16,
		GroupSize:           1,
		ShowASCII:           true,
		PointerWidth:        process.PointerWidth64,
		OffsetColor:         coloransi.Cyan,
		HexColor:            coloransi.Green,
		ASCIIColor:          coloransi.White,
		NonPrintableColor:   coloransi.Red,
		ZeroColor:           coloransi.BrightBlack,
		PointerColor:        coloransi.Yellow,
		HighlightColor:      coloransi.Yellow,
		HighlightBackground: coloransi.Black,
	}
}

// Dump creates a hex dump of data
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of data to writer
func DumpToWriter(writer io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.GroupSize <= 0 {
		options.GroupSize = 1
	}
	if options.PointerWidth != process.PointerWidth32 {
		options.PointerWidth = process.PointerWidth64
	}

	d := dumper{w: writer, opts: options, marks: highlightMask(data, options.Highlight)}

	lineCount := 0
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lineCount >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			break
		}

		end := offset + options.BytesPerLine
		if end > len(data) {
			end = len(data)
		}

		d.line(data, offset, end)
		lineCount++
	}
}

type dumper struct {
	w     io.Writer
	opts  Options
	marks []bool
}

func (d *dumper) fg(color coloransi.ColorCode, s string) string {
	if !d.opts.Color {
		return s
	}
	return coloransi.Foreground(color, s)
}

func (d *dumper) highlight(s string) string {
	if !d.opts.Color {
		return s
	}
	return coloransi.Color(d.opts.HighlightColor, d.opts.HighlightBackground, s)
}

// line formats data[start:end]. Highlights are matched over the whole buffer so
// a pattern crossing a line break is still marked.
func (d *dumper) line(data []byte, start, end int) {
	opts := d.opts
	lineData := data[start:end]
	marks := d.marks[start:end]

	addr := uint64(opts.StartAddress) + uint64(start)
	digits := 2 * int(opts.PointerWidth)
	fmt.Fprint(d.w, d.fg(opts.OffsetColor, fmt.Sprintf("%0*X", digits, addr)), "  ")

	hexParts := d.hexGroups(lineData, marks)

	// divider only once the line reaches past half of BytesPerLine
	useSplit := opts.BytesPerLine >= 8 && len(lineData) > opts.BytesPerLine/2

	groupsPerLine := opts.BytesPerLine / opts.GroupSize
	if groupsPerLine == 0 {
		groupsPerLine = 1
	}
	leftGroups := groupsPerLine / 2
	if leftGroups > len(hexParts) {
		leftGroups = len(hexParts)
	}

	if useSplit && leftGroups > 0 && leftGroups < len(hexParts) {
		fmt.Fprint(d.w, strings.Join(hexParts[:leftGroups], " "), " | ", strings.Join(hexParts[leftGroups:], " "))
	} else {
		fmt.Fprint(d.w, strings.Join(hexParts, " "))
	}

	// pad short lines so the ASCII column stays aligned
	if opts.BytesPerLine > len(lineData) {
		fullGroups := (opts.BytesPerLine + opts.GroupSize - 1) / opts.GroupSize
		curGroups := (len(lineData) + opts.GroupSize - 1) / opts.GroupSize
		missingBytes := opts.BytesPerLine - len(lineData)

		deltaSpaces := (fullGroups - 1) - maxInt(0, curGroups-1)

		// " | " replaces one separating space
		pipeFull := 0
		if opts.BytesPerLine >= 8 {
			pipeFull = 2
		}
		pipeCur := 0
		if useSplit {
			pipeCur = 2
		}

		if pad := missingBytes*2 + deltaSpaces + (pipeFull - pipeCur); pad > 0 {
			fmt.Fprint(d.w, strings.Repeat(" ", pad))
		}
	}

	if opts.ShowASCII {
		fmt.Fprint(d.w, " | ")
		mid := opts.BytesPerLine / 2
		if opts.BytesPerLine >= 8 && len(lineData) > mid {
			d.ascii(lineData[:mid], marks[:mid])
			fmt.Fprint(d.w, " ")
			d.ascii(lineData[mid:], marks[mid:])
		} else {
			d.ascii(lineData, marks)
		}
	}

	if opts.IsPointer != nil {
		if ptrs := pointersIn(lineData, opts.PointerWidth, opts.IsPointer); len(ptrs) > 0 {
			fmt.Fprint(d.w, " |")
			for _, p := range ptrs {
				fmt.Fprint(d.w, " ", d.fg(opts.PointerColor, p.ToString()))
			}
		}
	}

	fmt.Fprintln(d.w)
}

func (d *dumper) ascii(data []byte, marks []bool) {
	for i, b := range data {
		c := rune(b)
		switch {
		case marks[i] && unicode.IsPrint(c) && b < 0x80:
			fmt.Fprint(d.w, d.highlight(string(c)))
		case marks[i]:
			fmt.Fprint(d.w, d.highlight("."))
		case b == 0:
			fmt.Fprint(d.w, d.fg(d.opts.ZeroColor, "."))
		case b >= 0x80 || !unicode.IsPrint(c):
			fmt.Fprint(d.w, d.fg(d.opts.NonPrintableColor, "."))
		default:
			fmt.Fprint(d.w, d.fg(d.opts.ASCIIColor, string(c)))
		}
	}
}

func (d *dumper) hexGroups(data []byte, marks []bool) []string {
	var result []string
	var group []string

	for i, b := range data {
		hexValue := fmt.Sprintf("%02x", b)

		switch {
		case marks[i]:
			group = append(group, d.highlight(hexValue))
		case b == 0:
			group = append(group, d.fg(d.opts.ZeroColor, hexValue))
		default:
			group = append(group, d.fg(d.opts.HexColor, hexValue))
		}

		if (i+1)%d.opts.GroupSize == 0 || i == len(data)-1 {
			result = append(result, strings.Join(group, ""))
			group = nil
		}
	}

	return result
}

// highlightMask marks every byte covered by an occurrence of pattern
func highlightMask(data, pattern []byte) []bool {
	mask := make([]bool, len(data))
	if len(pattern) == 0 {
		return mask
	}
	for i := 0; i+len(pattern) <= len(data); i++ {
		if bytes.Equal(data[i:i+len(pattern)], pattern) {
			for j := i; j < i+len(pattern); j++ {
				mask[j] = true
			}
		}
	}
	return mask
}

// pointersIn decodes every aligned pointer sized value in data and keeps the valid ones
func pointersIn(data []byte, width process.PointerWidth, valid func(process.ProcessMemoryAddress) bool) []process.ProcessMemoryAddress {
	var out []process.ProcessMemoryAddress
	step := int(width)
	for i := 0; i+step <= len(data); i += step {
		var p process.ProcessMemoryAddress
		if width == process.PointerWidth32 {
			p = process.ProcessMemoryAddress(binary.LittleEndian.Uint32(data[i:]))
		} else {
			p = process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data[i:]))
		}
		if p != 0 && valid(p) {
			out = append(out, p)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ModulePointers accepts pointers into mod, the usual shape of a static pointer
// chain's first hops
func ModulePointers(mod process.Module) func(process.ProcessMemoryAddress) bool {
	return mod.Contains
}

// PlausiblePointers accepts pointers inside the user address range for width,
// skipping the null page
func PlausiblePointers(width process.PointerWidth) func(process.ProcessMemoryAddress) bool {
	limit := width.MaxPlausibleAddress()
	return func(p process.ProcessMemoryAddress) bool {
		return p >= 0x10000 && p <= limit
	}
}
