package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// console writes human-facing command output, coloured only on a terminal.
type console struct {
	out   io.Writer
	color bool
}

func newConsole(w io.Writer) *console {
	return &console{out: w, color: isTerminal(w) && os.Getenv("NO_COLOR") == ""}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type checkKind int

const (
	checkInfo checkKind = iota
	checkOK
	checkError
)

var checkLabels = map[checkKind]struct {
	label  string
	colors text.Colors
}{
	checkInfo:  {"INFO", text.Colors{text.FgBlue}},
	checkOK:    {"OK", text.Colors{text.FgGreen}},
	checkError: {"ERROR", text.Colors{text.FgRed}},
}

const checkLabelWidth = 24

func (c *console) paint(colors text.Colors, s string) string {
	if !c.color {
		return s
	}
	return colors.Sprint(s)
}

func (c *console) section(title string) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	fmt.Fprintln(c.out, c.paint(text.Colors{text.FgBlue, text.Bold}, line))
}

// check prints one "label: [KIND] detail" line.
func (c *console) check(label string, kind checkKind, detail string) {
	meta := checkLabels[kind]
	status := "[" + meta.label + "]"
	if detail != "" {
		status += " " + detail
	}
	fmt.Fprintf(c.out, "  %-*s %s\n", checkLabelWidth, label+":", c.paint(meta.colors, status))
}

// state colours a stage or run state green when ok and yellow otherwise.
func (c *console) state(label string, ok bool) string {
	if ok {
		return c.paint(text.Colors{text.FgGreen}, label)
	}
	return c.paint(text.Colors{text.FgYellow}, label)
}

// table renders rows under headers. Columns listed in right are
// right-aligned; short rows are padded.
func (c *console) table(headers []string, rows [][]string, right ...int) {
	if len(headers) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if c.color {
		tw.Style().Color.Header = text.Colors{text.Bold}
	}

	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, len(headers))
	for i, h := range headers {
		header[i] = h
		align := text.AlignLeft
		if slices.Contains(right, i) {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	fmt.Fprintln(c.out, tw.Render())
}
