package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "15:04:05.000"

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

type prettyOptions struct {
	addSource bool
	color     bool
}

// prettyHandler renders one header line per record followed by an indented
// list of the most useful fields.
type prettyHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	level  *slog.LevelVar
	opts   prettyOptions
	attrs  []slog.Attr
	groups []string
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, opts prettyOptions) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, opts: opts}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// subject is the routing information lifted out of a record's fields.
type subject struct {
	component  string
	stage      string
	segment    int
	hasSegment bool
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	subj, fields := splitSubject(dedupeKVsByKey(kvs))

	var buf bytes.Buffer
	buf.Grow(256 + len(fields)*32)
	h.writeHeader(&buf, record, subj)

	debug := record.Level < slog.LevelInfo
	limit := infoAttrLimit
	if debug {
		limit = 0
	}
	selected, hidden := selectInfoFields(fields, limit, debug)
	h.writeFields(&buf, selected, hidden)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func splitSubject(kvs []kv) (subject, []kv) {
	var subj subject
	fields := make([]kv, 0, len(kvs))
	for _, kv := range kvs {
		switch kv.key {
		case FieldComponent:
			subj.component = attrString(kv.value)
			continue
		case FieldStage:
			subj.stage = attrString(kv.value)
		case FieldSegment:
			if kv.value.Kind() == slog.KindInt64 {
				subj.segment = int(kv.value.Int64())
				subj.hasSegment = true
			}
		}
		fields = append(fields, kv)
	}
	return subj, fields
}

func (h *prettyHandler) writeHeader(buf *bytes.Buffer, record slog.Record, subj subject) {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.paint(buf, ansiDim, ts.Format(consoleTimeLayout))
	buf.WriteByte(' ')
	h.paint(buf, levelColor(record.Level), levelLabel(record.Level))
	if subj.component != "" {
		buf.WriteString(" [")
		buf.WriteString(subj.component)
		buf.WriteByte(']')
	}
	if s := FormatSubject(subj.stage, subj.segment, subj.hasSegment); s != "" {
		buf.WriteByte(' ')
		h.paint(buf, ansiCyan, s)
	}
	buf.WriteString(" - ")
	if message := strings.TrimSpace(record.Message); message != "" {
		buf.WriteString(message)
	} else {
		buf.WriteString("(no message)")
	}
	if h.opts.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}
	buf.WriteByte('\n')
}

func (h *prettyHandler) writeFields(buf *bytes.Buffer, fields []infoField, hidden int) {
	for _, field := range fields {
		buf.WriteString("    - ")
		buf.WriteString(field.label)
		buf.WriteString(": ")
		buf.WriteString(field.value)
		buf.WriteByte('\n')
	}
	if hidden == 0 {
		return
	}
	noun := " more fields"
	if hidden == 1 {
		noun = " more field"
	}
	h.paint(buf, ansiDim, "    + "+strconv.Itoa(hidden)+noun+" hidden")
	buf.WriteByte('\n')
}

func (h *prettyHandler) paint(buf *bytes.Buffer, code, text string) {
	if !h.opts.color || code == "" {
		buf.WriteString(text)
		return
	}
	buf.WriteString(code)
	buf.WriteString(text)
	buf.WriteString(ansiReset)
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:     h.mu,
		writer: h.writer,
		level:  h.level,
		opts:   h.opts,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of each key with its last value,
// so context fields re-added by WithContext do not print twice.
func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string{}, prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string{}, prefix...), key), ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ""
	default:
		return ansiDim
	}
}
