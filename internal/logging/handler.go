package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Palette for colorized records. Handlers on non-terminal writers never
// touch these.
var (
	paletteTime    = color.New(color.FgHiBlack)
	paletteKey     = color.New(color.FgCyan)
	paletteTrace   = color.New(color.FgHiBlack)
	paletteDebug   = color.New(color.FgMagenta)
	paletteInfo    = color.New(color.FgCyan)
	paletteSuccess = color.New(color.FgGreen, color.Bold)
	paletteWarn    = color.New(color.FgYellow)
	paletteError   = color.New(color.FgRed, color.Bold)
)

// Handler renders records as single text lines meant for a terminal,
// with colors when the writer supports them. File and pipe output goes
// through NewJSONHandler instead.
type Handler struct {
	opts     slog.HandlerOptions
	out      io.Writer
	mu       *sync.Mutex
	colorize bool
	attrs    []slog.Attr
	groups   []string
}

// NewHandler creates a text handler writing to out.
func NewHandler(out io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		opts:     *opts,
		out:      out,
		mu:       &sync.Mutex{},
		colorize: SupportsColor(out),
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

// Handle formats r into one line and writes it under the handler lock.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	if !r.Time.IsZero() {
		buf.WriteString(h.paint(paletteTime, r.Time.Format(time.Kitchen)))
		buf.WriteByte(' ')
	}

	// Pad before painting so escape codes do not skew the column.
	level := fmt.Sprintf("%-7s", LevelName(r.Level))
	buf.WriteString(h.paint(levelPalette(r.Level), level))
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, a, a.Key)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, a, h.qualify(a.Key))
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *Handler) writeAttr(buf *bytes.Buffer, a slog.Attr, key string) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(buf, " %s=%v", h.paint(paletteKey, key), a.Value.Any())
}

// qualify prefixes key with the open group path.
func (h *Handler) qualify(key string) string {
	if len(h.groups) == 0 {
		return key
	}
	return strings.Join(h.groups, ".") + "." + key
}

// paint colorizes s when the writer is a capable terminal.
func (h *Handler) paint(c *color.Color, s string) string {
	if !h.colorize {
		return s
	}
	return c.Sprint(s)
}

func levelPalette(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return paletteError
	case l >= slog.LevelWarn:
		return paletteWarn
	case l >= LevelSuccess:
		return paletteSuccess
	case l >= slog.LevelInfo:
		return paletteInfo
	case l >= slog.LevelDebug:
		return paletteDebug
	default:
		return paletteTrace
	}
}

// WithAttrs returns a handler that prepends attrs to every record. Keys
// are qualified by the groups open at attach time.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	// Clip forces append to reallocate, so siblings never share a
	// backing array.
	next.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		if a.Equal(slog.Attr{}) {
			continue
		}
		a.Key = h.qualify(a.Key)
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup returns a handler that qualifies attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}
