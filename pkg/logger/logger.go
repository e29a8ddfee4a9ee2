package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type contextKey string

const requestIDKey contextKey = "request_id"

func ContextWithRequestID(ctx context.Context, requestID int64) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) (int64, bool) {
	requestID, ok := ctx.Value(requestIDKey).(int64)
	return requestID, ok
}

// Err is the conventional attribute for error values; the handler renders
// err-keyed attributes in red.
func Err(err error) slog.Attr {
	return slog.Any("err", err)
}

type Options struct {
	// Level reports the minimum level to log; lower levels are discarded.
	Level slog.Leveler

	// TimeFormat is the record timestamp format.
	TimeFormat string

	// NoColor strips ANSI sequences from the output.
	NoColor bool
}

var DefaultOptions = &Options{
	Level:      slog.LevelDebug,
	TimeFormat: time.DateTime,
}

// Handler is a human-oriented slog.Handler: colored level badges, the
// request ID from the context, and key=value attributes on one line.
type Handler struct {
	groups []string
	attrs  []slog.Attr

	opts Options

	mu  *sync.Mutex
	out io.Writer
}

// NewHandler creates a Handler writing to out. A nil opts uses [DefaultOptions].
func NewHandler(out io.Writer, opts *Options) *Handler {
	h := &Handler{out: out, mu: &sync.Mutex{}}
	if opts == nil {
		h.opts = *DefaultOptions
	} else {
		h.opts = *opts
	}
	return h
}

func (h *Handler) clone() *Handler {
	return &Handler{
		groups: h.groups,
		attrs:  h.attrs,
		opts:   h.opts,
		mu:     h.mu,
		out:    h.out,
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	bf := getBuffer()
	defer freeBuffer(bf)

	if !r.Time.IsZero() {
		fmt.Fprint(bf, color.New(color.Faint).Sprint(r.Time.Format(h.opts.TimeFormat)), " ")
	}

	if requestID, ok := RequestIDFromContext(ctx); ok {
		fmt.Fprint(bf, color.New(color.FgMagenta).Sprintf("%d ", requestID))
	}

	switch r.Level {
	case slog.LevelDebug:
		fmt.Fprint(bf, color.New(color.BgCyan, color.FgHiWhite).Sprint("DEBUG"))
	case slog.LevelInfo:
		fmt.Fprint(bf, color.New(color.BgGreen, color.FgHiWhite).Sprint("INFO "))
	case slog.LevelWarn:
		fmt.Fprint(bf, color.New(color.BgYellow, color.FgHiWhite).Sprint("WARN "))
	case slog.LevelError:
		fmt.Fprint(bf, color.New(color.BgRed, color.FgHiWhite).Sprint("ERROR"))
	}
	fmt.Fprint(bf, " ", r.Message)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	prefix := strings.Join(h.groups, ".")
	if prefix != "" {
		prefix += "."
	}

	for _, a := range attrs {
		key := prefix + a.Key
		if strings.Contains(a.Key, "err") {
			fmt.Fprint(bf, " ", color.New(color.FgRed).Sprintf("%s=", key), a.Value.String())
		} else {
			fmt.Fprint(bf, " ", color.New(color.FgCyan).Sprintf("%s=", key), a.Value.String())
		}
	}

	fmt.Fprint(bf, "\n")

	if h.opts.NoColor {
		stripANSI(bf)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.Copy(h.out, bf)
	return err
}

func (h *Handler) WithGroup(name string) slog.Handler {
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	h2.attrs = append(h2.attrs, attrs...)
	return h2
}

var bufPool = sync.Pool{
	New: func() any { return &bytes.Buffer{} },
}

func getBuffer() *bytes.Buffer {
	bf := bufPool.Get().(*bytes.Buffer)
	bf.Reset()
	return bf
}

func freeBuffer(bf *bytes.Buffer) {
	bufPool.Put(bf)
}

var ansiRe = regexp.MustCompile("[\u001B\u009B][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?\u0007)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))")

func stripANSI(bf *bytes.Buffer) {
	cleaned := ansiRe.ReplaceAll(bf.Bytes(), nil)
	bf.Reset()
	bf.Write(cleaned)
}
