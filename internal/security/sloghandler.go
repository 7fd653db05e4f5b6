package security

import (
	"context"
	"log/slog"
)

// RedactingHandler is a slog.Handler middleware that scrubs secrets from
// every message and string attribute before the wrapped handler sees
// them. Wrapping the root handler means call sites never have to think
// about what is safe to log.
type RedactingHandler struct {
	next     slog.Handler
	redactor *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps next so that redactor runs over everything
// it is handed.
func NewRedactingHandler(next slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, redactor: redactor}
}

// Enabled delegates to the wrapped handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle scrubs the record's message and attributes, then hands the
// clean record to the wrapped handler.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.scrub(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

// WithAttrs scrubs the attributes before folding them into the wrapped
// handler, so pre-bound attrs are covered too.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.scrub(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(clean), redactor: h.redactor}
}

// WithGroup delegates grouping to the wrapped handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}

// scrub redacts string content in an attribute, descending into groups.
func (h *RedactingHandler) scrub(a slog.Attr) slog.Attr {
	// Resolve first: LogValuer, error and Stringer values only expose
	// their secrets once rendered.
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = h.scrub(m)
		}
		a.Value = slog.GroupValue(clean...)
	case slog.KindAny:
		rendered := a.Value.String()
		if scrubbed := h.redactor.Redact(rendered); scrubbed != rendered {
			a.Value = slog.StringValue(scrubbed)
		}
	}
	return a
}
