package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes that change over the life of the
// process, such as the lifecycle state or the tracking state. It is called
// once per emitted record.
type ContextProvider func() []slog.Attr

// MultiHandler tees each record to every sink enabled for its level.
type MultiHandler struct {
	sinks []slog.Handler
}

// NewMultiHandler drops nil sinks.
func NewMultiHandler(sinks ...slog.Handler) *MultiHandler {
	m := &MultiHandler{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range m.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers to all sinks even when one fails; the failures are joined.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (m *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	out := &MultiHandler{sinks: make([]slog.Handler, 0, len(m.sinks))}
	for _, s := range m.sinks {
		out.sinks = append(out.sinks, fn(s))
	}
	return out
}

// ContextHandler appends the provider's attributes to every record before
// passing it on. Attributes with an empty key are skipped.
type ContextHandler struct {
	next    slog.Handler
	provide ContextProvider
}

func NewContextHandler(next slog.Handler, provide ContextProvider) *ContextHandler {
	return &ContextHandler{next: next, provide: provide}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provide != nil {
		for _, a := range h.provide() {
			if a.Key != "" {
				r.AddAttrs(a)
			}
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs), provide: h.provide}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{next: h.next.WithGroup(name), provide: h.provide}
}
