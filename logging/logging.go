// Package logging carries a request scoped logrus entry through a context.
package logging

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type ctxKey struct{}

// WithLogger returns a copy of ctx carrying entry.
func WithLogger(ctx context.Context, entry *log.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry stored in ctx, or one bound to the standard
// logger when there is none.
func FromContext(ctx context.Context) *log.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*log.Entry); ok && entry != nil {
			return entry
		}
	}
	return log.NewEntry(log.StandardLogger())
}
