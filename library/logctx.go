package library

import (
	"context"

	"go.uber.org/zap"
)

type logFieldsKey struct{}

// WithLogFields returns a context whose fields are attached to every entry
// the manager logs for calls made with it.
func WithLogFields(ctx context.Context, fields ...zap.Field) context.Context {
	prev, _ := ctx.Value(logFieldsKey{}).([]zap.Field)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, logFieldsKey{}, merged)
}

// LogFields returns the fields stored by WithLogFields.
func LogFields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(logFieldsKey{}).([]zap.Field)
	return fields
}
