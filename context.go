package fedtracez

import (
	"context"
)

// extensionKeyType is a private type for context keys to avoid collisions.
type extensionKeyType string

const (
	extensionKey extensionKeyType = "fedtracez"
)

// NewContext returns a context carrying x.
func NewContext(parent context.Context, x *Extension) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, extensionKey, x)
}

// FromContext extracts the session's extension from a context.
// Returns nil, a disabled session, if none is present.
func FromContext(ctx context.Context) *Extension {
	if ctx == nil {
		return nil
	}
	if x, ok := ctx.Value(extensionKey).(*Extension); ok {
		return x
	}
	return nil
}

// ResolveField runs fn as the resolver of the field at path, recording its
// timing and any error it returns against the session found in ctx.
func ResolveField(ctx context.Context, path Path, parentType, returnType, fieldName string, fn func(context.Context) (any, error)) (any, error) {
	finish := FromContext(ctx).WillResolveField(path, parentType, returnType, fieldName)
	result, err := fn(ctx)
	finish(err, result)
	return result, err
}
