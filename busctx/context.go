// Package busctx carries per-call bus options through a context.
package busctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexDevice
)

// IsVerbose reports whether transfers should be hex-dumped to the debug log.
func IsVerbose(ctx context.Context) bool {
	val := ctx.Value(ctxIndexVerbose)
	if val == nil {
		return false
	}
	return val.(bool)
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// DeviceName returns the device label set with SetDeviceName, if any.
func DeviceName(ctx context.Context) string {
	val, ok := ctx.Value(ctxIndexDevice).(string)
	if !ok {
		return ""
	}
	return val
}

// SetDeviceName labels log lines produced by transfers made with ctx.
func SetDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxIndexDevice, name)
}
