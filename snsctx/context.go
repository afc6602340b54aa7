// Package snsctx carries per-call options for bus transports in the context.
package snsctx

import (
	"context"
	"encoding/hex"
	"log/slog"
)

type ctxIndex int

const ctxIndexVerbose ctxIndex = iota

// IsVerbose reports whether transports should dump raw frames for this call.
func IsVerbose(ctx context.Context) bool {
	val, ok := ctx.Value(ctxIndexVerbose).(bool)
	return ok && val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// DumpFrame logs a raw bus frame at debug level when ctx is verbose.
func DumpFrame(ctx context.Context, msg string, frame []byte, args ...any) {
	if !IsVerbose(ctx) {
		return
	}
	slog.DebugContext(ctx, msg, append(args, "frame", hex.EncodeToString(frame))...)
}
