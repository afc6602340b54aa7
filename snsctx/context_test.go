package snsctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbose(t *testing.T) {
	assert.False(t, IsVerbose(context.Background()))
	assert.True(t, IsVerbose(SetVerbose(context.Background(), true)))
	assert.False(t, IsVerbose(SetVerbose(context.Background(), false)))
}

func TestDumpFrame(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	DumpFrame(context.Background(), "quiet", []byte{0x01})
	assert.Empty(t, buf.String())

	DumpFrame(SetVerbose(context.Background(), true), "i2c write", []byte{0x01, 0x21}, "addr", "0x20")
	assert.Contains(t, buf.String(), "msg=\"i2c write\"")
	assert.Contains(t, buf.String(), "addr=0x20")
	assert.Contains(t, buf.String(), "frame=0121")
}
