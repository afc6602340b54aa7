//go:build integration

package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/karalabe/hid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/chirp/soil"
)

// Requires an MCP2221 bridge with a Chirp sensor on the default address.
func TestMCP2221_ChirpHardware(t *testing.T) {
	if len(hid.Enumerate(VendorID, ProductID)) == 0 {
		t.Skip("no MCP2221 bridge attached")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	bridge := NewMCP2221()
	require.NoError(t, bridge.Init())
	require.NoError(t, bridge.SetSpeed(ctx, 100_000))

	s := soil.NewChirp(bridge)
	require.NoError(t, s.Reset(ctx))
	time.Sleep(100 * time.Millisecond)

	v, err := s.ReadVersion(ctx)
	require.NoError(t, err)
	t.Logf("firmware %s", v)

	m, err := soil.Measure(ctx, s, soil.WithPolling(100*time.Millisecond))
	require.NoError(t, err)
	t.Logf("measurement %+v", m)
	assert.Greater(t, m.Capacitance, uint16(0))
	assert.InDelta(t, 20, m.Temperature, 40)
}
