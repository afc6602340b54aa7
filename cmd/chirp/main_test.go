package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/chirp/cmd/chirp/console"
	"github.com/mklimuk/chirp/soil"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	console.SetOutput(&out, &errOut)
	t.Cleanup(func() {
		console.SetOutput(os.Stdout, os.Stderr)
	})
	return &out, &errOut
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		given    string
		expected byte
		err      bool
	}{
		{given: "0x20", expected: 0x20},
		{given: "33", expected: 33},
		{given: "0x7f", expected: 0x7F},
		{given: "0x80", err: true},
		{given: "0x100", err: true},
		{given: "chirp", err: true},
		{given: "", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.given, func(t *testing.T) {
			addr, err := parseAddress(tt.given)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr)
		})
	}
	_, err := parseAddress("0x80")
	assert.ErrorIs(t, err, soil.ErrInvalidAddress)
}

func TestPrintMeasurement(t *testing.T) {
	color.NoColor = true
	r := report{
		Time:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Address:     "0x20",
		Measurement: soil.Measurement{Temperature: -2.5, Capacitance: 412, Light: 118.4},
	}

	var buf bytes.Buffer
	require.NoError(t, printMeasurement(&buf, formatText, r))
	assert.Equal(t, "📌 0x20  🌡 -2.5°C  💧 412  💡 118.4 lx\n", buf.String())

	buf.Reset()
	require.NoError(t, printMeasurement(&buf, formatYAML, r))
	assert.Contains(t, buf.String(), "address: \"0x20\"")
	assert.Contains(t, buf.String(), "temperature: -2.5")
	assert.Contains(t, buf.String(), "capacitance: 412")
	assert.Contains(t, buf.String(), "light: 118.4")

	assert.Error(t, printMeasurement(&buf, "json", r))
}

func TestApp_Version(t *testing.T) {
	out, _ := captureOutput(t)
	err := newApp().Run([]string{"chirp", "--adapter", "sim", "version"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "firmware 2.6 (0x26) at 0x20")
}

func TestApp_AddressChange(t *testing.T) {
	out, _ := captureOutput(t)
	err := newApp().Run([]string{"chirp", "--adapter", "sim", "address", "--yes", "0x21"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "sensor moved from 0x20 to 0x21")
}

func TestApp_AddressRejected(t *testing.T) {
	captureOutput(t)
	err := newApp().Run([]string{"chirp", "--adapter", "sim", "address", "--yes", "0x90"})
	assert.Error(t, err)
}

func TestApp_Scan(t *testing.T) {
	out, errOut := captureOutput(t)
	err := newApp().Run([]string{"chirp", "--adapter", "sim", "--address", "0x31", "scan"})
	require.NoError(t, err)
	assert.Equal(t, "🌱 0x31 firmware 2.6\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestApp_ReadWithConfig(t *testing.T) {
	out, _ := captureOutput(t)
	path := filepath.Join(t.TempDir(), "chirp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: sim\nsettle: 10ms\n"), 0o600))

	err := newApp().Run([]string{"chirp", "--config", path, "read", "--format", "yaml"})
	require.NoError(t, err)
	// the simulated cycle has not completed after 10ms so power-on values are reported
	assert.Contains(t, out.String(), "temperature: 21")
	assert.Contains(t, out.String(), "capacitance: 330")
}

func TestApp_InvalidConfig(t *testing.T) {
	captureOutput(t)
	err := newApp().Run([]string{"chirp", "--adapter", "ftdi", "version"})
	assert.Error(t, err)
}
