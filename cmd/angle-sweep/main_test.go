package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tmr-encoder/internal/units"
)

func baseOptions(t *testing.T) options {
	return options{
		sensors:   8,
		polePairs: 7,
		rangeSpec: "0:360:72",
		seed:      1,
		unit:      units.Degrees,
		outDir:    t.TempDir(),
	}
}

func TestRun_WritesArtifacts(t *testing.T) {
	opts := baseOptions(t)
	opts.noise = 0.01
	opts.fail = "2"

	var out bytes.Buffer
	require.NoError(t, run(opts, &out))

	for _, ext := range []string{".csv", ".png", ".html"} {
		assert.FileExists(t, filepath.Join(opts.outDir, "sweep_8_7"+ext))
	}
	csv, err := os.ReadFile(filepath.Join(opts.outDir, "sweep_8_7.csv"))
	require.NoError(t, err)
	assert.Equal(t, 73, bytes.Count(csv, []byte("\n")))

	assert.Contains(t, out.String(), "Samples:             72 (0 degenerate, 0 underdetermined)")
	assert.Contains(t, out.String(), "Failed sensors:      [2]")
}

func TestRun_Units(t *testing.T) {
	opts := baseOptions(t)
	opts.unit = units.Arcseconds
	opts.name = "noiseless"

	var out bytes.Buffer
	require.NoError(t, run(opts, &out))
	assert.FileExists(t, filepath.Join(opts.outDir, "noiseless.csv"))
	assert.Contains(t, out.String(), "″")
}

func TestRun_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*options)
	}{
		{"unit", func(o *options) { o.unit = "furlong" }},
		{"geometry", func(o *options) { o.sensors = 0 }},
		{"range", func(o *options) { o.rangeSpec = "10:5:3" }},
		{"fail list", func(o *options) { o.fail = "a" }},
		{"too many failures", func(o *options) { o.fail = "0,1,2,3,4,5,6" }},
		{"noise", func(o *options) { o.noise = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions(t)
			tt.mutate(&opts)
			assert.Error(t, run(opts, &bytes.Buffer{}))
		})
	}
}
