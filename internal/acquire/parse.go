package acquire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/tmr-encoder/internal/encoder"
)

// ErrFieldCount is returned when a frame does not carry one field per sensor.
var ErrFieldCount = errors.New("frame field count does not match sensor count")

// ErrCommentLine is returned for blank lines and '#' comments, which carry no frame.
var ErrCommentLine = errors.New("comment or blank line")

// ParseSampleLine parses one comma-separated frame of n sensor readings.
// A field that is empty, "nan" or "x" (any case) marks that sensor as failed;
// its reading is returned as 0 and its index is in the mask.
func ParseSampleLine(line string, n int) ([]float64, encoder.FailureMask, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, encoder.FailureMask{}, ErrCommentLine
	}
	fields := strings.Split(line, ",")
	if len(fields) != n {
		return nil, encoder.FailureMask{}, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), n)
	}

	samples := make([]float64, n)
	var mask encoder.FailureMask
	for i, f := range fields {
		f = strings.TrimSpace(f)
		switch strings.ToLower(f) {
		case "", "nan", "x":
			mask.Add(i)
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, encoder.FailureMask{}, fmt.Errorf("field %d: %w", i, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			mask.Add(i)
			continue
		}
		samples[i] = v
	}
	return samples, mask, nil
}

// FormatSampleLine renders readings as a frame understood by ParseSampleLine.
func FormatSampleLine(samples []float64, mask encoder.FailureMask) string {
	var b strings.Builder
	for i, v := range samples {
		if i > 0 {
			b.WriteByte(',')
		}
		if mask.Contains(i) {
			b.WriteString("nan")
			continue
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

// Decode parses a frame for g and reconstructs its angle.
func Decode(line string, g encoder.Geometry) (encoder.Result, encoder.FailureMask, error) {
	samples, mask, err := ParseSampleLine(line, g.SensorCount())
	if err != nil {
		return encoder.Result{}, mask, err
	}
	res, err := encoder.Reconstruct(samples, g, mask)
	return res, mask, err
}
