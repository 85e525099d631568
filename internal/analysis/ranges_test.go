package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRangeSpec(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SweepSpec
		wantErr bool
	}{
		{"full rotation", "0:360:360", SweepSpec{0, 360, 360}, false},
		{"partial with spaces", " 10 : 20.5 : 4 ", SweepSpec{10, 20.5, 4}, false},
		{"negative start", "-5:5:10", SweepSpec{-5, 5, 10}, false},
		{"missing field", "0:360", SweepSpec{}, true},
		{"bad start", "a:360:10", SweepSpec{}, true},
		{"bad end", "0:b:10", SweepSpec{}, true},
		{"fractional steps", "0:360:1.5", SweepSpec{}, true},
		{"zero steps", "0:360:0", SweepSpec{}, true},
		{"reversed", "360:0:10", SweepSpec{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRangeSpec(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSweepSpec_Angles(t *testing.T) {
	angles := FullRotation(4).Angles()
	assert.Equal(t, []float64{0, 90, 180, 270}, angles)

	angles = SweepSpec{StartDeg: 10, EndDeg: 11, Steps: 4}.Angles()
	assert.InDeltaSlice(t, []float64{10, 10.25, 10.5, 10.75}, angles, 1e-12)

	assert.Empty(t, SweepSpec{}.Angles())
	assert.Error(t, SweepSpec{StartDeg: 0, EndDeg: 1, Steps: maxSweepSteps + 1}.Validate())
}

func TestParseIndexList(t *testing.T) {
	got, err := ParseIndexList("7, 3,,1")
	require.NoError(t, err)
	assert.Equal(t, []int{7, 3, 1}, got)

	got, err = ParseIndexList("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseIndexList("1,x")
	assert.Error(t, err)
	_, err = ParseIndexList("-1")
	assert.Error(t, err)
}
