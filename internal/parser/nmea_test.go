package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGGA(t *testing.T) {
	fix, err := Parse("$GPGGA,123519,4807.038,N,01131.000,E,4,08,0.9,545.4,M,46.9,M,,*42")
	require.NoError(t, err)
	assert.Equal(t, KindGGA, fix.Kind)
	assert.Equal(t, 4, fix.FixQuality)
	assert.Equal(t, 8, fix.Satellites)
	assert.InDelta(t, 48.1173, fix.Latitude, 0.001)
}

func TestParseRMC(t *testing.T) {
	fix, err := Parse("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	assert.Equal(t, KindRMC, fix.Kind)
	assert.True(t, fix.Valid)
	require.NotNil(t, fix.CourseOverGround)
	assert.InDelta(t, 84.4, *fix.CourseOverGround, 0.01)
	require.NotNil(t, fix.SpeedMPS)
}

func TestParseInvalidChecksum(t *testing.T) {
	_, err := Parse("$GPGGA,123519,4807.038,N,01131.000,E,4,08,0.9,545.4,M,46.9,M,,*00")
	assert.Error(t, err)
}
