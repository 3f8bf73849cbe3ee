package gnss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rovercore/internal/position"
)

func TestParseLineGGAIsCanonical(t *testing.T) {
	a := NewAdapter(nil, nil)
	pos, ok, err := a.ParseLine("$GPGGA,123519,4807.038,N,01131.000,E,4,08,0.9,545.4,M,46.9,M,,*42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, position.RTKFixed, pos.Quality)
	assert.Equal(t, 8, pos.Satellites)
}

func TestParseLineRMCEnrichesNextGGA(t *testing.T) {
	a := NewAdapter(nil, nil)

	_, ok, err := a.ParseLine("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	assert.False(t, ok)

	pos, ok, err := a.ParseLine("$GPGGA,123519,4807.038,N,01131.000,E,4,08,0.9,545.4,M,46.9,M,,*42")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, pos.CourseOverGround)
	assert.InDelta(t, 84.4, *pos.CourseOverGround, 0.01)
}

func TestParseLineGSADoesNotPublish(t *testing.T) {
	a := NewAdapter(nil, nil)
	_, ok, err := a.ParseLine("$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, a.haveGSA)
}

func TestParseLineGLLIgnoredShortlyAfterGGA(t *testing.T) {
	a := NewAdapter(nil, nil)

	_, ok, err := a.ParseLine("$GPGGA,123519,4807.038,N,01131.000,E,4,08,0.9,545.4,M,46.9,M,,*42")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = a.ParseLine("$GPGLL,4916.45,N,12311.12,W,225444,A,*1D")
	require.NoError(t, err)
	assert.False(t, ok, "GLL should be suppressed while a recent GGA fix is available")
}

func TestParseLineGLLPublishesWithoutRecentGGA(t *testing.T) {
	a := NewAdapter(nil, nil)

	pos, ok, err := a.ParseLine("$GPGLL,4916.45,N,12311.12,W,225444,A,*1D")
	require.NoError(t, err)
	require.True(t, ok, "GLL should publish when no GGA has been seen")
	assert.Equal(t, position.Single, pos.Quality)
}

func TestParseLineInvalidIncrementsErrorCount(t *testing.T) {
	a := NewAdapter(nil, nil)
	_, ok, err := a.ParseLine("$GPGGA,bad*00")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, a.ErrorCount())
}
