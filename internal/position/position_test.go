package position

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixQualityFromNMEA(t *testing.T) {
	cases := []struct {
		quality  int
		expected FixQuality
	}{
		{0, NoFix},
		{1, Single},
		{2, DGPS},
		{3, Single},
		{4, RTKFixed},
		{5, RTKFloat},
		{9, Single},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, FixQualityFromNMEA(c.quality))
	}
}

func TestFixQualityString(t *testing.T) {
	assert.Equal(t, "RTK_FIXED", RTKFixed.String())
	assert.Equal(t, "NO_FIX", NoFix.String())
}

func TestPositionValid(t *testing.T) {
	valid := Position{Latitude: 51.5074, Longitude: -0.1278}
	assert.True(t, valid.Valid())

	outOfRange := Position{Latitude: 91, Longitude: 0}
	assert.False(t, outOfRange.Valid())

	outOfRange = Position{Latitude: 0, Longitude: 181}
	assert.False(t, outOfRange.Valid())
}

func TestClampSatellites(t *testing.T) {
	assert.Equal(t, 0, ClampSatellites(-3))
	assert.Equal(t, 50, ClampSatellites(99))
	assert.Equal(t, 12, ClampSatellites(12))
}

func TestClampHDOP(t *testing.T) {
	assert.Equal(t, 0.0, ClampHDOP(-1))
	assert.Equal(t, 50.0, ClampHDOP(500))
	assert.Equal(t, 1.2, ClampHDOP(1.2))
}

func TestObserverFunc(t *testing.T) {
	var got Position
	var obs Observer = ObserverFunc(func(p Position) { got = p })
	obs.OnPositionUpdate(Position{Latitude: 1, Longitude: 2})
	assert.Equal(t, 1.0, got.Latitude)
	assert.Equal(t, 2.0, got.Longitude)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	speed := 1.5
	pos := Position{
		Latitude:   51.5074,
		Longitude:  -0.1278,
		Altitude:   45.0,
		Quality:    RTKFixed,
		Satellites: 10,
		HDOP:       0.8,
		SpeedMPS:   &speed,
		Timestamp:  time.Now().UTC(),
	}

	filePath := filepath.Join(tempDir, "nested", "position.json")
	require.NoError(t, pos.SaveToFile(filePath))

	_, err := os.Stat(filePath)
	require.NoError(t, err)

	loaded, err := LoadFromFile(filePath)
	require.NoError(t, err)
	assert.InDelta(t, pos.Latitude, loaded.Latitude, 1e-9)
	assert.InDelta(t, pos.Longitude, loaded.Longitude, 1e-9)
	assert.Equal(t, pos.Quality, loaded.Quality)
	require.NotNil(t, loaded.SpeedMPS)
	assert.InDelta(t, speed, *loaded.SpeedMPS, 1e-9)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile("does_not_exist.json")
	assert.Error(t, err)

	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "invalid.json")
	require.NoError(t, os.WriteFile(filePath, []byte("not json"), 0644))

	_, err = LoadFromFile(filePath)
	assert.Error(t, err)
}
