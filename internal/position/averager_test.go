package position

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPositionAverager(t *testing.T) {
	averager := NewPositionAverager(RTKFixed)
	require.NotNil(t, averager)
	assert.Equal(t, RTKFixed, averager.minFixQuality)
	assert.NotNil(t, averager.fixQualityDist)
}

func TestAddSample(t *testing.T) {
	averager := NewPositionAverager(RTKFixed)

	low := Position{Latitude: 51.5074, Longitude: -0.1278, Quality: Single, Timestamp: time.Now().UTC()}
	assert.False(t, averager.AddSample(low))
	assert.Equal(t, 1, averager.fixQualityDist[Single])

	good := Position{Latitude: 51.5074, Longitude: -0.1278, Quality: RTKFixed, Timestamp: time.Now().UTC()}
	assert.True(t, averager.AddSample(good))
	assert.Equal(t, 1, len(averager.samples))
	assert.Equal(t, 1, averager.fixQualityDist[RTKFixed])
}

func TestSampleCount(t *testing.T) {
	averager := NewPositionAverager(RTKFixed)
	assert.Equal(t, 0, averager.SampleCount())

	averager.AddSample(Position{Quality: RTKFixed, Timestamp: time.Now().UTC()})
	assert.Equal(t, 1, averager.SampleCount())
}

func TestAverage(t *testing.T) {
	averager := NewPositionAverager(RTKFixed)

	_, _, err := averager.Average()
	assert.Error(t, err)

	now := time.Now().UTC()
	samples := []Position{
		{Latitude: 51.5074, Longitude: -0.1278, Altitude: 45.0, Quality: RTKFixed, Timestamp: now},
		{Latitude: 51.5076, Longitude: -0.1276, Altitude: 46.0, Quality: RTKFixed, Timestamp: now.Add(time.Second)},
		{Latitude: 51.5078, Longitude: -0.1274, Altitude: 47.0, Quality: RTKFloat, Timestamp: now.Add(2 * time.Second)},
	}
	for _, s := range samples {
		averager.AddSample(s)
	}

	pos, stats, err := averager.Average()
	require.NoError(t, err)

	// The RTKFloat sample ranks below the RTKFixed minimum, so only the first
	// two samples are averaged.
	expectedLat := (51.5074 + 51.5076) / 2
	expectedLon := (-0.1278 + -0.1276) / 2
	expectedAlt := (45.0 + 46.0) / 2

	assert.True(t, math.Abs(pos.Latitude-expectedLat) < 0.0001)
	assert.True(t, math.Abs(pos.Longitude-expectedLon) < 0.0001)
	assert.True(t, math.Abs(pos.Altitude-expectedAlt) < 0.0001)

	assert.Equal(t, 2, stats.SampleCount)
	assert.Equal(t, 1.0, stats.Duration)
	assert.Equal(t, 2, stats.FixQualityDistribution[RTKFixed])
	assert.Equal(t, 1, stats.FixQualityDistribution[RTKFloat])
}

func TestAveragerReset(t *testing.T) {
	averager := NewPositionAverager(RTKFixed)
	averager.AddSample(Position{Quality: RTKFixed, Timestamp: time.Now().UTC()})

	averager.Reset()

	assert.Equal(t, 0, averager.SampleCount())
	assert.Equal(t, 0, len(averager.fixQualityDist))
}

func TestFixQualityDistributionIsACopy(t *testing.T) {
	averager := NewPositionAverager(RTKFixed)
	averager.AddSample(Position{Quality: Single, Timestamp: time.Now().UTC()})

	dist := averager.FixQualityDistribution()
	dist[Single] = 100

	assert.Equal(t, 1, averager.fixQualityDist[Single])
}

func TestAveragerAsObserver(t *testing.T) {
	averager := NewPositionAverager(Single)
	var obs Observer = averager
	obs.OnPositionUpdate(Position{Latitude: 1, Longitude: 2, Quality: Single, Timestamp: time.Now().UTC()})
	assert.Equal(t, 1, averager.SampleCount())
}
