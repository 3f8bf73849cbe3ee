package rtk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rovercore/internal/position"
)

func TestSynthesizeGGAProducesParseableSentence(t *testing.T) {
	pos := position.Position{
		Latitude:   51.5074,
		Longitude:  -0.1278,
		Altitude:   45.0,
		Quality:    position.RTKFixed,
		Satellites: 12,
		HDOP:       0.9,
		Timestamp:  time.Now(),
	}

	sentence := synthesizeGGA(pos)
	assert.True(t, len(sentence) > 10)
	assert.Equal(t, byte('$'), sentence[0])
	assert.Contains(t, sentence, "GPGGA")
	assert.Contains(t, sentence, ",N,")
	assert.Contains(t, sentence, ",W,")
}

func TestGGAQualityFromMapsRTKFixedToFour(t *testing.T) {
	assert.Equal(t, 4, ggaQualityFrom(position.RTKFixed))
	assert.Equal(t, 5, ggaQualityFrom(position.RTKFloat))
	assert.Equal(t, 0, ggaQualityFrom(position.NoFix))
}

func TestCoordinatorRegisterObserverReceivesPublish(t *testing.T) {
	c := &Coordinator{}
	var received position.Position
	c.RegisterObserver(position.ObserverFunc(func(p position.Position) { received = p }))

	c.publish(position.Position{Latitude: 1, Longitude: 2})

	assert.Equal(t, 1.0, received.Latitude)
	last, ok := c.LastFix()
	assert.True(t, ok)
	assert.Equal(t, 2.0, last.Longitude)
}
