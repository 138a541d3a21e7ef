package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantize1BitPacking(t *testing.T) {
	// 8 components alternating I=+1, Q=-1 pack MSB-first to 10101010
	iq := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	buf := make([]byte, 1)
	quantizeFrame(buf, iq, 1)
	assert.Equal(t, byte(0b10101010), buf[0])
}

func TestQuantize1BitPartialByte(t *testing.T) {
	// six components: the trailing two bits stay zero
	iq := []float64{1, 1, 1, 1, 1, 1}
	buf := make([]byte, 1)
	quantizeFrame(buf, iq, 1)
	assert.Equal(t, byte(0b11111100), buf[0])
}

func TestQuantize1BitZeroIsPositive(t *testing.T) {
	iq := []float64{0, -0.2}
	buf := make([]byte, 1)
	quantizeFrame(buf, iq, 1)
	assert.Equal(t, byte(0b10000000), buf[0])
}

func TestQuantize8BitClipsAndRounds(t *testing.T) {
	iq := []float64{1.4, -1.6, 300.0, -300.0}
	buf := make([]byte, 4)
	quantizeFrame(buf, iq, 8)
	assert.Equal(t, int8(1), int8(buf[0]))
	assert.Equal(t, int8(-2), int8(buf[1]))
	assert.Equal(t, int8(127), int8(buf[2]))
	assert.Equal(t, int8(-127), int8(buf[3]))
}

func TestQuantize16BitLittleEndian(t *testing.T) {
	iq := []float64{258.0, -2.0, 40000.0, -40000.0}
	buf := make([]byte, 8)
	quantizeFrame(buf, iq, 16)

	dec := func(i int) int16 {
		return int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8)
	}
	assert.Equal(t, int16(258), dec(0))
	assert.Equal(t, int16(-2), dec(1))
	assert.Equal(t, int16(32767), dec(2))
	assert.Equal(t, int16(-32767), dec(3))
}

func TestConfigFrameBytes(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 260000, c.SamplesPerFrame())
	assert.Equal(t, 4*260000, c.FrameBytes())

	c.BitWidth = 8
	assert.Equal(t, 2*260000, c.FrameBytes())

	c.BitWidth = 1
	assert.Equal(t, 65000, c.FrameBytes())

	c.SampleRate = 1.0e6
	assert.Equal(t, 100000, c.SamplesPerFrame())
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	assert.NoError(t, c.Validate())

	bad := c
	bad.BitWidth = 4
	assert.Error(t, bad.Validate())

	bad = c
	bad.SampleRate = 500e3
	assert.Error(t, bad.Validate())

	bad = c
	bad.Duration = 0
	assert.Error(t, bad.Validate())

	bad = c
	bad.FixedGain = 128
	assert.Error(t, bad.Validate())

	bad = c
	bad.ElevationMaskDeg = 95
	assert.Error(t, bad.Validate())
}
