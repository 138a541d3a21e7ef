// Package sim contains the simulator orchestrator: the 100 ms frame
// loop, the per-sample I/Q synthesiser and the output quantisation.
package sim

import (
	"github.com/bramburn/gpssimgo/pkg/gpssim"
	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
)

// FrameInterval is the channel-update interval (s)
const FrameInterval = 0.1

// MaxChannels is the number of satellites synthesised concurrently
const MaxChannels = 12

// Config holds the simulation parameters
type Config struct {
	StartTime gtime.GPSTime
	Duration  float64 // s

	SampleRate float64 // Hz
	BitWidth   int     // 1, 8 or 16 bits per I/Q component

	IonoEnabled      bool
	PathLossEnabled  bool
	FixedGain        int // 0..127, used when path loss is disabled
	OverrideEpochs   bool
	ElevationMaskDeg float64
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	return Config{
		Duration:         300.0,
		SampleRate:       2.6e6,
		BitWidth:         16,
		IonoEnabled:      true,
		PathLossEnabled:  true,
		FixedGain:        127,
		ElevationMaskDeg: 0.0,
	}
}

// Validate checks the configuration before a run
func (c *Config) Validate() error {
	if c.SampleRate < 1.0e6 {
		return gpssim.Errorf(gpssim.KindInput, "sampling frequency %.0f Hz below 1 MHz", c.SampleRate)
	}
	switch c.BitWidth {
	case 1, 8, 16:
	default:
		return gpssim.Errorf(gpssim.KindInput, "bit width must be 1, 8 or 16, got %d", c.BitWidth)
	}
	if c.Duration <= 0.0 {
		return gpssim.Errorf(gpssim.KindInput, "duration %.1f s not positive", c.Duration)
	}
	if c.FixedGain < 0 || c.FixedGain > 127 {
		return gpssim.Errorf(gpssim.KindInput, "fixed gain %d outside 0..127", c.FixedGain)
	}
	if c.ElevationMaskDeg < 0.0 || c.ElevationMaskDeg >= 90.0 {
		return gpssim.Errorf(gpssim.KindInput, "elevation mask %.1f outside 0..90", c.ElevationMaskDeg)
	}
	return nil
}

// SamplesPerFrame returns the number of I/Q pairs in one 100 ms frame
func (c *Config) SamplesPerFrame() int {
	return int(c.SampleRate*FrameInterval + 0.5)
}

// FrameBytes returns the size of one quantised frame
func (c *Config) FrameBytes() int {
	n := c.SamplesPerFrame()
	switch c.BitWidth {
	case 1:
		return (2*n + 7) / 8
	case 8:
		return 2 * n
	default:
		return 4 * n
	}
}

// amplitudeScale is the full-scale channel amplitude per bit width. The
// quantiser clips rather than rescales, so the per-channel amplitude is
// chosen to leave headroom for a full constellation.
func (c *Config) amplitudeScale() float64 {
	switch c.BitWidth {
	case 8:
		return 8.0
	default:
		return 128.0
	}
}
