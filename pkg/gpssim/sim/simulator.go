package sim

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bramburn/gpssimgo/pkg/gpssim"
	"github.com/bramburn/gpssimgo/pkg/gpssim/cacode"
	"github.com/bramburn/gpssimgo/pkg/gpssim/channel"
	"github.com/bramburn/gpssimgo/pkg/gpssim/ephemeris"
	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
	"github.com/bramburn/gpssimgo/pkg/gpssim/iono"
	"github.com/bramburn/gpssimgo/pkg/gpssim/motion"
	"github.com/bramburn/gpssimgo/pkg/gpssim/stream"
)

// pathLossRefRange is the reference range for the free-space attenuation
// model (m); a satellite at this range transmits at full amplitude
const pathLossRefRange = 20200000.0

// Simulator drives the signal-generation pipeline: trajectory advance,
// channel updates every 100 ms and sample synthesis into the sink.
type Simulator struct {
	cfg    Config
	log    logrus.FieldLogger
	ephSet *ephemeris.Set
	ion    *iono.Params // broadcast in the navigation message
	delay  *iono.Params // applied to pseudoranges; nil when -i given
	traj   motion.Source
	sink   stream.Sink
	codes  *cacode.Table

	channels []*channel.Channel

	step    int
	rxPos   geodesy.Vec3
	rxVel   geodesy.Vec3
	havePos bool

	iq  []float64
	buf []byte
}

// New initialises a simulator: ephemerides are filtered for the start
// window, code tables built and the start-time constellation acquired.
func New(cfg Config, ephSet *ephemeris.Set, ion *iono.Params, traj motion.Source, sink stream.Sink, logger logrus.FieldLogger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Simulator{
		cfg:    cfg,
		log:    logger.WithField("run_id", uuid.New().String()),
		ephSet: ephSet,
		ion:    ion,
		traj:   traj,
		sink:   sink,
		codes:  cacode.NewTable(),
		iq:     make([]float64, 2*cfg.SamplesPerFrame()),
		buf:    make([]byte, cfg.FrameBytes()),
	}
	if cfg.IonoEnabled {
		s.delay = ion
	}

	if cfg.OverrideEpochs {
		ephSet.OverrideEpochs(cfg.StartTime)
		s.log.Info("Ephemeris epochs overridden to scenario start")
	}

	// the start time must fall inside at least one validity window
	usable := 0
	for _, prn := range ephSet.PRNs() {
		if ephSet.Select(prn, cfg.StartTime) != nil {
			usable++
		}
	}
	if usable == 0 {
		return nil, gpssim.Errorf(gpssim.KindTime,
			"start time %s outside the validity window of every ephemeris", cfg.StartTime)
	}

	pos, ok := traj.Position(0)
	if !ok {
		return nil, gpssim.Errorf(gpssim.KindInput, "trajectory holds no positions")
	}
	s.rxPos = pos
	s.havePos = true

	if err := s.UpdateChannelParameters(pos); err != nil {
		return nil, err
	}
	if s.acquiredCount() == 0 {
		return nil, gpssim.Errorf(gpssim.KindResource,
			"no satellites above the %.1f° mask at the start time", cfg.ElevationMaskDeg)
	}

	s.log.WithFields(logrus.Fields{
		"satellites": s.acquiredCount(),
		"start":      cfg.StartTime.String(),
		"fs":         cfg.SampleRate,
		"bits":       cfg.BitWidth,
	}).Info("Simulator initialised")
	return s, nil
}

// Time returns the receiver time of the current frame
func (s *Simulator) Time() gtime.GPSTime {
	return s.cfg.StartTime.Add(float64(s.step) * FrameInterval)
}

// Channels exposes the live channel array for diagnostics
func (s *Simulator) Channels() []*channel.Channel {
	return s.channels
}

func (s *Simulator) acquiredCount() int {
	n := 0
	for _, c := range s.channels {
		if c.State == channel.Acquired {
			n++
		}
	}
	return n
}

func (s *Simulator) findChannel(prn int) *channel.Channel {
	for _, c := range s.channels {
		if c.PRN == prn {
			return c
		}
	}
	return nil
}

// amplitude derives the channel amplitude from the geometry
func (s *Simulator) amplitude(g channel.Geometry) float64 {
	scale := s.cfg.amplitudeScale()
	if s.cfg.PathLossEnabled {
		return scale * pathLossRefRange / g.Range
	}
	return scale * float64(s.cfg.FixedGain) / 128.0
}

// UpdateChannelParameters recomputes every channel for the receiver
// position at the current frame time: geometry refresh for tracked
// satellites, acquisition of rising ones and release of set ones. All
// channels are consistent when the call returns; the synthesiser never
// sees a half-updated constellation.
func (s *Simulator) UpdateChannelParameters(pos geodesy.Vec3) error {
	t := s.Time()
	mask := s.cfg.ElevationMaskDeg * geodesy.D2R

	// receiver velocity from the trajectory step
	if s.havePos {
		for i := 0; i < 3; i++ {
			s.rxVel[i] = (pos[i] - s.rxPos[i]) / FrameInterval
		}
	}
	s.rxPos = pos

	for _, prn := range s.ephSet.PRNs() {
		eph := s.ephSet.Select(prn, t)
		ch := s.findChannel(prn)

		if eph == nil {
			if ch != nil {
				s.log.WithField("prn", prn).Warn("Ephemeris no longer valid, channel idled")
				s.dropChannel(ch)
			}
			continue
		}

		g, err := channel.ComputeGeometry(eph, t, pos, s.rxVel, s.delay)
		if err != nil {
			return gpssim.Wrap(gpssim.KindGeometry, err)
		}

		if g.Elevation < mask {
			if ch != nil {
				s.log.WithFields(logrus.Fields{
					"prn": prn,
					"el":  g.Elevation * geodesy.R2D,
				}).Debug("Satellite set below mask")
				s.dropChannel(ch)
			}
			continue
		}

		if ch == nil {
			if len(s.channels) >= MaxChannels {
				continue
			}
			ch = channel.New(prn, s.codes.Code(prn))
			if err := ch.Acquire(eph, s.ion, t, g); err != nil {
				return gpssim.Wrap(gpssim.KindGeometry, err)
			}
			s.channels = append(s.channels, ch)
			s.log.WithFields(logrus.Fields{
				"prn": prn,
				"az":  g.Azimuth * geodesy.R2D,
				"el":  g.Elevation * geodesy.R2D,
			}).Debug("Satellite acquired")
		}

		if ch.Eph != eph {
			s.log.WithField("prn", prn).Debug("Switching to a fresher ephemeris")
			ch.Rebind(eph, s.ion)
		}
		ch.Update(g, s.cfg.SampleRate)
		ch.Amp = s.amplitude(g)

		s.log.WithFields(logrus.Fields{
			"prn":     prn,
			"az":      g.Azimuth * geodesy.R2D,
			"el":      g.Elevation * geodesy.R2D,
			"range":   g.Range,
			"doppler": g.Doppler,
		}).Debug("Channel updated")
	}
	return nil
}

func (s *Simulator) dropChannel(ch *channel.Channel) {
	ch.Release()
	for i, c := range s.channels {
		if c == ch {
			s.channels = append(s.channels[:i], s.channels[i+1:]...)
			return
		}
	}
}

// GenerateSamples synthesises one frame of interleaved I/Q samples from
// the acquired channels into the sample buffer
func (s *Simulator) GenerateSamples() {
	n := s.cfg.SamplesPerFrame()
	for i := 0; i < 2*n; i++ {
		s.iq[i] = 0.0
	}

	for _, c := range s.channels {
		if c.State != channel.Acquired {
			continue
		}
		for i := 0; i < n; i++ {
			iv, qv := c.Step()
			s.iq[2*i] += iv
			s.iq[2*i+1] += qv
		}
	}
	quantizeFrame(s.buf, s.iq, s.cfg.BitWidth)
}

// SampleBuffer returns the most recent quantised frame. The slice is
// reused between frames.
func (s *Simulator) SampleBuffer() []byte {
	return s.buf
}

// RunFrame advances one 100 ms frame: trajectory step, channel update,
// synthesis, sink delivery. It reports done=true when the trajectory is
// exhausted or the configured duration is reached.
func (s *Simulator) RunFrame() (done bool, err error) {
	if float64(s.step)*FrameInterval >= s.cfg.Duration {
		return true, nil
	}
	pos, ok := s.traj.Position(s.step)
	if !ok {
		s.log.WithField("t", float64(s.step)*FrameInterval).Info("Trajectory exhausted, truncating simulation")
		return true, nil
	}

	if err := s.UpdateChannelParameters(pos); err != nil {
		return false, err
	}
	if s.acquiredCount() == 0 {
		s.log.Warn("No satellites above mask this frame")
	}
	s.GenerateSamples()

	if err := s.sink.WriteFrame(s.buf); err != nil {
		return false, gpssim.Wrap(gpssim.KindIO, err)
	}
	s.step++
	return false, nil
}

// Run executes the frame loop until the duration elapses, the
// trajectory ends or ctx is cancelled. Cancellation is honoured at
// frame boundaries only; the frame in flight always completes.
func (s *Simulator) Run(ctx context.Context) error {
	frames := int(math.Ceil(s.cfg.Duration / FrameInterval))
	progress := frames / 10

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Simulation cancelled")
			return gpssim.Wrap(gpssim.KindCancelled, ctx.Err())
		default:
		}

		done, err := s.RunFrame()
		if err != nil {
			return err
		}
		if done {
			s.log.WithField("frames", s.step).Info("Simulation complete")
			return nil
		}
		if progress > 0 && s.step%progress == 0 {
			s.log.WithFields(logrus.Fields{
				"t":          float64(s.step) * FrameInterval,
				"satellites": s.acquiredCount(),
			}).Debug("Progress")
		}
	}
}
