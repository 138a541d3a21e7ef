package motion

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/nmea"
)

// SerialGGASource records a trajectory from a GNSS receiver emitting
// GGA sentences on a serial port, for hardware-in-the-loop scenarios.
type SerialGGASource struct {
	portName string
	baudRate int
	logger   logrus.FieldLogger
}

// NewSerialGGASource prepares a recorder for the given port
func NewSerialGGASource(portName string, baudRate int, logger logrus.FieldLogger) *SerialGGASource {
	return &SerialGGASource{portName: portName, baudRate: baudRate, logger: logger}
}

// Record reads GGA fixes from the port for the given duration and
// returns the up-sampled 10 Hz path. The port is closed on return.
func (s *SerialGGASource) Record(ctx context.Context, d time.Duration) (*Path, error) {
	mode := &serial.Mode{BaudRate: s.baudRate}
	port, err := serial.Open(s.portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", s.portName, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(time.Second); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"port": s.portName,
		"baud": s.baudRate,
	}).Info("Recording GGA trajectory")

	var fixes []ggaFix
	deadline := time.Now().Add(d)
	sc := bufio.NewScanner(port)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if !sc.Scan() {
			if sc.Err() != nil {
				return nil, fmt.Errorf("read serial port: %w", sc.Err())
			}
			continue
		}
		fix, err := nmea.ParseGGA(sc.Text())
		if err != nil || fix.Quality == 0 {
			continue
		}
		sec := fix.Seconds
		if len(fixes) > 0 && sec < fixes[len(fixes)-1].sec {
			sec += 86400.0
		}
		llh := geodesy.Vec3{
			fix.Latitude * geodesy.D2R,
			fix.Longitude * geodesy.D2R,
			fix.EllipsoidalHeight(),
		}
		fixes = append(fixes, ggaFix{sec: sec, pos: geodesy.Pos2Ecef(llh)})
	}

	if len(fixes) == 0 {
		return nil, fmt.Errorf("no usable GGA fixes received on %s", s.portName)
	}
	s.logger.WithField("fixes", len(fixes)).Info("Trajectory recording complete")
	return resample(fixes), nil
}
