package motion

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/nmea"
)

// ggaFix is one timestamped ECEF fix from a GGA stream
type ggaFix struct {
	sec float64 // UTC seconds of day
	pos geodesy.Vec3
}

// ReadNMEA parses a GGA stream (one fix per line, nominally 1 Hz) and
// up-samples it to the 10 Hz step rate by piecewise-linear interpolation
// in ECEF. Non-GGA sentences and fixes without a position solution are
// skipped. Non-uniform fix spacing is handled through the received
// timestamps.
func ReadNMEA(r io.Reader) (*Path, error) {
	fixes, err := readGGAFixes(r)
	if err != nil {
		return nil, err
	}
	if len(fixes) == 0 {
		return nil, fmt.Errorf("nmea stream holds no usable GGA fixes")
	}
	return resample(fixes), nil
}

func readGGAFixes(r io.Reader) ([]ggaFix, error) {
	var fixes []ggaFix
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		if line == "" {
			continue
		}
		fix, err := nmea.ParseGGA(line)
		if err != nil {
			// tolerate interleaved non-GGA sentences
			continue
		}
		if fix.Quality == 0 {
			continue
		}
		sec := fix.Seconds
		if len(fixes) > 0 && sec < fixes[len(fixes)-1].sec {
			// day boundary in the time-of-day stamps
			sec += 86400.0
		}
		llh := geodesy.Vec3{
			fix.Latitude * geodesy.D2R,
			fix.Longitude * geodesy.D2R,
			fix.EllipsoidalHeight(),
		}
		fixes = append(fixes, ggaFix{sec: sec, pos: geodesy.Pos2Ecef(llh)})
	}
	return fixes, sc.Err()
}

// resample interpolates the fixes onto the uniform 10 Hz grid starting
// at the first fix
func resample(fixes []ggaFix) *Path {
	p := &Path{}
	if len(fixes) == 1 {
		p.Points = append(p.Points, fixes[0].pos)
		return p
	}

	t0 := fixes[0].sec
	end := fixes[len(fixes)-1].sec
	steps := int((end-t0)/StepInterval+1e-9) + 1
	seg := 0
	for i := 0; i < steps; i++ {
		t := t0 + float64(i)*StepInterval
		for seg < len(fixes)-2 && fixes[seg+1].sec <= t {
			seg++
		}
		a, b := fixes[seg], fixes[seg+1]
		w := 0.0
		if b.sec > a.sec {
			w = (t - a.sec) / (b.sec - a.sec)
		}
		if w < 0.0 {
			w = 0.0
		} else if w > 1.0 {
			w = 1.0
		}
		p.Points = append(p.Points, geodesy.Vec3{
			a.pos[0] + w*(b.pos[0]-a.pos[0]),
			a.pos[1] + w*(b.pos[1]-a.pos[1]),
			a.pos[2] + w*(b.pos[2]-a.pos[2]),
		})
	}
	return p
}
