// Package motion provides the receiver trajectory sources consumed by
// the simulator: static positions, ECEF/LLH motion files and NMEA GGA
// streams up-sampled to the 10 Hz channel-update rate.
package motion

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
)

// StepInterval is the trajectory sampling interval (s)
const StepInterval = 0.1

// Source yields the receiver ECEF position for each 100 ms step. A
// finite source reports ok=false once exhausted.
type Source interface {
	// Position returns the ECEF position at step*StepInterval
	Position(step int) (geodesy.Vec3, bool)
}

// Static is an infinite source pinned to one position
type Static struct {
	Pos geodesy.Vec3
}

// NewStaticECEF pins the receiver to an ECEF position
func NewStaticECEF(pos geodesy.Vec3) *Static {
	return &Static{Pos: pos}
}

// NewStaticLLH pins the receiver to a geodetic position given in
// degrees and metres
func NewStaticLLH(latDeg, lonDeg, hgt float64) *Static {
	return &Static{Pos: geodesy.Pos2Ecef(geodesy.Vec3{latDeg * geodesy.D2R, lonDeg * geodesy.D2R, hgt})}
}

// Position implements Source
func (s *Static) Position(int) (geodesy.Vec3, bool) {
	return s.Pos, true
}

// Path is a finite source backed by pre-sampled 10 Hz positions
type Path struct {
	Points []geodesy.Vec3
}

// Position implements Source
func (p *Path) Position(step int) (geodesy.Vec3, bool) {
	if step < 0 || step >= len(p.Points) {
		return geodesy.Vec3{}, false
	}
	return p.Points[step], true
}

// Len returns the number of 100 ms steps in the path
func (p *Path) Len() int { return len(p.Points) }

// parseCSVTriple splits one motion-file record into three floats,
// accepting comma or whitespace separation
func parseCSVTriple(line string) (geodesy.Vec3, error) {
	var v geodesy.Vec3
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) < 3 {
		return v, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return v, fmt.Errorf("field %d: %w", i+1, err)
		}
		v[i] = f
	}
	return v, nil
}

// ReadECEF parses an ECEF motion file: one x,y,z record (m) per 100 ms
func ReadECEF(r io.Reader) (*Path, error) {
	return readTriples(r, func(v geodesy.Vec3) geodesy.Vec3 { return v })
}

// ReadLLH parses an LLH motion file: one lat_deg,lon_deg,height_m
// record per 100 ms, converted to ECEF
func ReadLLH(r io.Reader) (*Path, error) {
	return readTriples(r, func(v geodesy.Vec3) geodesy.Vec3 {
		return geodesy.Pos2Ecef(geodesy.Vec3{v[0] * geodesy.D2R, v[1] * geodesy.D2R, v[2]})
	})
}

func readTriples(r io.Reader, conv func(geodesy.Vec3) geodesy.Vec3) (*Path, error) {
	p := &Path{}
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := parseCSVTriple(line)
		if err != nil {
			return nil, fmt.Errorf("motion record %d: %w", lineno, err)
		}
		p.Points = append(p.Points, conv(v))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Points) == 0 {
		return nil, fmt.Errorf("motion file holds no records")
	}
	return p, nil
}

// OpenFile loads a motion file with the given reader function
func OpenFile(path string, read func(io.Reader) (*Path, error)) (*Path, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
