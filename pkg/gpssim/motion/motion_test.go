package motion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/nmea"
)

func TestStaticSourceNeverExhausts(t *testing.T) {
	s := NewStaticLLH(35.681298, 139.766247, 10.0)
	p0, ok := s.Position(0)
	require.True(t, ok)
	p1, ok := s.Position(1 << 20)
	require.True(t, ok)
	assert.Equal(t, p0, p1)

	llh := geodesy.Ecef2Pos(p0)
	assert.InDelta(t, 35.681298, llh[0]*geodesy.R2D, 1e-9)
	assert.InDelta(t, 139.766247, llh[1]*geodesy.R2D, 1e-9)
	assert.InDelta(t, 10.0, llh[2], 1e-3)
}

func TestReadECEF(t *testing.T) {
	in := strings.NewReader(
		"-3961785.0,3349251.0,3698212.0\n" +
			"-3961786.0, 3349252.0, 3698213.0\n" +
			"\n" +
			"# comment\n" +
			"-3961787.0\t3349253.0\t3698214.0\n")
	p, err := ReadECEF(in)
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())

	pos, ok := p.Position(1)
	require.True(t, ok)
	assert.Equal(t, geodesy.Vec3{-3961786.0, 3349252.0, 3698213.0}, pos)

	_, ok = p.Position(3)
	assert.False(t, ok)
	_, ok = p.Position(-1)
	assert.False(t, ok)
}

func TestReadECEFRejectsBadRecord(t *testing.T) {
	_, err := ReadECEF(strings.NewReader("1.0,2.0\n"))
	assert.Error(t, err)

	_, err = ReadECEF(strings.NewReader("a,b,c\n"))
	assert.Error(t, err)

	_, err = ReadECEF(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadLLHConvertsToECEF(t *testing.T) {
	p, err := ReadLLH(strings.NewReader("35.681298,139.766247,10.0\n"))
	require.NoError(t, err)
	pos, ok := p.Position(0)
	require.True(t, ok)

	want := geodesy.Pos2Ecef(geodesy.Vec3{35.681298 * geodesy.D2R, 139.766247 * geodesy.D2R, 10.0})
	assert.InDelta(t, 0.0, geodesy.Norm(geodesy.Sub(want, pos)), 1e-6)
}

func gga(sec int, lat, lon, alt float64) string {
	latStr, latDir := formatDM(lat, true)
	lonStr, lonDir := formatDM(lon, false)
	body := fmt.Sprintf("GPGGA,%02d%02d%02d.00,%s,%s,%s,%s,1,08,1.0,%.1f,M,0.0,M,,",
		sec/3600, (sec/60)%60, sec%60, latStr, latDir, lonStr, lonDir, alt)
	return "$" + body + "*" + nmea.Checksum(body)
}

func formatDM(v float64, isLat bool) (string, string) {
	dir := "N"
	if !isLat {
		dir = "E"
	}
	if v < 0 {
		v = -v
		if isLat {
			dir = "S"
		} else {
			dir = "W"
		}
	}
	deg := int(v)
	min := (v - float64(deg)) * 60.0
	if isLat {
		return fmt.Sprintf("%02d%010.7f", deg, min), dir
	}
	return fmt.Sprintf("%03d%010.7f", deg, min), dir
}

func TestReadNMEAUpsamplesTo10Hz(t *testing.T) {
	// three 1 Hz fixes walking north: 21 steps of 100 ms
	in := strings.NewReader(strings.Join([]string{
		gga(43200, 35.0000, 139.0, 10.0),
		gga(43201, 35.0001, 139.0, 10.0),
		gga(43202, 35.0002, 139.0, 10.0),
	}, "\n"))
	p, err := ReadNMEA(in)
	require.NoError(t, err)
	require.Equal(t, 21, p.Len())

	// midpoint of the first segment sits between the two fixes
	mid, ok := p.Position(5)
	require.True(t, ok)
	llh := geodesy.Ecef2Pos(mid)
	assert.InDelta(t, 35.00005, llh[0]*geodesy.R2D, 1e-6)
}

func TestReadNMEANonUniformTimestamps(t *testing.T) {
	// second fix arrives 2 s after the first: interpolation weights
	// follow the received timestamps
	in := strings.NewReader(strings.Join([]string{
		gga(43200, 35.0000, 139.0, 10.0),
		gga(43202, 35.0002, 139.0, 10.0),
	}, "\n"))
	p, err := ReadNMEA(in)
	require.NoError(t, err)
	require.Equal(t, 21, p.Len())

	q, ok := p.Position(10)
	require.True(t, ok)
	llh := geodesy.Ecef2Pos(q)
	assert.InDelta(t, 35.0001, llh[0]*geodesy.R2D, 1e-6)
}

func TestReadNMEASkipsUnusableLines(t *testing.T) {
	body := "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"
	in := strings.NewReader(strings.Join([]string{
		"$" + body + "*" + nmea.Checksum(body),
		gga(43200, 35.0, 139.0, 10.0),
		"garbage line",
	}, "\n"))
	p, err := ReadNMEA(in)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())
}

func TestReadNMEAEmptyStream(t *testing.T) {
	_, err := ReadNMEA(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadNMEADayBoundary(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		gga(86399, 35.0, 139.0, 10.0),
		gga(0, 35.0001, 139.0, 10.0),
	}, "\n"))
	p, err := ReadNMEA(in)
	require.NoError(t, err)
	// one second across midnight: 11 steps
	assert.Equal(t, 11, p.Len())
}
