package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramburn/gpssimgo/pkg/gpssim/ephemeris"
	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
)

func TestNormalizeArgs(t *testing.T) {
	assert.Equal(t, []string{"-p=-1", "-d", "30"},
		normalizeArgs([]string{"-p", "-d", "30"}))
	assert.Equal(t, []string{"-p=63", "-d", "30"},
		normalizeArgs([]string{"-p", "63", "-d", "30"}))
	assert.Equal(t, []string{"-d", "30", "-p=-1"},
		normalizeArgs([]string{"-d", "30", "-p"}))
	assert.Equal(t, []string{"-p=17"},
		normalizeArgs([]string{"-p=17"}))
}

func TestParseTriple(t *testing.T) {
	v, err := parseTriple("35.681298,139.766247,10.0")
	require.NoError(t, err)
	assert.InDelta(t, 139.766247, v[1], 1e-12)

	_, err = parseTriple("1,2")
	assert.Error(t, err)
	_, err = parseTriple("a,b,c")
	assert.Error(t, err)
}

func TestTrajectoryOptionExclusivity(t *testing.T) {
	o := options{}
	_, err := o.trajectory()
	assert.Error(t, err)

	o = options{staticLLH: "35,139,10", staticEcef: "1,2,3"}
	_, err = o.trajectory()
	assert.Error(t, err)

	o = options{staticLLH: "35,139,10"}
	src, err := o.trajectory()
	require.NoError(t, err)
	_, ok := src.Position(0)
	assert.True(t, ok)
}

// --- end-to-end run against a synthetic navigation file ---

func d19(v float64) string {
	return strings.Replace(fmt.Sprintf("%19.12E", v), "E", "D", 1)
}

func hdr(content, label string) string {
	return fmt.Sprintf("%-60s%s\n", content, label)
}

func navFixture() string {
	vals := [29]float64{
		-1.2345e-4, -1.0e-11, 0.0,
		44, -44.8, 4.5e-9, -0.41,
		-1.1e-6, 0.0112, 8.2e-6, 5153.695,
		518400.0, 1.0e-7, 1.25, -5.2e-8,
		0.96, 231.5, 0.74, -8.1e-9,
		4.2e-10, 1.0, 2190.0, 0.0,
		2.0, 0.0, 5.1e-9, 44,
		518400.0, 4.0,
	}
	var b strings.Builder
	b.WriteString(hdr("     2.10           N: GPS NAV DATA", "RINEX VERSION / TYPE"))
	b.WriteString(hdr(fmt.Sprintf("  %12s%12s%12s%12s",
		"0.1118D-07", "-0.7451D-08", "-0.5961D-07", "0.1192D-06"), "ION ALPHA"))
	b.WriteString(hdr(fmt.Sprintf("  %12s%12s%12s%12s",
		"0.1167D+06", "-0.2294D+06", "-0.1311D+06", "0.1049D+07"), "ION BETA"))
	b.WriteString(hdr("    18", "LEAP SECONDS"))
	b.WriteString(hdr("", "END OF HEADER"))

	fmt.Fprintf(&b, "%2d%3d%3d%3d%3d%3d%5.1f%s%s%s\n",
		1, 22, 1, 1, 0, 0, 0.0, d19(vals[0]), d19(vals[1]), d19(vals[2]))
	for line := 0; line < 7; line++ {
		b.WriteString("   ")
		for j := 0; j < 4; j++ {
			idx := 3 + line*4 + j
			if idx < len(vals) {
				b.WriteString(d19(vals[idx]))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// fixtureReceiver computes the subsatellite point of the fixture record
func fixtureReceiver(t *testing.T) string {
	t.Helper()
	toe := gtime.GPSTime{Week: 2190, Sec: 518400.0}
	eph := ephemeris.Record{
		PRN: 1, Toe: toe, Toc: toe,
		SqrtA: 5153.695, Ecc: 0.0112, I0: 0.96, Idot: 4.2e-10,
		Omg0: 1.25, OmgD: -8.1e-9, Aop: 0.74, M0: -0.41, DeltN: 4.5e-9,
		Cuc: -1.1e-6, Cus: 8.2e-6, Crc: 231.5, Crs: -44.8,
		Cic: 1.0e-7, Cis: -5.2e-8,
	}
	pos, _, _, err := eph.Eval(toe)
	require.NoError(t, err)
	llh := geodesy.Ecef2Pos(pos)
	return fmt.Sprintf("%.6f,%.6f,100.0", llh[0]*geodesy.R2D, llh[1]*geodesy.R2D)
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	navPath := filepath.Join(dir, "brdc0010.22n")
	outPath := filepath.Join(dir, "gpssim.bin")
	require.NoError(t, os.WriteFile(navPath, []byte(navFixture()), 0o644))

	code := run([]string{
		"-e", navPath,
		"-l", fixtureReceiver(t),
		"-t", "2022/01/01,00:00:00",
		"-d", "0.2",
		"-s", "1000000",
		"-b", "8",
		"-o", outPath,
	})
	require.Equal(t, 0, code)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	// two 100 ms frames of 8-bit interleaved I/Q at 1 Msps
	assert.Len(t, data, 2*2*100000)

	nonzero := 0
	for _, v := range data {
		if v != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, len(data)/8)
}

func TestRunUsageErrors(t *testing.T) {
	assert.Equal(t, 1, run([]string{}))

	dir := t.TempDir()
	navPath := filepath.Join(dir, "nav.22n")
	require.NoError(t, os.WriteFile(navPath, []byte(navFixture()), 0o644))

	// no position given
	assert.Equal(t, 1, run([]string{"-e", navPath}))

	// conflicting positions
	assert.Equal(t, 1, run([]string{
		"-e", navPath, "-l", "35,139,10", "-c", "1,2,3",
	}))

	// bad bit width
	assert.Equal(t, 1, run([]string{
		"-e", navPath, "-l", "35,139,10", "-t", "2022/01/01,00:00:00", "-b", "4",
	}))
}

func TestRunMissingNavFile(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-e", filepath.Join(t.TempDir(), "nope.22n"), "-l", "35,139,10"}))
}
