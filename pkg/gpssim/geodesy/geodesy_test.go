package geodesy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPos2EcefKnownPoint(t *testing.T) {
	// Equator/prime meridian at zero height lies on the semimajor axis
	r := Pos2Ecef(Vec3{0, 0, 0})
	assert.InDelta(t, ReWGS84, r[0], 1e-6)
	assert.InDelta(t, 0.0, r[1], 1e-6)
	assert.InDelta(t, 0.0, r[2], 1e-6)

	// North pole
	r = Pos2Ecef(Vec3{PI / 2.0, 0, 0})
	assert.InDelta(t, 0.0, r[0], 1e-6)
	assert.InDelta(t, 6356752.314245, r[2], 1e-4)
}

func TestEcefPosRoundTrip(t *testing.T) {
	cases := []Vec3{
		{35.681298 * D2R, 139.766247 * D2R, 10.0},
		{-33.8 * D2R, 151.2 * D2R, 58.0},
		{64.1 * D2R, -21.9 * D2R, 30.0},
		{0.1 * D2R, 0.0, -20.0},
	}
	for _, pos := range cases {
		r := Pos2Ecef(pos)
		back := Ecef2Pos(r)
		r2 := Pos2Ecef(back)
		// closed loop within 1 mm
		assert.InDelta(t, 0.0, Norm(Sub(r, r2)), 1e-3)
		assert.InDelta(t, pos[0], back[0], 1e-9)
		assert.InDelta(t, pos[1], back[1], 1e-9)
		assert.InDelta(t, pos[2], back[2], 1e-3)
	}
}

func TestSatAzElOverhead(t *testing.T) {
	pos := Vec3{35.0 * D2R, 139.0 * D2R, 0.0}
	rx := Pos2Ecef(pos)

	// A satellite straight up: scale the receiver vector outward
	up := rx
	n := Norm(up)
	for i := range up {
		up[i] *= (n + 20200e3) / n
	}
	_, e := LOS(up, rx)
	_, el := SatAzEl(pos, e)
	assert.InDelta(t, PI/2.0, el, 1e-3)
}

func TestSatAzElDueNorthHorizon(t *testing.T) {
	pos := Vec3{0.0, 0.0, 0.0}
	rx := Pos2Ecef(pos)

	// Target on the polar axis: due north of a receiver at the equator
	sat := Vec3{0, 0, 7000e3}
	_, e := LOS(sat, rx)
	az, el := SatAzEl(pos, e)
	assert.InDelta(t, 0.0, az, 1e-6)
	assert.True(t, el < 0.0) // about 42 deg below the tangent plane
}

func TestRotZ(t *testing.T) {
	v := Vec3{1, 0, 0}
	r := RotZ(v, PI/2.0)
	assert.InDelta(t, 0.0, r[0], 1e-12)
	assert.InDelta(t, -1.0, r[1], 1e-12)

	// small-angle rotation preserves the norm
	r = RotZ(Vec3{26560e3, 1200e3, -300e3}, OmgE*0.07)
	assert.InDelta(t, Norm(Vec3{26560e3, 1200e3, -300e3}), Norm(r), 1e-6)
}

func TestLOSUnitVector(t *testing.T) {
	r, e := LOS(Vec3{20000e3, 5000e3, 10000e3}, Vec3{-3000e3, 4000e3, 3500e3})
	assert.InDelta(t, 1.0, Norm(e), 1e-12)
	assert.True(t, r > 20000e3)
	assert.True(t, math.Abs(r-Norm(Vec3{23000e3, 1000e3, 6500e3})) < 1e-6)
}
