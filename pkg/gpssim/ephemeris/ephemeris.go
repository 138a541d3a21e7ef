// Package ephemeris models GPS broadcast ephemerides and evaluates
// satellite position, velocity and clock bias from the Keplerian elements.
package ephemeris

import (
	"errors"
	"math"

	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
)

// Kepler solver limits
const (
	rtolKepler    = 1e-12 // convergence threshold (rad)
	maxIterKepler = 10
)

// MaxToeAge is the validity window around the time of ephemeris (s)
const MaxToeAge = 7200.0

// ErrKepler is returned when the eccentric-anomaly iteration fails to
// converge, which indicates a corrupt ephemeris record.
var ErrKepler = errors.New("kepler iteration did not converge")

// Record holds one broadcast ephemeris for one satellite
type Record struct {
	PRN int

	Toe gtime.GPSTime // time of ephemeris
	Toc gtime.GPSTime // time of clock

	SqrtA float64 // sqrt of semimajor axis (m^1/2)
	Ecc   float64 // eccentricity
	I0    float64 // inclination at reference time (rad)
	Idot  float64 // inclination rate (rad/s)
	Omg0  float64 // right ascension of ascending node (rad)
	OmgD  float64 // rate of right ascension (rad/s)
	Aop   float64 // argument of perigee (rad)
	M0    float64 // mean anomaly at reference time (rad)
	DeltN float64 // mean motion correction (rad/s)

	Cuc, Cus float64 // argument-of-latitude harmonic corrections (rad)
	Crc, Crs float64 // orbit-radius harmonic corrections (m)
	Cic, Cis float64 // inclination harmonic corrections (rad)

	Af0, Af1, Af2 float64 // clock polynomial (s, s/s, s/s^2)
	Tgd           float64 // group delay (s)

	IODE   int
	IODC   int
	Health int
	URA    int     // user range accuracy index
	CodeL2 int     // codes on L2 channel
	FitInt float64 // fit interval (h)
}

// Usable reports whether the record can serve at time t: healthy and
// within the ±2 h validity window of its TOE.
func (e *Record) Usable(t gtime.GPSTime) bool {
	return e.Health == 0 && math.Abs(t.Sub(e.Toe)) <= MaxToeAge
}

// ClockBias evaluates the satellite clock polynomial at t, without the
// relativistic term (added during Eval) and without TGD.
func (e *Record) ClockBias(t gtime.GPSTime) float64 {
	tk := t.Sub(e.Toc)
	return e.Af0 + e.Af1*tk + e.Af2*tk*tk
}

// solveKepler solves E - ecc*sin(E) = M for the eccentric anomaly by
// Newton iteration
func solveKepler(M, ecc float64) (float64, error) {
	E := M
	Ek := 0.0
	for it := 0; it < maxIterKepler; it++ {
		Ek = E
		E -= (E - ecc*math.Sin(E) - M) / (1.0 - ecc*math.Cos(E))
		if math.Abs(E-Ek) <= rtolKepler {
			return E, nil
		}
	}
	return 0, ErrKepler
}

/* broadcast ephemeris to satellite position/velocity/clock --------------------
* evaluate the keplerian elements at time t (gpst)
* args   : t    I   time of signal transmission (gpst)
* return : pos  O   satellite position (ecef) {x,y,z} (m)
*          vel  O   satellite velocity (ecef) {vx,vy,vz} (m/s)
*          dts  O   satellite clock bias (s), including relativistic
*                   correction and TGD
* notes  : velocity is derived analytically from the element rates
*-----------------------------------------------------------------------------*/
func (e *Record) Eval(t gtime.GPSTime) (pos, vel geodesy.Vec3, dts float64, err error) {
	a := e.SqrtA * e.SqrtA
	tk := t.Sub(e.Toe)

	n := math.Sqrt(geodesy.MuGPS/(a*a*a)) + e.DeltN
	M := e.M0 + n*tk

	E, err := solveKepler(M, e.Ecc)
	if err != nil {
		return pos, vel, 0, err
	}
	sinE := math.Sin(E)
	cosE := math.Cos(E)
	oneMinusECosE := 1.0 - e.Ecc*cosE
	Edot := n / oneMinusECosE

	// true anomaly and argument of latitude
	u := math.Atan2(math.Sqrt(1.0-e.Ecc*e.Ecc)*sinE, cosE-e.Ecc) + e.Aop
	udot := math.Sqrt(1.0-e.Ecc*e.Ecc) * Edot / oneMinusECosE

	sin2u := math.Sin(2.0 * u)
	cos2u := math.Cos(2.0 * u)

	// harmonic corrections and their rates
	uk := u + e.Cus*sin2u + e.Cuc*cos2u
	rk := a*oneMinusECosE + e.Crs*sin2u + e.Crc*cos2u
	ik := e.I0 + e.Idot*tk + e.Cis*sin2u + e.Cic*cos2u

	ukdot := udot * (1.0 + 2.0*(e.Cus*cos2u-e.Cuc*sin2u))
	rkdot := a*e.Ecc*sinE*Edot + 2.0*udot*(e.Crs*cos2u-e.Crc*sin2u)
	ikdot := e.Idot + 2.0*udot*(e.Cis*cos2u-e.Cic*sin2u)

	// orbital-plane position and its rates
	sinu := math.Sin(uk)
	cosu := math.Cos(uk)
	xp := rk * cosu
	yp := rk * sinu
	xpdot := rkdot*cosu - yp*ukdot
	ypdot := rkdot*sinu + xp*ukdot

	// corrected longitude of ascending node
	omgkdot := e.OmgD - geodesy.OmgE
	omgk := e.Omg0 + omgkdot*tk - geodesy.OmgE*e.Toe.Sec
	sino := math.Sin(omgk)
	coso := math.Cos(omgk)
	sini := math.Sin(ik)
	cosi := math.Cos(ik)

	pos[0] = xp*coso - yp*cosi*sino
	pos[1] = xp*sino + yp*cosi*coso
	pos[2] = yp * sini

	tmp := ypdot*cosi - pos[2]*ikdot
	vel[0] = -omgkdot*pos[1] + xpdot*coso - tmp*sino
	vel[1] = omgkdot*pos[0] + xpdot*sino + tmp*coso
	vel[2] = yp*cosi*ikdot + ypdot*sini

	// clock bias with relativistic correction, TGD removed for L1
	dts = e.ClockBias(t)
	dts -= 2.0 * math.Sqrt(geodesy.MuGPS*a) * e.Ecc * sinE / (geodesy.CLight * geodesy.CLight)
	dts -= e.Tgd

	return pos, vel, dts, nil
}
