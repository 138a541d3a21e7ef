// Package iono implements the Klobuchar broadcast ionosphere model
package iono

import (
	"math"

	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
)

// Params holds the eight Klobuchar coefficients from the navigation
// message header, plus the UTC parameters broadcast alongside them.
type Params struct {
	Alpha [4]float64 // amplitude terms (s, s/sc, s/sc^2, s/sc^3)
	Beta  [4]float64 // period terms (s, s/sc, s/sc^2, s/sc^3)

	A0, A1   float64 // UTC polynomial
	Tot      int     // reference time for UTC data (s)
	WNt      int     // UTC reference week
	LeapSecs int     // delta time due to leap seconds
	WNlsf    int     // week of next leap-second event
	DN       int     // day of next leap-second event

	Valid bool // alpha/beta coefficients present
}

/* klobuchar ionospheric delay -------------------------------------------------
* compute the L1 ionospheric group delay from broadcast coefficients
* args   : t     I   time (gpst)
*          pos   I   receiver geodetic position {lat,lon,h} (rad,m)
*          az,el I   satellite azimuth/elevation (rad)
* return : ionospheric delay (L1) (m)
*-----------------------------------------------------------------------------*/
func (p *Params) Delay(t gtime.GPSTime, pos geodesy.Vec3, az, el float64) float64 {
	if !p.Valid || pos[2] < -1e3 || el <= 0.0 {
		return 0.0
	}

	/* earth centered angle (semi-circle) */
	psi := 0.0137/(el/geodesy.PI+0.11) - 0.022

	/* subionospheric latitude/longitude (semi-circle) */
	phi := pos[0]/geodesy.PI + psi*math.Cos(az)
	if phi > 0.416 {
		phi = 0.416
	} else if phi < -0.416 {
		phi = -0.416
	}
	lam := pos[1]/geodesy.PI + psi*math.Sin(az)/math.Cos(phi*geodesy.PI)

	/* geomagnetic latitude (semi-circle) */
	phi += 0.064 * math.Cos((lam-1.617)*geodesy.PI)

	/* local time (s) */
	tt := 43200.0*lam + t.Sec
	tt -= math.Floor(tt/86400.0) * 86400.0

	/* slant factor */
	f := 1.0 + 16.0*math.Pow(0.53-el/geodesy.PI, 3.0)

	amp := p.Alpha[0] + phi*(p.Alpha[1]+phi*(p.Alpha[2]+phi*p.Alpha[3]))
	per := p.Beta[0] + phi*(p.Beta[1]+phi*(p.Beta[2]+phi*p.Beta[3]))
	if amp < 0.0 {
		amp = 0.0
	}
	if per < 72000.0 {
		per = 72000.0
	}
	x := 2.0 * geodesy.PI * (tt - 50400.0) / per
	if math.Abs(x) < 1.57 {
		return geodesy.CLight * f * (5e-9 + amp*(1.0+x*x*(-0.5+x*x/24.0)))
	}
	return geodesy.CLight * f * 5e-9
}
