// Package channel models the per-satellite tracking state of the
// simulator: geometry, code/carrier NCOs and navigation-bit scheduling.
package channel

import (
	"math"

	"github.com/bramburn/gpssimgo/pkg/gpssim/cacode"
	"github.com/bramburn/gpssimgo/pkg/gpssim/ephemeris"
	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
	"github.com/bramburn/gpssimgo/pkg/gpssim/iono"
	"github.com/bramburn/gpssimgo/pkg/gpssim/navmsg"
)

// State of a channel
type State int

const (
	Idle State = iota
	Acquired
)

// navBitSecs is the duration of one navigation data bit (20 C/A periods)
const (
	codePeriodsPerBit = 20
	codePeriodSecs    = 1e-3
	navBitSecs        = codePeriodsPerBit * codePeriodSecs
)

// Geometry holds the satellite/receiver geometry for one channel update
type Geometry struct {
	Pseudorange float64 // m, includes clock and iono terms
	Range       float64 // geometric range (m)
	Azimuth     float64 // rad
	Elevation   float64 // rad
	Doppler     float64 // Hz, positive for a closing satellite
	SatPos      geodesy.Vec3
	SatVel      geodesy.Vec3
	ClockBias   float64 // s
	IonoDelay   float64 // m
}

/* satellite/receiver geometry -------------------------------------------------
* solve the light-time equation and derive the channel observables
* args   : eph    I   broadcast ephemeris
*          t      I   receiver time (gpst)
*          rxPos  I   receiver position (ecef) (m)
*          rxVel  I   receiver velocity (ecef) (m/s)
*          ion    I   klobuchar parameters (nil: no iono delay)
* return : geometry, or the kepler error for a corrupt ephemeris
* notes  : the satellite position at transmission is rotated about Z by
*          OmgE*tau to account for earth rotation during transit
*-----------------------------------------------------------------------------*/
func ComputeGeometry(eph *ephemeris.Record, t gtime.GPSTime, rxPos, rxVel geodesy.Vec3, ion *iono.Params) (Geometry, error) {
	var g Geometry

	tau := 0.070
	var pos, vel geodesy.Vec3
	var dts, rho float64
	var e geodesy.Vec3
	for i := 0; i < 10; i++ {
		var err error
		pos, vel, dts, err = eph.Eval(t.Add(-tau))
		if err != nil {
			return g, err
		}
		theta := geodesy.OmgE * tau
		pos = geodesy.RotZ(pos, theta)
		vel = geodesy.RotZ(vel, theta)
		rho, e = geodesy.LOS(pos, rxPos)
		next := rho/geodesy.CLight - dts
		if math.Abs(next-tau) < 1e-12 {
			tau = next
			break
		}
		tau = next
	}

	llh := geodesy.Ecef2Pos(rxPos)
	az, el := geodesy.SatAzEl(llh, e)

	g.Range = rho
	g.SatPos = pos
	g.SatVel = vel
	g.ClockBias = dts
	g.Azimuth = az
	g.Elevation = el

	rel := geodesy.Sub(vel, rxVel)
	g.Doppler = -geodesy.Dot(rel, e) / geodesy.LambdaL1

	g.Pseudorange = rho - geodesy.CLight*dts
	if ion != nil {
		g.IonoDelay = ion.Delay(t, llh, az, el)
		g.Pseudorange += g.IonoDelay
	}
	return g, nil
}

// Channel is the tracking state for one satellite
type Channel struct {
	PRN   int
	State State

	Eph *ephemeris.Record

	CodePhase    float64 // chips [0,1023)
	CarrierPhase float64 // rad [0,2pi)
	CodeRate     float64 // chips per sample
	CarrierRate  float64 // rad per sample
	Amp          float64

	Geom Geometry

	code *[cacode.Len]int8
	msg  *navmsg.Message

	sbf    [navmsg.SubframeBits]int8
	ibit   int     // bit index within the subframe
	icode  int     // code period count within the bit
	towSub float64 // time of week of the current subframe start
	navBit int8

	codeComp float64 // compensation term of the code-phase sum
}

// New creates an idle channel for prn with its precomputed code table
func New(prn int, code *[cacode.Len]int8) *Channel {
	return &Channel{PRN: prn, State: Idle, code: code, navBit: 1}
}

// NavBit returns the sign of the current navigation data bit
func (c *Channel) NavBit() int8 { return c.navBit }

// TowSub returns the time of week of the subframe being transmitted
func (c *Channel) TowSub() float64 { return c.towSub }

// Acquire initialises the code/carrier state for a satellite entering
// view. The code phase and navigation-bit position are derived from the
// signal's time of transmission so that the emitted stream is aligned to
// the satellite clock.
func (c *Channel) Acquire(eph *ephemeris.Record, ion *iono.Params, t gtime.GPSTime, g Geometry) error {
	c.Eph = eph
	c.Geom = g
	c.msg = navmsg.New(eph, ion)

	// time of transmission within the week
	ttx := t.Sec - g.Pseudorange/geodesy.CLight
	for ttx < 0.0 {
		ttx += gtime.SecondsInWeek
	}

	tsub := math.Mod(ttx, navmsg.SubframeSecs)
	c.towSub = ttx - tsub
	var err error
	c.sbf, err = c.msg.Subframe(c.towSub)
	if err != nil {
		return err
	}

	c.ibit = int(tsub / navBitSecs)
	if c.ibit >= navmsg.SubframeBits {
		c.ibit = navmsg.SubframeBits - 1
	}
	tbit := tsub - float64(c.ibit)*navBitSecs
	c.icode = int(tbit / codePeriodSecs)
	if c.icode >= codePeriodsPerBit {
		c.icode = codePeriodsPerBit - 1
	}
	c.CodePhase = math.Mod(tsub/codePeriodSecs, 1.0) * cacode.Len

	// carrier phase from the fractional carrier cycles over the range
	cyc := g.Pseudorange / geodesy.LambdaL1
	c.CarrierPhase = (cyc - math.Floor(cyc)) * 2.0 * geodesy.PI
	c.navBit = c.sbf[c.ibit]
	c.State = Acquired
	return nil
}

// Rebind switches the channel to a fresh ephemeris record without
// disturbing code/carrier phase continuity. The navigation message is
// regenerated and the current subframe re-emitted from the new data.
func (c *Channel) Rebind(eph *ephemeris.Record, ion *iono.Params) {
	c.Eph = eph
	c.msg = navmsg.New(eph, ion)
	c.sbf, _ = c.msg.Subframe(c.towSub)
	c.navBit = c.sbf[c.ibit]
}

// Release returns the channel to idle, keeping the PRN and code table
func (c *Channel) Release() {
	c.State = Idle
	c.Eph = nil
	c.msg = nil
}

// Update applies a fresh geometry to the channel rates. fs is the
// sampling frequency (Hz). The code and carrier phases are continuous
// across updates; only their rates change.
func (c *Channel) Update(g Geometry, fs float64) {
	c.Geom = g
	c.CodeRate = geodesy.CodeFreq * (1.0 + g.Doppler/geodesy.FreqL1) / fs
	c.CarrierRate = 2.0 * geodesy.PI * g.Doppler / fs
}

// Step emits the channel's I/Q contribution for one sample and advances
// the code and carrier NCOs. Must only be called on an acquired channel.
func (c *Channel) Step() (i, q float64) {
	s := float64(c.code[int(c.CodePhase)]) * float64(c.navBit) * c.Amp
	i = s * math.Cos(c.CarrierPhase)
	q = s * math.Sin(c.CarrierPhase)

	// compensated summation keeps the accumulated phase within 1e-9 chip
	// of start + n*CodeRate over a frame
	y := c.CodeRate - c.codeComp
	sum := c.CodePhase + y
	c.codeComp = (sum - c.CodePhase) - y
	c.CodePhase = sum
	if c.CodePhase >= cacode.Len {
		c.CodePhase -= cacode.Len
		c.advanceCodePeriod()
	}
	c.CarrierPhase += c.CarrierRate
	if c.CarrierPhase >= 2.0*geodesy.PI {
		c.CarrierPhase -= 2.0 * geodesy.PI
	} else if c.CarrierPhase < 0.0 {
		c.CarrierPhase += 2.0 * geodesy.PI
	}
	return i, q
}

// advanceCodePeriod moves the navigation-bit state machine forward by one
// 1 ms code period, crossing bit and subframe boundaries as needed
func (c *Channel) advanceCodePeriod() {
	c.icode++
	if c.icode < codePeriodsPerBit {
		return
	}
	c.icode = 0
	c.ibit++
	if c.ibit >= navmsg.SubframeBits {
		c.ibit = 0
		c.towSub += navmsg.SubframeSecs
		if c.towSub >= gtime.SecondsInWeek {
			c.towSub -= gtime.SecondsInWeek
		}
		// towSub stays 6 s aligned, so this cannot fail
		c.sbf, _ = c.msg.Subframe(c.towSub)
	}
	c.navBit = c.sbf[c.ibit]
}
