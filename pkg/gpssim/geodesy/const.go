package geodesy

import "math"

// WGS-84 ellipsoid and GPS system constants
const (
	PI = math.Pi

	ReWGS84 = 6378137.0           // earth semimajor axis (m)
	FeWGS84 = 1.0 / 298.257223563 // earth flattening

	CLight = 299792458.0  // speed of light (m/s)
	MuGPS  = 3.986005e14  // earth gravitational constant for GPS (m^3/s^2)
	OmgE   = 7.2921151467e-5 // earth angular velocity (rad/s)

	FreqL1   = 1.57542e9 // L1 carrier frequency (Hz)
	LambdaL1 = CLight / FreqL1

	CodeFreq = 1.023e6 // C/A code chipping rate (chip/s)
	CodeLen  = 1023    // C/A code length (chip)

	D2R = PI / 180.0
	R2D = 180.0 / PI
)
