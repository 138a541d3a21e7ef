// Package navmsg assembles GPS L1 C/A navigation-message subframes with
// IS-GPS-200 parity encoding from a broadcast ephemeris.
package navmsg

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/bramburn/gpssimgo/pkg/gpssim/ephemeris"
	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/iono"
)

// Message framing constants
const (
	WordsPerSubframe = 10
	BitsPerWord      = 30
	SubframeBits     = WordsPerSubframe * BitsPerWord
	SubframeSecs     = 6.0
	FrameSecs        = 30.0

	preambleWord = 0x8B0000 << 6
)

// Field scale factors (powers of two per IS-GPS-200)
const (
	pow2M5  = 0.03125
	pow2M19 = 1.907348632812500e-6
	pow2M24 = 5.960464477539063e-8
	pow2M27 = 7.450580596923828e-9
	pow2M29 = 1.862645149230957e-9
	pow2M30 = 9.313225746154785e-10
	pow2M31 = 4.656612873077393e-10
	pow2M33 = 1.164153218269348e-10
	pow2M43 = 1.136868377216160e-13
	pow2M50 = 8.881784197001252e-16
	pow2M55 = 2.775557561562891e-17
)

// parity bit masks for D25..D30 over the 24 data bits in bits 29..6
var bmask = [6]uint32{
	0x3B1F3480, 0x1D8F9A40, 0x2EC7CD00, 0x1763E680, 0x2BB1F340, 0x0B7A89C0,
}

// encodeParity computes the six parity bits of a 30-bit word. The source
// carries the previous word's D29/D30 in bits 31..30 and the 24 data bits
// in bits 29..6. With nib set (words 2 and 10), the two non-information
// bits are solved so that the word ends with D29=D30=0.
func encodeParity(source uint32, nib bool) uint32 {
	d := source & 0x3FFFFFC0
	d29 := (source >> 31) & 0x1
	d30 := (source >> 30) & 0x1

	if nib {
		if (d30+uint32(bits.OnesCount32(bmask[4]&d)))%2 != 0 {
			d ^= 0x1 << 6
		}
		if (d29+uint32(bits.OnesCount32(bmask[5]&d)))%2 != 0 {
			d ^= 0x1 << 7
		}
	}

	word := d
	if d30 != 0 {
		word ^= 0x3FFFFFC0
	}
	word |= ((d29 + uint32(bits.OnesCount32(bmask[0]&d))) % 2) << 5
	word |= ((d30 + uint32(bits.OnesCount32(bmask[1]&d))) % 2) << 4
	word |= ((d29 + uint32(bits.OnesCount32(bmask[2]&d))) % 2) << 3
	word |= ((d30 + uint32(bits.OnesCount32(bmask[3]&d))) % 2) << 2
	word |= ((d30 + uint32(bits.OnesCount32(bmask[4]&d))) % 2) << 1
	word |= (d29 + uint32(bits.OnesCount32(bmask[5]&d))) % 2

	return word & 0x3FFFFFFF
}

// scaled converts v to a two's-complement field of n bits with the given
// scale factor
func scaled(v, scale float64, n uint) uint32 {
	i := int64(math.Round(v / scale))
	return uint32(i) & uint32(uint64(1)<<n-1)
}

// scaledU converts a non-negative v to an unsigned field
func scaledU(v, scale float64, n uint) uint32 {
	i := uint64(v / scale)
	return uint32(i) & uint32(uint64(1)<<n-1)
}

// Message holds the prepared data words for one satellite's 30 s frame.
// The HOW time-of-week and parity are applied per subframe on emission.
type Message struct {
	sbf [5][WordsPerSubframe]uint32
}

// New assembles the five subframes from the ephemeris and, when present,
// the ionosphere/UTC parameters (subframe 4 page 18).
func New(eph *ephemeris.Record, ion *iono.Params) *Message {
	m := &Message{}

	wn := scaledU(float64(eph.Toe.Week%1024), 1, 10)
	toe := scaledU(eph.Toe.Sec, 16.0, 16)
	toc := scaledU(eph.Toc.Sec, 16.0, 16)
	iode := uint32(eph.IODE) & 0xFF
	iodc := uint32(eph.IODC) & 0x3FF
	ura := uint32(eph.URA) & 0xF
	hlth := uint32(eph.Health) & 0x3F

	deltan := scaled(eph.DeltN, pow2M43*geodesy.PI, 16)
	cuc := scaled(eph.Cuc, pow2M29, 16)
	cus := scaled(eph.Cus, pow2M29, 16)
	cic := scaled(eph.Cic, pow2M29, 16)
	cis := scaled(eph.Cis, pow2M29, 16)
	crc := scaled(eph.Crc, pow2M5, 16)
	crs := scaled(eph.Crs, pow2M5, 16)
	ecc := scaledU(eph.Ecc, pow2M33, 32)
	sqrta := scaledU(eph.SqrtA, pow2M19, 32)
	m0 := scaled(eph.M0, pow2M31*geodesy.PI, 32)
	omg0 := scaled(eph.Omg0, pow2M31*geodesy.PI, 32)
	inc0 := scaled(eph.I0, pow2M31*geodesy.PI, 32)
	aop := scaled(eph.Aop, pow2M31*geodesy.PI, 32)
	omgdot := scaled(eph.OmgD, pow2M43*geodesy.PI, 24)
	idot := scaled(eph.Idot, pow2M43*geodesy.PI, 14)
	af0 := scaled(eph.Af0, pow2M31, 22)
	af1 := scaled(eph.Af1, pow2M43, 16)
	af2 := scaled(eph.Af2, pow2M55, 8)
	tgd := scaled(eph.Tgd, pow2M31, 8)

	// Subframe 1: clock and health
	m.sbf[0][0] = preambleWord
	m.sbf[0][1] = 0x1 << 8
	m.sbf[0][2] = (wn << 20) | (ura << 14) | (hlth << 8) | ((iodc >> 8) << 6)
	m.sbf[0][3] = 0
	m.sbf[0][4] = 0
	m.sbf[0][5] = 0
	m.sbf[0][6] = tgd << 6
	m.sbf[0][7] = ((iodc & 0xFF) << 22) | (toc << 6)
	m.sbf[0][8] = (af2 << 22) | (af1 << 6)
	m.sbf[0][9] = af0 << 8

	// Subframe 2: orbit part 1
	m.sbf[1][0] = preambleWord
	m.sbf[1][1] = 0x2 << 8
	m.sbf[1][2] = (iode << 22) | (crs << 6)
	m.sbf[1][3] = (deltan << 14) | (((m0 >> 24) & 0xFF) << 6)
	m.sbf[1][4] = (m0 & 0xFFFFFF) << 6
	m.sbf[1][5] = (cuc << 14) | (((ecc >> 24) & 0xFF) << 6)
	m.sbf[1][6] = (ecc & 0xFFFFFF) << 6
	m.sbf[1][7] = (cus << 14) | (((sqrta >> 24) & 0xFF) << 6)
	m.sbf[1][8] = (sqrta & 0xFFFFFF) << 6
	m.sbf[1][9] = toe << 14

	// Subframe 3: orbit part 2
	m.sbf[2][0] = preambleWord
	m.sbf[2][1] = 0x3 << 8
	m.sbf[2][2] = (cic << 14) | (((omg0 >> 24) & 0xFF) << 6)
	m.sbf[2][3] = (omg0 & 0xFFFFFF) << 6
	m.sbf[2][4] = (cis << 14) | (((inc0 >> 24) & 0xFF) << 6)
	m.sbf[2][5] = (inc0 & 0xFFFFFF) << 6
	m.sbf[2][6] = (crc << 14) | (((aop >> 24) & 0xFF) << 6)
	m.sbf[2][7] = (aop & 0xFFFFFF) << 6
	m.sbf[2][8] = omgdot << 6
	m.sbf[2][9] = (iode << 22) | (idot << 8)

	const dataID = 0x1

	// Subframe 4: page 18 (iono/UTC) when available, page 25 otherwise
	m.sbf[3][0] = preambleWord
	m.sbf[3][1] = 0x4 << 8
	if ion != nil && ion.Valid {
		const svID = 56
		a0 := scaled(ion.Alpha[0], pow2M30, 8)
		a1 := scaled(ion.Alpha[1], pow2M27, 8)
		a2 := scaled(ion.Alpha[2], pow2M24, 8)
		a3 := scaled(ion.Alpha[3], pow2M24, 8)
		b0 := scaled(ion.Beta[0], 2048.0, 8)
		b1 := scaled(ion.Beta[1], 16384.0, 8)
		b2 := scaled(ion.Beta[2], 65536.0, 8)
		b3 := scaled(ion.Beta[3], 65536.0, 8)
		ua0 := scaled(ion.A0, pow2M30, 32)
		ua1 := scaled(ion.A1, pow2M50, 24)
		tot := scaledU(float64(ion.Tot), 4096.0, 8)
		wnt := uint32(ion.WNt) & 0xFF
		dtls := uint32(ion.LeapSecs) & 0xFF
		wnlsf := uint32(ion.WNlsf) & 0xFF
		dn := uint32(ion.DN) & 0xFF

		m.sbf[3][2] = (dataID << 28) | (svID << 22) | (a0 << 14) | (a1 << 6)
		m.sbf[3][3] = (a2 << 22) | (a3 << 14) | (b0 << 6)
		m.sbf[3][4] = (b1 << 22) | (b2 << 14) | (b3 << 6)
		m.sbf[3][5] = ua1 << 6
		m.sbf[3][6] = ((ua0 >> 8) & 0xFFFFFF) << 6
		m.sbf[3][7] = ((ua0 & 0xFF) << 22) | (tot << 14) | (wnt << 6)
		m.sbf[3][8] = (dtls << 22) | (wnlsf << 14) | (dn << 6)
		m.sbf[3][9] = dtls << 22
	} else {
		const svID = 63
		m.sbf[3][2] = (dataID << 28) | (svID << 22)
	}

	// Subframe 5: page 25, almanac reference time
	{
		const svID = 51
		toa := scaledU(eph.Toe.Sec, 4096.0, 8)
		wna := uint32(eph.Toe.Week%256) & 0xFF
		m.sbf[4][0] = preambleWord
		m.sbf[4][1] = 0x5 << 8
		m.sbf[4][2] = (dataID << 28) | (svID << 22) | (toa << 14) | (wna << 6)
	}

	return m
}

// SubframeIndex returns which subframe (0..4) covers the given
// time-of-week second count
func SubframeIndex(tow float64) int {
	return (int(tow) % 30) / 6
}

// Subframe emits the 300 parity-encoded bits of the subframe that starts
// at time-of-week tow (s), as ±1 values ready for BPSK modulation
// (bit 1 maps to -1). tow must be aligned to a 6 s subframe boundary.
// The HOW carries the truncated TOW count of the following subframe.
func (m *Message) Subframe(tow float64) ([SubframeBits]int8, error) {
	var out [SubframeBits]int8
	if tow < 0 || math.Mod(tow, SubframeSecs) != 0 {
		return out, fmt.Errorf("tow %.3f not aligned to a subframe boundary", tow)
	}
	isbf := SubframeIndex(tow)
	towCount := (uint32(tow/SubframeSecs) + 1) % 100800

	prev := uint32(0)
	for iwrd := 0; iwrd < WordsPerSubframe; iwrd++ {
		word := m.sbf[isbf][iwrd]
		if iwrd == 1 {
			word |= (towCount & 0x1FFFF) << 13
		}
		word |= prev << 30
		word = encodeParity(word, iwrd == 1 || iwrd == 9)
		prev = word & 0x3

		for b := 0; b < BitsPerWord; b++ {
			if word&(1<<(29-uint(b))) != 0 {
				out[iwrd*BitsPerWord+b] = -1
			} else {
				out[iwrd*BitsPerWord+b] = 1
			}
		}
	}
	return out, nil
}
