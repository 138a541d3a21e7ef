// Package rinex reads RINEX version 2 GPS navigation files, yielding
// the broadcast ephemerides and Klobuchar header parameters the
// simulator consumes.
package rinex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bramburn/gpssimgo/pkg/gpssim/ephemeris"
	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
	"github.com/bramburn/gpssimgo/pkg/gpssim/iono"
)

// Nav is the parsed content of a navigation file
type Nav struct {
	Version float64
	Iono    *iono.Params // nil when the header carries no coefficients
	Ephs    []ephemeris.Record
}

// str2num extracts a float from the fixed-width field s[i:i+n],
// accepting FORTRAN D exponents. Blank fields parse to 0.
func str2num(s string, i, n int) float64 {
	if i < 0 || len(s) <= i {
		return 0.0
	}
	if i+n > len(s) {
		s = s[i:]
	} else {
		s = s[i : i+n]
	}
	nr := strings.NewReplacer("d", "E", "D", "E")
	str := strings.TrimSpace(nr.Replace(s))
	if str == "" {
		return 0.0
	}
	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0.0
	}
	return value
}

// decodeHeader consumes header lines up to END OF HEADER
func decodeHeader(rd *bufio.Reader, nav *Nav) error {
	ion := &iono.Params{}
	haveAlpha, haveBeta := false, false

	for {
		buff, err := rd.ReadString('\n')
		if len(buff) == 0 && err != nil {
			return fmt.Errorf("missing END OF HEADER")
		}
		if len(buff) < 61 {
			// short header line without a label column
			if err != nil {
				return fmt.Errorf("missing END OF HEADER")
			}
			continue
		}
		label := buff[60:]

		switch {
		case strings.Contains(label, "RINEX VERSION / TYPE"):
			nav.Version = str2num(buff, 0, 9)
			if nav.Version >= 3.0 {
				return fmt.Errorf("unsupported RINEX version %.2f", nav.Version)
			}
		case strings.Contains(label, "ION ALPHA"):
			for i, j := 0, 2; i < 4; i, j = i+1, j+12 {
				ion.Alpha[i] = str2num(buff, j, 12)
			}
			haveAlpha = true
		case strings.Contains(label, "ION BETA"):
			for i, j := 0, 2; i < 4; i, j = i+1, j+12 {
				ion.Beta[i] = str2num(buff, j, 12)
			}
			haveBeta = true
		case strings.Contains(label, "DELTA-UTC: A0,A1,T,W"):
			ion.A0 = str2num(buff, 3, 19)
			ion.A1 = str2num(buff, 22, 19)
			ion.Tot = int(str2num(buff, 41, 9))
			ion.WNt = int(str2num(buff, 50, 9))
		case strings.Contains(label, "LEAP SECONDS"):
			ion.LeapSecs = int(str2num(buff, 0, 6))
		case strings.Contains(label, "END OF HEADER"):
			if haveAlpha && haveBeta {
				ion.Valid = true
				nav.Iono = ion
			}
			return nil
		}

		if err != nil {
			return fmt.Errorf("missing END OF HEADER")
		}
	}
}

// decodeEph maps the 29 body fields of a version 2 GPS record
func decodeEph(prn int, toc gtime.GPSTime, data []float64) ephemeris.Record {
	var eph ephemeris.Record

	eph.PRN = prn
	eph.Toc = toc

	eph.Af0 = data[0]
	eph.Af1 = data[1]
	eph.Af2 = data[2]

	eph.IODE = int(data[3])
	eph.Crs = data[4]
	eph.DeltN = data[5]
	eph.M0 = data[6]
	eph.Cuc = data[7]
	eph.Ecc = data[8]
	eph.Cus = data[9]
	eph.SqrtA = data[10]
	eph.Cic = data[12]
	eph.Omg0 = data[13]
	eph.Cis = data[14]
	eph.I0 = data[15]
	eph.Crc = data[16]
	eph.Aop = data[17]
	eph.OmgD = data[18]
	eph.Idot = data[19]
	eph.CodeL2 = int(data[20])
	eph.URA = uraIndex(data[23])
	eph.Health = int(data[24])
	eph.Tgd = data[25]
	eph.IODC = int(data[26])
	eph.FitInt = data[28]

	// Toe seconds of week with the transmission week
	week := int(data[21])
	eph.Toe = gtime.GPSTime{Week: week, Sec: data[11]}.Norm()
	// resolve a week disagreement between toe and toc fields
	if dt := eph.Toe.Sub(toc); dt > gtime.SecondsInWeek/2 {
		eph.Toe.Week--
	} else if dt < -gtime.SecondsInWeek/2 {
		eph.Toe.Week++
	}
	return eph
}

// uraIndex converts a URA value in metres to the broadcast index
func uraIndex(v float64) int {
	uraEph := []float64{
		2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24.0, 48.0,
		96.0, 192.0, 384.0, 768.0, 1536.0, 3072.0, 6144.0,
	}
	for i, u := range uraEph {
		if v <= u {
			return i
		}
	}
	return 15
}

// decodeBody reads one 8-line ephemeris block; io.EOF signals the end
// of the file
func decodeBody(rd *bufio.Reader) (ephemeris.Record, error) {
	var data [32]float64

	// epoch line: PRN, toc, first three clock terms
	var first string
	for {
		buff, err := rd.ReadString('\n')
		if len(buff) == 0 {
			if err != nil {
				return ephemeris.Record{}, io.EOF
			}
			continue
		}
		if strings.TrimSpace(buff) == "" {
			if err != nil {
				return ephemeris.Record{}, io.EOF
			}
			continue
		}
		first = buff
		break
	}

	prn := int(str2num(first, 0, 2))
	toc := gtime.FromEpoch(
		int(str2num(first, 3, 2)), int(str2num(first, 6, 2)), int(str2num(first, 9, 2)),
		int(str2num(first, 12, 2)), int(str2num(first, 15, 2)), str2num(first, 17, 5))
	for j, idx := 0, 22; j < 3; j, idx = j+1, idx+19 {
		data[j] = str2num(first, idx, 19)
	}

	// seven continuation lines, four fields each
	i := 3
	for line := 0; line < 7; line++ {
		buff, err := rd.ReadString('\n')
		if len(buff) == 0 {
			return ephemeris.Record{}, fmt.Errorf("truncated ephemeris block for PRN %d", prn)
		}
		for j, idx := 0, 3; j < 4 && i < len(data); j, idx = j+1, idx+19 {
			data[i] = str2num(buff, idx, 19)
			i++
		}
		if err != nil && line < 6 {
			return ephemeris.Record{}, fmt.Errorf("truncated ephemeris block for PRN %d", prn)
		}
	}

	if prn < 1 || prn > 32 {
		return ephemeris.Record{}, fmt.Errorf("invalid PRN %d in navigation record", prn)
	}
	return decodeEph(prn, toc, data[:]), nil
}

// Parse reads a version 2 GPS navigation file
func Parse(r io.Reader) (*Nav, error) {
	rd := bufio.NewReader(r)
	nav := &Nav{}

	if err := decodeHeader(rd, nav); err != nil {
		return nil, err
	}
	for {
		eph, err := decodeBody(rd)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		nav.Ephs = append(nav.Ephs, eph)
	}
	if len(nav.Ephs) == 0 {
		return nil, fmt.Errorf("navigation file holds no GPS ephemerides")
	}
	return nav, nil
}

// ParseFile reads a navigation file from disk
func ParseFile(path string) (*Nav, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	nav, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nav, nil
}
