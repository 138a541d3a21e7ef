// Package nmea parses the NMEA GGA sentences accepted as a receiver
// trajectory input
package nmea

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sentence represents a parsed NMEA sentence
type Sentence struct {
	Raw      string   // Raw NMEA sentence
	Type     string   // Sentence type (e.g., GPGGA)
	Fields   []string // Fields after the type
	Checksum string   // Checksum of the sentence
}

// GGA represents a parsed GGA fix
type GGA struct {
	Seconds   float64 // UTC seconds of day
	Latitude  float64 // degrees, south negative
	Longitude float64 // degrees, west negative
	Quality   int     // fix quality (0 = invalid)
	NumSats   int
	HDOP      float64
	Altitude  float64 // antenna altitude above mean sea level (m)
	GeoidSep  float64 // geoid separation (m)
}

// EllipsoidalHeight returns the height above the WGS84 ellipsoid
func (g GGA) EllipsoidalHeight() float64 {
	return g.Altitude + g.GeoidSep
}

// Parse splits an NMEA sentence into type and fields, verifying the
// checksum when one is present
func Parse(sentence string) (Sentence, error) {
	result := Sentence{Raw: sentence}

	sentence = strings.TrimRight(sentence, "\r\n")
	if len(sentence) < 6 {
		return result, errors.New("sentence too short")
	}
	if sentence[0] != '$' {
		return result, errors.New("invalid start character")
	}

	data := sentence
	if pos := strings.LastIndex(sentence, "*"); pos != -1 && pos < len(sentence)-2 {
		data = sentence[:pos]
		result.Checksum = sentence[pos+1:]

		calc := Checksum(data[1:])
		if !strings.EqualFold(result.Checksum, calc) {
			return result, fmt.Errorf("checksum mismatch: got %s, expected %s", result.Checksum, calc)
		}
	}

	fields := strings.Split(data, ",")
	if len(fields) < 2 {
		return result, errors.New("not enough fields")
	}
	typeField := strings.TrimPrefix(fields[0], "$")
	if len(typeField) < 3 {
		return result, errors.New("invalid sentence type")
	}

	result.Type = typeField
	result.Fields = fields[1:]
	return result, nil
}

// Checksum computes the XOR checksum over the sentence body
func Checksum(data string) string {
	var sum uint8
	for i := 0; i < len(data); i++ {
		sum ^= data[i]
	}
	return fmt.Sprintf("%02X", sum)
}

// ParseLatLon converts an NMEA DDMM.MMMM coordinate to decimal degrees
func ParseLatLon(value, direction string) (float64, error) {
	if value == "" {
		return 0, errors.New("empty coordinate value")
	}
	coord, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate value: %s", value)
	}
	degrees := math.Floor(coord / 100.0)
	minutes := coord - degrees*100.0
	result := degrees + minutes/60.0

	if direction == "S" || direction == "W" {
		result = -result
	}
	return result, nil
}

// parseTimeOfDay converts HHMMSS.SSS to UTC seconds of day
func parseTimeOfDay(s string) (float64, error) {
	if len(s) < 6 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %s", s[0:2])
	}
	minute, err := strconv.Atoi(s[2:4])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %s", s[2:4])
	}
	sec, err := strconv.ParseFloat(s[4:], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid second: %s", s[4:])
	}
	return float64(hour*3600+minute*60) + sec, nil
}

// ParseGGA parses a GGA sentence into a fix
func ParseGGA(sentence string) (GGA, error) {
	var fix GGA

	parsed, err := Parse(sentence)
	if err != nil {
		return fix, err
	}
	if !strings.HasSuffix(parsed.Type, "GGA") {
		return fix, fmt.Errorf("not a GGA sentence: %s", parsed.Type)
	}
	if len(parsed.Fields) < 11 {
		return fix, errors.New("not enough fields in GGA sentence")
	}

	if fix.Seconds, err = parseTimeOfDay(parsed.Fields[0]); err != nil {
		return fix, err
	}
	if fix.Latitude, err = ParseLatLon(parsed.Fields[1], parsed.Fields[2]); err != nil {
		return fix, err
	}
	if fix.Longitude, err = ParseLatLon(parsed.Fields[3], parsed.Fields[4]); err != nil {
		return fix, err
	}
	if fix.Quality, err = strconv.Atoi(parsed.Fields[5]); err != nil {
		return fix, fmt.Errorf("invalid fix quality: %s", parsed.Fields[5])
	}
	if parsed.Fields[6] != "" {
		if fix.NumSats, err = strconv.Atoi(parsed.Fields[6]); err != nil {
			return fix, fmt.Errorf("invalid satellite count: %s", parsed.Fields[6])
		}
	}
	if parsed.Fields[7] != "" {
		if fix.HDOP, err = strconv.ParseFloat(parsed.Fields[7], 64); err != nil {
			return fix, fmt.Errorf("invalid HDOP: %s", parsed.Fields[7])
		}
	}
	if parsed.Fields[8] != "" {
		if fix.Altitude, err = strconv.ParseFloat(parsed.Fields[8], 64); err != nil {
			return fix, fmt.Errorf("invalid altitude: %s", parsed.Fields[8])
		}
	}
	if parsed.Fields[10] != "" {
		if fix.GeoidSep, err = strconv.ParseFloat(parsed.Fields[10], 64); err != nil {
			return fix, fmt.Errorf("invalid geoid separation: %s", parsed.Fields[10])
		}
	}
	return fix, nil
}
