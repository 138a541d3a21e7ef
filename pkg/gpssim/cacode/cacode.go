// Package cacode generates the 1023-chip C/A Gold codes for GPS PRN 1..32
package cacode

import "fmt"

// Code length in chips
const Len = 1023

// delay holds the per-PRN G2 phase-selector taps (1-based register stages)
var delay = [33][2]int{
	{}, // PRN 0 unused
	{2, 6}, {3, 7}, {4, 8}, {5, 9}, {1, 9}, {2, 10}, {1, 8}, {2, 9},
	{3, 10}, {2, 3}, {3, 4}, {5, 6}, {6, 7}, {7, 8}, {8, 9}, {9, 10},
	{1, 4}, {2, 5}, {3, 6}, {4, 7}, {5, 8}, {6, 9}, {1, 3}, {4, 6},
	{5, 7}, {6, 8}, {7, 9}, {8, 10}, {1, 6}, {2, 7}, {3, 8}, {4, 9},
}

// Generate returns the C/A code for the given PRN as ±1 chips,
// with chip bit 0 mapped to +1 and bit 1 to -1.
func Generate(prn int) ([Len]int8, error) {
	var code [Len]int8
	if prn < 1 || prn > 32 {
		return code, fmt.Errorf("invalid PRN %d", prn)
	}

	var g1, g2 [10]int
	for i := range g1 {
		g1[i] = 1
		g2[i] = 1
	}
	t1, t2 := delay[prn][0]-1, delay[prn][1]-1

	for i := 0; i < Len; i++ {
		chip := g1[9] ^ g2[t1] ^ g2[t2]
		if chip == 0 {
			code[i] = 1
		} else {
			code[i] = -1
		}

		// G1 feedback taps 3,10; G2 feedback taps 2,3,6,8,9,10
		f1 := g1[2] ^ g1[9]
		f2 := g2[1] ^ g2[2] ^ g2[5] ^ g2[7] ^ g2[8] ^ g2[9]
		copy(g1[1:], g1[:9])
		copy(g2[1:], g2[:9])
		g1[0] = f1
		g2[0] = f2
	}
	return code, nil
}

// Table holds the precomputed codes for all PRNs, shareable across
// simulator instances once built.
type Table struct {
	codes [33][Len]int8
}

// NewTable precomputes the C/A code for every PRN
func NewTable() *Table {
	t := &Table{}
	for prn := 1; prn <= 32; prn++ {
		t.codes[prn], _ = Generate(prn)
	}
	return t
}

// Code returns the chip table for prn (1..32)
func (t *Table) Code(prn int) *[Len]int8 {
	return &t.codes[prn]
}
