package core

import "math"

const (
	// RateMax is the largest rate magnitude that fits a 15-bit slot.
	RateMax = 32767

	rateDataMask uint32 = 0x7FFF7FFF
	rateMarker   uint32 = 0x00008000
)

// EncodeRates packs climb and descent rate magnitudes (cm/s) into one word:
// up in bits 16-30, down in bits 0-14, bit 15 set as a presence marker and
// bit 31 clear. Signs are dropped and magnitudes clamp to RateMax.
func EncodeRates(rateUp, rateDown float64) uint32 {
	up := clampRate(rateUp)
	down := clampRate(rateDown)
	packed := up<<16 | down
	return packed&rateDataMask | rateMarker
}

// DecodeRates unpacks a word produced by EncodeRates.
func DecodeRates(packed uint32) (rateUp, rateDown float64) {
	return float64(packed >> 16 & 0x7FFF), float64(packed & 0x7FFF)
}

// HasRateMarker reports whether packed carries the presence marker, which
// tells it apart from an all-zero legacy value.
func HasRateMarker(packed uint32) bool {
	return packed&rateMarker != 0
}

func clampRate(v float64) uint32 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Abs(v)
	if v > RateMax {
		v = RateMax
	}
	return uint32(v)
}
