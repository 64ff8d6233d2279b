package service

import (
	"strconv"
	"strings"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
)

var distanceToCm = map[domain.DistanceUnit]float64{
	domain.DistanceUnitMillimeter: 0.1,
	domain.DistanceUnitCentimeter: 1,
	domain.DistanceUnitMeter:      100,
	domain.DistanceUnitInch:       2.54,
	domain.DistanceUnitFoot:       30.48,
}

var volumeToLiters = map[domain.VolumeUnit]float64{
	domain.VolumeUnitLiter:          1,
	domain.VolumeUnitCubicMeter:     1000,
	domain.VolumeUnitGallon:         3.78541,
	domain.VolumeUnitImperialGallon: 4.54609,
}

// ConvertDistance converts through centimeters. Unknown units convert as
// identity to and from the canonical unit.
func ConvertDistance(value float64, from, to domain.DistanceUnit) float64 {
	if from == to {
		return value
	}
	cm := value
	if f, ok := distanceToCm[from]; ok {
		cm = value * f
	}
	if f, ok := distanceToCm[to]; ok {
		return cm / f
	}
	return cm
}

// ConvertVolume converts through liters. Unknown units convert as identity to
// and from the canonical unit.
func ConvertVolume(value float64, from, to domain.VolumeUnit) float64 {
	if from == to {
		return value
	}
	liters := value
	if f, ok := volumeToLiters[from]; ok {
		liters = value * f
	}
	if f, ok := volumeToLiters[to]; ok {
		return liters / f
	}
	return liters
}

func KnownDistanceUnit(unit domain.DistanceUnit) bool {
	_, ok := distanceToCm[unit]
	return ok
}

func KnownVolumeUnit(unit domain.VolumeUnit) bool {
	_, ok := volumeToLiters[unit]
	return ok
}

type ParseStatus int

const (
	ParseOK ParseStatus = iota
	// ParsePartial means only a numeric prefix of the input was used.
	ParsePartial
	// ParseDefaulted means the input was rejected and the default returned.
	ParseDefaulted
)

func (s ParseStatus) String() string {
	switch s {
	case ParseOK:
		return "ok"
	case ParsePartial:
		return "partial"
	}
	return "defaulted"
}

// ParseUserNumber is a tolerant parser for operator input. A comma is read as
// the decimal separator. Input with no digits, a '-' anywhere but first, more
// than one '.' or any other character (whitespace included) is rejected in
// favour of def. A trailing '.' is ignored and reported as ParsePartial.
func ParseUserNumber(text string, def float64) (float64, ParseStatus) {
	s := strings.ReplaceAll(text, ",", ".")
	if strings.TrimSpace(s) == "" {
		return def, ParseDefaulted
	}
	if !strings.ContainsAny(s, "0123456789") {
		return def, ParseDefaulted
	}
	dots := 0
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c == '-':
			if i != 0 {
				return def, ParseDefaulted
			}
		case c == '.':
			dots++
			if dots > 1 {
				return def, ParseDefaulted
			}
		default:
			return def, ParseDefaulted
		}
	}
	status := ParseOK
	if strings.HasSuffix(s, ".") {
		s = strings.TrimSuffix(s, ".")
		status = ParsePartial
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def, ParseDefaulted
	}
	return v, status
}
