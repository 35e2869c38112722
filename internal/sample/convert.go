// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sample

import "fmt"

// Protocol calibration constants. These describe how the recorder firmware
// configured its sensors and are not user tunable.
const (
	// RawFullScale is the raw count that maps to the positive full-scale value
	// of a 16-bit sensor axis.
	RawFullScale = 32767.0

	// AccelFullScaleG is the high-g accelerometer range (±6 g mode).
	AccelFullScaleG = 6.0

	// GyroFullScaleDPS is the gyroscope range (±2000 °/s mode).
	GyroFullScaleDPS = 2000.0

	// TempCentiScale converts the barometer's raw hundredths of °C to °C.
	TempCentiScale = 100.0

	// CelsiusToKelvin is the offset from °C to K.
	CelsiusToKelvin = 273.15
)

const (
	accelScale = AccelFullScaleG / RawFullScale
	gyroScale  = GyroFullScaleDPS / RawFullScale
)

// Layout is the payload shape of one record kind: Fields little-endian signed
// integers of Width bytes each.
type Layout struct {
	Fields int
	Width  int
}

// Size is the payload length in bytes.
func (l Layout) Size() int { return l.Fields * l.Width }

// Layout returns the payload layout that follows the doubled tag of kind k.
func (k Kind) Layout() Layout {
	switch k {
	case KindHighGAccelerometer, KindGyro:
		return Layout{Fields: 3, Width: 2}
	case KindBarometer:
		return Layout{Fields: 2, Width: 4}
	default:
		panic(fmt.Sprintf("sample: unhandled sample kind %d", uint8(k)))
	}
}

// Raw is a record whose integer fields have been read but not converted.
// Unused trailing fields are zero.
type Raw struct {
	Kind   Kind
	Fields [3]int32
}

// Convert maps raw integer fields to a physical-unit sample.
func Convert(r Raw) Sample {
	switch r.Kind {
	case KindHighGAccelerometer:
		return New(ConvertAccel(int16(r.Fields[0]), int16(r.Fields[1]), int16(r.Fields[2])))
	case KindGyro:
		return New(ConvertGyro(int16(r.Fields[0]), int16(r.Fields[1]), int16(r.Fields[2])))
	case KindBarometer:
		return New(ConvertBarometer(r.Fields[0], r.Fields[1]))
	default:
		panic(fmt.Sprintf("sample: unhandled sample kind %d", uint8(r.Kind)))
	}
}

// ConvertAccel scales raw counts to g.
func ConvertAccel(x, y, z int16) HighGAccelerometer {
	return HighGAccelerometer{
		X: float64(x) * accelScale,
		Y: float64(y) * accelScale,
		Z: float64(z) * accelScale,
	}
}

// ConvertGyro scales raw counts to degrees per second.
func ConvertGyro(x, y, z int16) Gyro {
	return Gyro{
		X: float64(x) * gyroScale,
		Y: float64(y) * gyroScale,
		Z: float64(z) * gyroScale,
	}
}

// ConvertBarometer converts hundredths of °C to K. The sensor already reports
// pressure in pascals.
func ConvertBarometer(rawTemp, pressurePascal int32) Barometer {
	return Barometer{
		Temperature: float64(rawTemp)/TempCentiScale + CelsiusToKelvin,
		Pressure:    float64(pressurePascal),
	}
}
