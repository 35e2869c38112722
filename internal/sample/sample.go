// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sample defines the decoded sensor samples stored by the flight
// computer's data recorder and the raw-to-physical conversions applied to them.
package sample

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Kind identifies one of the three sensor record types in a page.
type Kind uint8

const (
	KindHighGAccelerometer Kind = iota + 1
	KindGyro
	KindBarometer
)

// Kinds lists every known kind in wire-tag order.
var Kinds = []Kind{KindHighGAccelerometer, KindGyro, KindBarometer}

// String returns the snake_case name used in JSON and in the run database.
func (k Kind) String() string {
	switch k {
	case KindHighGAccelerometer:
		return "high_g_accelerometer"
	case KindGyro:
		return "gyro"
	case KindBarometer:
		return "barometer"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Tag returns the single byte that marks this kind on the wire.
func (k Kind) Tag() byte {
	switch k {
	case KindHighGAccelerometer:
		return 'A'
	case KindGyro:
		return 'G'
	case KindBarometer:
		return 'B'
	default:
		panic(fmt.Sprintf("sample: unhandled sample kind %d", uint8(k)))
	}
}

// KindForTag maps a resolved tag byte to its kind.
func KindForTag(tag byte) (Kind, bool) {
	switch tag {
	case 'A':
		return KindHighGAccelerometer, true
	case 'G':
		return KindGyro, true
	case 'B':
		return KindBarometer, true
	default:
		return 0, false
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown sample kind %q", name)
}

// Data is the closed set of sensor payloads. Only the types in this package
// implement it.
type Data interface {
	Kind() Kind
	isData()
}

// HighGAccelerometer is an acceleration reading in g.
type HighGAccelerometer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (HighGAccelerometer) Kind() Kind { return KindHighGAccelerometer }
func (HighGAccelerometer) isData()    {}

// Magnitude is the Euclidean norm of the acceleration vector (g load).
func (a HighGAccelerometer) Magnitude() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// Gyro is an angular rate reading in degrees per second.
type Gyro struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (Gyro) Kind() Kind { return KindGyro }
func (Gyro) isData()    {}

// Barometer is a temperature (K) and static pressure (Pa) reading.
type Barometer struct {
	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
}

func (Barometer) Kind() Kind { return KindBarometer }
func (Barometer) isData()    {}

// DefaultTicks is the tick delta carried by every record in this protocol
// version. Variable-rate logging would vary it.
const DefaultTicks = 1

// Sample is one decoded record.
type Sample struct {
	TicksSinceLastMessage uint32
	Data                  Data
}

// New wraps d with the default tick delta.
func New(d Data) Sample {
	return Sample{TicksSinceLastMessage: DefaultTicks, Data: d}
}

// Kind returns the kind of the wrapped payload, or 0 when it is empty.
func (s Sample) Kind() Kind {
	if s.Data == nil {
		return 0
	}
	return s.Data.Kind()
}

var errNoData = errors.New("sample: no data")

type wireSample struct {
	Ticks uint32                     `json:"ticks_since_last_message"`
	Data  map[string]json.RawMessage `json:"data"`
}

// MarshalJSON encodes the payload externally tagged by its kind name:
// {"ticks_since_last_message":1,"data":{"gyro":{"x":0,"y":0,"z":0}}}.
func (s Sample) MarshalJSON() ([]byte, error) {
	if s.Data == nil {
		return nil, errNoData
	}
	payload, err := json.Marshal(s.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireSample{
		Ticks: s.TicksSinceLastMessage,
		Data:  map[string]json.RawMessage{s.Data.Kind().String(): payload},
	})
}

// UnmarshalJSON accepts the form written by MarshalJSON.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var w wireSample
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if len(w.Data) != 1 {
		return fmt.Errorf("sample: data must hold exactly one kind, got %d", len(w.Data))
	}
	for name, raw := range w.Data {
		kind, err := ParseKind(name)
		if err != nil {
			return fmt.Errorf("sample: %w", err)
		}
		var d Data
		switch kind {
		case KindHighGAccelerometer:
			var v HighGAccelerometer
			err = json.Unmarshal(raw, &v)
			d = v
		case KindGyro:
			var v Gyro
			err = json.Unmarshal(raw, &v)
			d = v
		case KindBarometer:
			var v Barometer
			err = json.Unmarshal(raw, &v)
			d = v
		default:
			panic(fmt.Sprintf("sample: unhandled sample kind %d", uint8(kind)))
		}
		if err != nil {
			return fmt.Errorf("sample: %s payload: %w", name, err)
		}
		s.TicksSinceLastMessage = w.Ticks
		s.Data = d
	}
	return nil
}
