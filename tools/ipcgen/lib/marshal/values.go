// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package marshal

import (
	"fmt"
	"math"

	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/ir"
	"go.fuchsia.dev/ipcgen/tools/ipcgen/lib/layout"
)

// Values holds the in-memory arguments of one message, keyed by parameter
// name. Reserved fields use their field name ("exception"), the return
// value uses "return".
//
// Scalars decode as int64, uint64, float64 or bool; encoding accepts any Go
// integer or float type. Strings are Go strings without the terminator.
// Arrays of one-byte unsigned elements are []byte, other arrays are
// []interface{}. Structs are Records and unions are UnionValues.
type Values map[string]interface{}

// Record holds the members of a struct value, keyed by member name.
type Record map[string]interface{}

// UnionValue is a union with its discriminant. Value is nil for an empty
// case, and the raw payload bytes for a tag no case matches.
type UnionValue struct {
	Tag   int64
	Value interface{}
}

// Raised reports whether a decoded reply carries an exception.
func (v Values) Raised() bool {
	w, ok := v[exceptionKey].(uint64)
	return ok && w != layout.ExceptionNone
}

const exceptionKey = "exception"

func asRecord(v interface{}) (map[string]interface{}, bool) {
	switch v := v.(type) {
	case Record:
		return v, true
	case Values:
		return v, true
	case map[string]interface{}:
		return v, true
	}
	return nil, false
}

// scalarBits converts a Go number to the raw bits of subtype s. Wider values
// are truncated, which is the narrowing cast of a transmit_as conversion.
func scalarBits(s ir.PrimitiveSubtype, v interface{}) (uint64, error) {
	if s.IsFloat() {
		var f float64
		switch v := v.(type) {
		case float64:
			f = v
		case float32:
			f = float64(v)
		default:
			i, err := integerBits(v)
			if err != nil {
				return 0, err
			}
			f = float64(int64(i))
		}
		if s == ir.Float32 {
			return uint64(math.Float32bits(float32(f))), nil
		}
		return math.Float64bits(f), nil
	}
	if s == ir.Bool {
		switch v := v.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		}
	}
	return integerBits(v)
}

func integerBits(v interface{}) (uint64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int:
		return uint64(v), nil
	case int8:
		return uint64(v), nil
	case int16:
		return uint64(v), nil
	case int32:
		return uint64(v), nil
	case int64:
		return uint64(v), nil
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case float32:
		return uint64(int64(v)), nil
	case float64:
		return uint64(int64(v)), nil
	}
	return 0, fmt.Errorf("%v (%T) is not a number", v, v)
}

// scalarValue converts the n-byte bits of subtype s to its Go value.
func scalarValue(s ir.PrimitiveSubtype, bits uint64) interface{} {
	n := s.NumberOfBytes()
	switch {
	case s == ir.Bool:
		return bits != 0
	case s == ir.Float32:
		return float64(math.Float32frombits(uint32(bits)))
	case s == ir.Float64:
		return math.Float64frombits(bits)
	case s.IsSigned():
		shift := uint(64 - 8*n)
		return int64(bits<<shift) >> shift
	}
	if n < 8 {
		bits &= 1<<uint(8*n) - 1
	}
	return bits
}

// cast converts a decoded wire scalar to the presented subtype.
func cast(to ir.PrimitiveSubtype, v interface{}) interface{} {
	bits, err := scalarBits(to, v)
	if err != nil {
		return v
	}
	return scalarValue(to, bits)
}

func length(v interface{}) (int, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		return len(v), nil
	case []byte:
		return len(v), nil
	case []interface{}:
		return len(v), nil
	}
	return 0, fmt.Errorf("%v (%T) is not a sequence", v, v)
}

// byteElements reports whether an array of t decodes as []byte.
func byteElements(t layout.Type) bool {
	s, ok := t.(*layout.Scalar)
	return ok && (s.Subtype == ir.Uint8 || s.Subtype == ir.Char)
}

// Zero returns the zero value of the in-memory form of a wire type.
func Zero(t layout.Type) interface{} {
	switch t := t.(type) {
	case *layout.Scalar:
		return scalarValue(t.Subtype, 0)
	case *layout.Array:
		n := 0
		if t.Bound == layout.FixedBound {
			n = t.N
		}
		if byteElements(t.Elem) {
			return make([]byte, n)
		}
		out := make([]interface{}, n)
		for i := range out {
			out[i] = Zero(t.Elem)
		}
		return out
	case *layout.String:
		return ""
	case *layout.Struct:
		rec := Record{}
		for _, f := range t.Fields {
			rec[f.Path.Last()] = Zero(f.Type)
		}
		return rec
	case *layout.Union:
		for _, c := range t.Cases {
			if c.Default || len(c.Labels) == 0 {
				continue
			}
			uv := UnionValue{Tag: c.Labels[0]}
			if c.Payload != nil {
				uv.Value = Zero(c.Payload.Type)
			}
			return uv
		}
		return UnionValue{}
	case *layout.Pointer:
		return uint64(0)
	case *layout.Descriptor:
		return Zero(t.Data)
	}
	panic(fmt.Sprintf("unknown wire type %T", t))
}

// ZeroValues returns zero arguments for every field of ms that has an
// in-memory source.
func ZeroValues(ms *layout.MessageStruct) Values {
	v := Values{}
	for _, f := range ms.Fields() {
		if len(f.Path) == 0 || f.Synthesized {
			continue
		}
		if f.Presented != nil {
			v[f.Path.Last()] = Zero(f.Presented)
			continue
		}
		v[f.Path.Last()] = Zero(f.Type)
	}
	return v
}
