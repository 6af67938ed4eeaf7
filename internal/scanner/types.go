// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scanner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DataType is one of the ten scalar types the value scanner understands.
type DataType int

const (
	U8 DataType = iota
	I8
	U16
	I16
	U32
	I32
	U64
	I64
	F32
	F64
)

// Compare is one of the three supported comparisons.
type Compare int

const (
	Exact Compare = iota
	Greater
	Less
)

// Config configures a first or refine scan.
type Config struct {
	DataType     DataType
	Compare      Compare
	ValueLiteral string
	FastScan     bool
}

// TypeSize returns sizeof(t) in bytes.
func TypeSize(t DataType) int {
	switch t {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	default:
		return 0
	}
}

// ParseInput parses text into the byte representation of t, per the
// encoding rules: "0x"/"0X"-prefixed or decimal for integers, the
// platform's standard literal reader for floats. u8/i8 accept the full
// int range and truncate to the low byte; wider integer types parse at
// their own width and copy the low sizeof(t) bytes verbatim. Returns
// ok=false on parse failure, never an error value (parse failures are a
// UI-level validation concern, not a core error-taxonomy failure).
func ParseInput(text string, t DataType) ([]byte, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	switch t {
	case F32:
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, false
		}
		buf := make([]byte, 4)
		putUint32(buf, math.Float32bits(float32(v)))
		return buf, true
	case F64:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		buf := make([]byte, 8)
		putUint64(buf, math.Float64bits(v))
		return buf, true
	default:
		return parseIntLiteral(text, t)
	}
}

func parseIntLiteral(text string, t DataType) ([]byte, bool) {
	base := 10
	neg := strings.HasPrefix(text, "-")
	unsigned := text
	if neg {
		unsigned = text[1:]
	}
	if strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") {
		base = 16
		unsigned = unsigned[2:]
		if neg {
			text = "-" + unsigned
		} else {
			text = unsigned
		}
	}

	switch t {
	case U8, I8:
		// Full-int range accepted, then truncated to the low byte.
		v, err := strconv.ParseInt(text, base, 64)
		if err != nil {
			uv, uerr := strconv.ParseUint(text, base, 64)
			if uerr != nil {
				return nil, false
			}
			v = int64(uv)
		}
		return []byte{byte(v)}, true
	case U16:
		v, err := strconv.ParseUint(text, base, 16)
		if err != nil {
			return nil, false
		}
		buf := make([]byte, 2)
		putUint16(buf, uint16(v))
		return buf, true
	case I16:
		v, err := strconv.ParseInt(text, base, 16)
		if err != nil {
			return nil, false
		}
		buf := make([]byte, 2)
		putUint16(buf, uint16(int16(v)))
		return buf, true
	case U32:
		v, err := strconv.ParseUint(text, base, 32)
		if err != nil {
			return nil, false
		}
		buf := make([]byte, 4)
		putUint32(buf, uint32(v))
		return buf, true
	case I32:
		v, err := strconv.ParseInt(text, base, 32)
		if err != nil {
			return nil, false
		}
		buf := make([]byte, 4)
		putUint32(buf, uint32(int32(v)))
		return buf, true
	case U64:
		v, err := strconv.ParseUint(text, base, 64)
		if err != nil {
			return nil, false
		}
		buf := make([]byte, 8)
		putUint64(buf, v)
		return buf, true
	case I64:
		v, err := strconv.ParseInt(text, base, 64)
		if err != nil {
			return nil, false
		}
		buf := make([]byte, 8)
		putUint64(buf, uint64(v))
		return buf, true
	}
	return nil, false
}

// FormatValue renders bytes (of length TypeSize(t)) per the display
// rules: integers decimal, f32 with 3 fractional digits, f64 with 6.
func FormatValue(b []byte, t DataType) string {
	if len(b) < TypeSize(t) {
		return ""
	}
	switch t {
	case U8:
		return strconv.FormatUint(uint64(b[0]), 10)
	case I8:
		return strconv.FormatInt(int64(int8(b[0])), 10)
	case U16:
		return strconv.FormatUint(uint64(getUint16(b)), 10)
	case I16:
		return strconv.FormatInt(int64(int16(getUint16(b))), 10)
	case U32:
		return strconv.FormatUint(uint64(getUint32(b)), 10)
	case I32:
		return strconv.FormatInt(int64(int32(getUint32(b))), 10)
	case U64:
		return strconv.FormatUint(getUint64(b), 10)
	case I64:
		return strconv.FormatInt(int64(getUint64(b)), 10)
	case F32:
		return fmt.Sprintf("%.3f", math.Float32frombits(getUint32(b)))
	case F64:
		return fmt.Sprintf("%.6f", math.Float64frombits(getUint64(b)))
	default:
		return ""
	}
}

func putUint16(b []byte, v uint16) { b[0], b[1] = byte(v), byte(v>>8) }
func putUint32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
func getUint16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// compareBytes applies cmp to the type t reinterpretation of a and b,
// returning whether a satisfies "a <cmp> b".
func compareBytes(a, b []byte, t DataType, cmp Compare) bool {
	switch t {
	case F32:
		return compareFloat(float64(math.Float32frombits(getUint32(a))), float64(math.Float32frombits(getUint32(b))), cmp)
	case F64:
		return compareFloat(math.Float64frombits(getUint64(a)), math.Float64frombits(getUint64(b)), cmp)
	case I8:
		return compareInt(int64(int8(a[0])), int64(int8(b[0])), cmp)
	case I16:
		return compareInt(int64(int16(getUint16(a))), int64(int16(getUint16(b))), cmp)
	case I32:
		return compareInt(int64(int32(getUint32(a))), int64(int32(getUint32(b))), cmp)
	case I64:
		return compareInt(int64(getUint64(a)), int64(getUint64(b)), cmp)
	case U8:
		return compareUint(uint64(a[0]), uint64(b[0]), cmp)
	case U16:
		return compareUint(uint64(getUint16(a)), uint64(getUint16(b)), cmp)
	case U32:
		return compareUint(uint64(getUint32(a)), uint64(getUint32(b)), cmp)
	case U64:
		return compareUint(getUint64(a), getUint64(b), cmp)
	default:
		return false
	}
}

func compareInt(a, b int64, cmp Compare) bool {
	switch cmp {
	case Exact:
		return a == b
	case Greater:
		return a > b
	case Less:
		return a < b
	default:
		return false
	}
}

func compareUint(a, b uint64, cmp Compare) bool {
	switch cmp {
	case Exact:
		return a == b
	case Greater:
		return a > b
	case Less:
		return a < b
	default:
		return false
	}
}

func compareFloat(a, b float64, cmp Compare) bool {
	switch cmp {
	case Exact:
		return a == b
	case Greater:
		return a > b
	case Less:
		return a < b
	default:
		return false
	}
}
