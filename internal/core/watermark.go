package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseWatermark decodes a client-supplied since/last id.
// Missing, null and non-numeric values read as 0.
func ParseWatermark(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0
	}

	switch val := v.(type) {
	case json.Number:
		return ParseWatermarkString(val.String())
	case string:
		return ParseWatermarkString(val)
	default:
		return 0
	}
}

// ParseWatermarkString is ParseWatermark for query-string values.
func ParseWatermarkString(s string) int64 {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatWatermark(f)
	}
	return 0
}

func floatWatermark(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}
