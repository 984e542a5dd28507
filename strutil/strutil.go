// Package strutil holds small string/formatting helpers shared by the
// log and stats packages, adapted from the teacher's strutil package and
// trimmed to two pieces: JSON encoding for structured log messages, and
// HumanizeBytes for human-readable byte counts, which no package calls
// at present. The teacher's wildcard/glob helpers have no analogue here,
// since the pipeline never matches against user-supplied path patterns.
package strutil

import (
	"encoding/json"
	"fmt"
	"strconv"
)

var humanDivisors = [...]struct {
	suffix string
	div    int64
}{
	{"K", 1 << 10},
	{"M", 1 << 20},
	{"G", 1 << 30},
	{"T", 1 << 40},
}

// HumanizeBytes takes a byte-size and returns a human-readable string
func HumanizeBytes(b int64) string {
	var (
		suffix string
		div    int64
	)
	for _, f := range humanDivisors {
		if b > f.div {
			suffix = f.suffix
			div = f.div
		}
	}
	if suffix == "" {
		return strconv.FormatInt(b, 10)
	}

	return fmt.Sprintf("%.1f%s", float64(b)/float64(div), suffix)
}

// JSON is a helper function for creating JSON-encoded strings.
func JSON(v interface{}) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}

