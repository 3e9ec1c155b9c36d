package mirror

import (
	"strconv"
	"strings"
)

// Counts are the counters extracted from the mirror tool's statistics block.
// Fields missing from the output stay zero: metrics are diagnostic and must
// never abort a transfer.
type Counts struct {
	FileCount    int64
	TotalBytes   int64
	LiteralBytes int64
	MatchedBytes int64
}

var statPrefixes = map[string]func(*Counts, int64){
	"Number of regular files transferred:": func(c *Counts, v int64) { c.FileCount = v },
	"Total transferred file size:":         func(c *Counts, v int64) { c.TotalBytes = v },
	"Literal data:":                        func(c *Counts, v int64) { c.LiteralBytes = v },
	"Matched data:":                        func(c *Counts, v int64) { c.MatchedBytes = v },
}

// ParseStats scans raw tool output for the statistics block.
func ParseStats(raw string) Counts {
	var counts Counts
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		for prefix, set := range statPrefixes {
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			if v, ok := parseStatValue(strings.TrimPrefix(line, prefix)); ok {
				set(&counts, v)
			}
		}
	}
	return counts
}

// parseStatValue reads the first numeric token, tolerating rsync's thousands
// separators and trailing units ("10,485,760 bytes").
func parseStatValue(rest string) (int64, bool) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.ReplaceAll(fields[0], ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
