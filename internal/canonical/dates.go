package canonical

import (
	"strings"
	"time"
)

// dateLayouts are tried in order; first match wins. DD/MM/YYYY is first
// because it is the issuing universities' native format.
var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"02 Jan 2006",
}

// NormalizeDate rewrites a date string as YYYY-MM-DD. Unparsable values pass
// through trimmed but otherwise unchanged, which means two genuinely
// different dates in an unrecognized format compare as raw strings
// downstream. Known limitation, kept for parity with issued digests.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
