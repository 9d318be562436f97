package common

import (
	"fmt"
	"regexp"
	"time"
)

// NEMTimeLayout is the timestamp format used in NEMWEB CSV data rows.
const NEMTimeLayout = "2006/01/02 15:04:05"

// fileTimestampLayout is the 12-digit coarse timestamp embedded in NEMWEB
// archive filenames (e.g. PUBLIC_DISPATCHIS_202512251520_...).
const fileTimestampLayout = "200601021504"

// MarketPeriod is the NEM dispatch interval length. Publication of new
// archive files is anchored to these boundaries.
const MarketPeriod = 5 * time.Minute

// MarketTime is the NEM market timezone. AEMO publishes all market data in
// AEST (UTC+10) year-round, never AEDT, even when the observer's local
// clock is on daylight saving.
var MarketTime = time.FixedZone("AEST", 10*60*60)

// ParseNEMTime parses a market timestamp string ("2025/01/12 13:05:00")
// into an instant in the fixed market timezone.
func ParseNEMTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(NEMTimeLayout, s, MarketTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid NEM timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatNEMTime formats an instant as a market timestamp string.
func FormatNEMTime(t time.Time) string {
	return t.In(MarketTime).Format(NEMTimeLayout)
}

// ParseFileTimestamp parses the 12-digit timestamp from an archive filename
// into an instant in the market timezone.
func ParseFileTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(fileTimestampLayout, s, MarketTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid archive file timestamp %q: %w", s, err)
	}
	return t, nil
}

// NEMTimeToISO converts a market timestamp string to RFC3339 with the fixed
// +10:00 offset. Strings that do not parse are returned unchanged so the
// caller never loses the raw value.
func NEMTimeToISO(s string) string {
	t, err := ParseNEMTime(s)
	if err != nil {
		return s
	}
	return t.Format(time.RFC3339)
}

// archiveFileRe locates the 12-digit publication timestamp embedded in a
// NEMWEB archive filename.
var archiveFileRe = regexp.MustCompile(`_(\d{12})_`)

// ArchiveFileTime extracts the publication instant from an archive filename
// such as PUBLIC_DISPATCHIS_202512251520_0000000495664033.zip.
func ArchiveFileTime(filename string) (time.Time, bool) {
	m := archiveFileRe.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}
	t, err := ParseFileTimestamp(m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NextPeriodEnd returns the next 5-minute-aligned instant strictly after t.
// An instant already on a boundary still advances to the following boundary,
// matching NEMWEB publication behaviour.
func NextPeriodEnd(t time.Time) time.Time {
	return t.Truncate(MarketPeriod).Add(MarketPeriod)
}
