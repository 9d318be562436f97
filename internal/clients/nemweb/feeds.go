package nemweb

import (
	"regexp"
	"sort"
)

// Directory paths for the three NEMWEB report feeds, relative to the
// configured base URL (https://nemweb.com.au/Reports/Current).
const (
	dispatchPath    = "/DispatchIS_Reports/"
	p5minPath       = "/P5_Reports/"
	predispatchPath = "/Predispatch_Reports/"
)

// feed describes how to discover the latest archive file for one report
// feed: where its directory listing lives and which filenames belong to it.
// The primary pattern's first capture group is the 12-digit publication
// timestamp; the fallback pattern is a broader match within the same prefix
// family, tried only when the primary yields nothing.
type feed struct {
	name     string
	path     string
	primary  *regexp.Regexp
	fallback *regexp.Regexp
}

var (
	// Dispatch files: PUBLIC_DISPATCHIS_202512251520_0000000495664033.zip
	dispatchFeed = feed{
		name:     "dispatch",
		path:     dispatchPath,
		primary:  regexp.MustCompile(`PUBLIC_DISPATCHIS_(\d{12})_\d+\.zip`),
		fallback: regexp.MustCompile(`PUBLIC_DISPATCH[A-Z]*_(\d{12})_\d+\.zip`),
	}

	// P5MIN files: PUBLIC_P5MIN_202512251520_20251225151752.zip
	p5minFeed = feed{
		name:     "p5min",
		path:     p5minPath,
		primary:  regexp.MustCompile(`PUBLIC_P5MIN_(\d{12})_\d{14}\.zip`),
		fallback: regexp.MustCompile(`PUBLIC_P5MIN[A-Z]*_(\d{12})_\d+\.zip`),
	}

	// Predispatch files: PUBLIC_PREDISPATCH_202512251530_20251225150421_LEGACY.zip
	predispatchFeed = feed{
		name:    "predispatch",
		path:    predispatchPath,
		primary: regexp.MustCompile(`PUBLIC_PREDISPATCH_(\d{12})_\d+_LEGACY\.zip`),
	}
)

// latest scans a raw directory listing body and returns the archive filename
// with the greatest 12-digit publication timestamp. The listing is plain
// HTML/text; filenames are matched directly, no markup structure assumed.
//
// When several filenames share the maximal timestamp the lexicographically
// greatest full filename wins. That keeps selection deterministic, and for
// feeds with a fine-grained second timestamp it is also the newest file.
func (f feed) latest(listing string) (string, bool) {
	matches := f.primary.FindAllStringSubmatch(listing, -1)
	if len(matches) == 0 && f.fallback != nil {
		matches = f.fallback.FindAllStringSubmatch(listing, -1)
	}
	if len(matches) == 0 {
		return "", false
	}

	maxTS := ""
	for _, m := range matches {
		if m[1] > maxTS {
			maxTS = m[1]
		}
	}

	candidates := make([]string, 0, 2)
	for _, m := range matches {
		if m[1] == maxTS {
			candidates = append(candidates, m[0])
		}
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1], true
}
