package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// dtstartLayout formats naive timestamps for the DTSTART line handed to the
// rule parser. Naive values live in time.UTC, so the Z suffix is exact.
const dtstartLayout = "20060102T150405Z"

// RepeaterFunc builds the rule set that drives expansion of a repeating
// series. dtstart is the series anchor in naive time. Implementations may be
// swapped in for custom repeat behaviour; StandardRepeater is the default.
type RepeaterFunc func(repeat string, dtstart time.Time) (*rrule.Set, error)

// StandardRepeater parses the stored rule text into an rrule set anchored at
// dtstart. The text may span multiple lines (EXDATE clauses alongside the
// RRULE). Parse failures are returned wrapped with the offending rule text
// and are never retried: a malformed stored rule is a data-integrity problem
// the caller must surface.
func StandardRepeater(repeat string, dtstart time.Time) (*rrule.Set, error) {
	src := "DTSTART:" + dtstart.Format(dtstartLayout) + "\n" + strings.TrimSpace(repeat)
	set, err := rrule.StrToRRuleSet(src)
	if err != nil {
		return nil, fmt.Errorf("parse repeat rule %q: %w", repeat, err)
	}
	return set, nil
}
