package storage

import "strings"

// LegacyRepeatCodes maps the retired integer repeat enumeration (stored as
// its decimal text) to canonical rule strings.
var LegacyRepeatCodes = map[string]string{
	"0": "RRULE:FREQ=YEARLY",
	"1": "RRULE:FREQ=MONTHLY",
	"2": "RRULE:FREQ=WEEKLY",
	"3": "RRULE:FREQ=DAILY",
}

// CanonicalRepeat returns the migrated form of a stored repeat value. Legacy
// integer codes map to their rule strings; values already containing rule
// text (RRULE or EXDATE clauses) pass through unchanged, which keeps the
// migration idempotent; any other legacy value maps to empty. Backends
// without an expression layer of their own build MigrateIntegerRepeat on
// this.
func CanonicalRepeat(stored string) string {
	if rule, ok := LegacyRepeatCodes[stored]; ok {
		return rule
	}
	if stored == "" || strings.Contains(stored, "RRULE:") || strings.Contains(stored, "EXDATE:") {
		return stored
	}
	return ""
}
