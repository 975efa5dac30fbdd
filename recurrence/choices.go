package recurrence

// Choice pairs a permitted repeat rule with a display label. The permitted
// set is used for validation and UI only; the expansion engine accepts any
// rule the parser does.
type Choice struct {
	Rule  string
	Label string
}

// DefaultRepeatChoices is the stock set of permitted repeat rules. Set the
// permitted set to nil to accept free-form rule text.
var DefaultRepeatChoices = []Choice{
	{"RRULE:FREQ=DAILY", "Daily"},
	{"RRULE:FREQ=WEEKLY", "Weekly"},
	{"RRULE:FREQ=MONTHLY", "Monthly"},
	{"RRULE:FREQ=YEARLY", "Yearly"},
}

// PermittedRule reports whether rule is in choices. A nil choices slice
// permits everything.
func PermittedRule(choices []Choice, rule string) bool {
	if choices == nil {
		return true
	}
	for _, c := range choices {
		if c.Rule == rule {
			return true
		}
	}
	return false
}
