package core

// Severity tells how urgently an unpaid occurrence needs attention.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityYellow
	SeverityRed
)

func (s Severity) String() string {
	switch s {
	case SeverityRed:
		return "red"
	case SeverityYellow:
		return "yellow"
	default:
		return "normal"
	}
}

// bands holds the exclusive upper bounds of the red [0,red) and yellow
// [red,yellow) ranges, in days, scaled to each step length.
var bands = map[Periodicity]struct{ red, yellow int }{
	Weekly:     {2, 4},
	Biweekly:   {4, 8},
	Monthly:    {5, 11},
	Bimonthly:  {10, 22},
	Trimonthly: {15, 33},
	Quarterly:  {20, 44},
	Biannual:   {30, 66},
}

// Band maps days left before an occurrence to a severity. Any negative count
// is overdue and therefore red. Unknown periodicities use the monthly bands.
func Band(p Periodicity, daysLeft int) Severity {
	b, ok := bands[p]
	if !ok {
		b = bands[Monthly]
	}
	switch {
	case daysLeft < b.red:
		return SeverityRed
	case daysLeft < b.yellow:
		return SeverityYellow
	default:
		return SeverityNormal
	}
}
