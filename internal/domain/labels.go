package domain

// Direction is the forward-return class of a row.
type Direction int

const (
	DirectionDown     Direction = 0
	DirectionSideways Direction = 1
	DirectionUp       Direction = 2
)

// String returns the label name.
func (d Direction) String() string {
	switch d {
	case DirectionDown:
		return "DOWN"
	case DirectionSideways:
		return "SIDEWAYS"
	case DirectionUp:
		return "UP"
	default:
		return "UNKNOWN"
	}
}

// VolRegime is the volatility bucket of a row relative to its own series.
type VolRegime int

const (
	VolRegimeLow  VolRegime = 0
	VolRegimeMid  VolRegime = 1
	VolRegimeHigh VolRegime = 2
)

func (r VolRegime) String() string {
	switch r {
	case VolRegimeLow:
		return "LOW"
	case VolRegimeMid:
		return "MID"
	case VolRegimeHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// WriteMode controls how a relation is written when it already exists.
type WriteMode string

const (
	WriteModeReplace WriteMode = "replace"
	WriteModeAppend  WriteMode = "append"
)
