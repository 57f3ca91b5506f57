package config

// Mode selects optimized (Production) or pass-through (Development) behavior
// for every mode-conditional step. It is resolved once and passed by value.
type Mode int

const (
	Development Mode = iota
	Production
)

// ModeFromFlag maps the parsed --production flag to a Mode.
func ModeFromFlag(production bool) Mode {
	if production {
		return Production
	}
	return Development
}

func (m Mode) IsProduction() bool { return m == Production }

func (m Mode) String() string {
	if m == Production {
		return "production"
	}
	return "development"
}
