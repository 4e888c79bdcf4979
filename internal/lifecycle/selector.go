package lifecycle

import (
	"path"
	"strings"
)

// ModeSelector decides whether a case talks to the live API.
type ModeSelector interface {
	Live(c Case) bool
}

// ModeSelectorFunc adapts a function to ModeSelector.
type ModeSelectorFunc func(c Case) bool

func (f ModeSelectorFunc) Live(c Case) bool {
	return f(c)
}

// PatternSelector selects live mode for cases matching Pattern.
//
// Pattern is a comma separated list of alternatives. Each alternative is
// matched segment by segment against profile/provider/usecase/environment
// using path.Match syntax; omitted trailing segments match anything. An
// empty pattern never selects live mode.
// For example "*" selects every case, "default/weather" every weather use
// case in the default profile, and "*/*/*/staging" everything in the staging
// environment.
type PatternSelector struct {
	Pattern string
}

func (s PatternSelector) Live(c Case) bool {
	subject := []string{c.Key.Profile, c.Key.Provider, c.Key.UseCase, c.Environment}

	for _, alt := range strings.Split(s.Pattern, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if matchSegments(strings.Split(alt, "/"), subject) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, subject []string) bool {
	if len(pattern) > len(subject) {
		return false
	}
	for i, p := range pattern {
		ok, err := path.Match(p, subject[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}
