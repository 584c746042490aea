package domain

import "strings"

// AccountKind classifies an account by its naming convention.
type AccountKind int

const (
	KindPlayer AccountKind = iota
	KindTax
	KindTown
	KindNation
)

func (k AccountKind) String() string {
	switch k {
	case KindTax:
		return "tax"
	case KindTown:
		return "town"
	case KindNation:
		return "nation"
	default:
		return "player"
	}
}

type nameRule struct {
	kind   AccountKind
	match  func(name string) bool
	format func(name string) string
}

// nameRules are evaluated in order; the first match wins.
var nameRules = []nameRule{
	{
		kind:   KindTax,
		match:  func(name string) bool { return name == "tax" },
		format: func(string) string { return "Server (tax)" },
	},
	{
		kind:   KindTown,
		match:  func(name string) bool { return strings.HasPrefix(name, "town-") },
		format: stripPrefix("town-"),
	},
	{
		kind:   KindNation,
		match:  func(name string) bool { return strings.HasPrefix(name, "nation-") },
		format: stripPrefix("nation-"),
	},
}

func stripPrefix(prefix string) func(string) string {
	return func(name string) string {
		return strings.ReplaceAll(strings.TrimPrefix(name, prefix), "_", " ")
	}
}

func ClassifyName(name string) AccountKind {
	for _, r := range nameRules {
		if r.match(name) {
			return r.kind
		}
	}
	return KindPlayer
}

// DisplayName derives the human-facing name, e.g. "town-New_Haven" -> "New Haven".
func DisplayName(name string) string {
	for _, r := range nameRules {
		if r.match(name) {
			return r.format(name)
		}
	}
	return name
}
