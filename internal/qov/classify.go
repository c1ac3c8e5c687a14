// Package qov classifies field-of-view fragments by the cause of degraded
// viewing quality and aggregates zone-level coverage statistics.
package qov

import (
	"github.com/sells-group/fovcover/internal/model"
)

// Condition values.
const (
	valueNone = "none"
	valueYes  = "yes"
	valueNo   = "no"
)

// Rule is one degradation condition tagged with its cause.
type Rule struct {
	Cause model.Cause
	Match func(f *model.Fragment) bool
}

// Rules lists the degradation rules in priority order. A fragment matching
// several rules is attributed to the first.
var Rules = []Rule{
	{Cause: model.CauseDark, Match: IsDark},
	{Cause: model.CauseScaffolding, Match: attrEquals(model.ColScaffolding, valueYes)},
	{Cause: model.CauseFoliage, Match: attrEquals(model.ColFoliage, valueYes)},
}

// IsDark reports whether the camera has no LED and the street is not
// known to be well lit. A missing well_lit value counts as "no".
func IsDark(f *model.Fragment) bool {
	if led, ok := f.Attr(model.ColLED); !ok || led != valueNone {
		return false
	}
	lit, ok := f.Attr(model.ColWellLit)
	return !ok || lit == valueNo
}

func attrEquals(col, want string) func(*model.Fragment) bool {
	return func(f *model.Fragment) bool {
		v, ok := f.Attr(col)
		return ok && v == want
	}
}

// Classify returns the cause of the first matching rule.
func Classify(f *model.Fragment, rules []Rule) (model.Cause, bool) {
	for _, r := range rules {
		if r.Match(f) {
			return r.Cause, true
		}
	}
	return "", false
}
