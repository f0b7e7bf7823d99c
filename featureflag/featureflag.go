// Package featureflag toggles optional query behaviors from a comma separated
// list of flags.
package featureflag

import (
	"sort"
	"strings"
)

// FeatureFlag is the set of enabled flags. A nil FeatureFlag has no flag set.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags named in flags. Names are trimmed and upper
// cased, empty names are ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do when flag is set.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		do()
	}
}

// IfNotSet runs do when flag is not set.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		do()
	}
}

// List returns the set flags, sorted.
func (f FeatureFlag) List() []string {
	list := make([]string, 0, len(f))
	for flag := range f {
		list = append(list, string(flag))
	}
	sort.Strings(list)
	return list
}
