// Package canonical decides whether a custom field key names a canonical
// visitor attribute. Pure functions over a static set, no storage, so the
// matching rules are trivially unit-testable.
package canonical

import "strings"

// Core fields live directly on the visitor struct; the rest are dynamic
// attributes. Both count as canonical for reconciliation purposes.
var coreFields = map[string]struct{}{
	"name":    {},
	"email":   {},
	"phone":   {},
	"company": {},
}

var attributeFields = map[string]struct{}{
	"designation": {},
	"city":        {},
	"state":       {},
	"country":     {},
	"pincode":     {},
	"website":     {},
}

// NormalizeKey lowercases and collapses whitespace runs to underscores, so
// "Company Name" and "company_name" compare equal where intended.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.Join(strings.Fields(key), "_")
}

// Match classifies a raw custom-field key. When the normalized key names a
// canonical attribute it returns the normalized name and whether it is a
// core visitor field; otherwise ok is false.
func Match(key string) (normalized string, core bool, ok bool) {
	normalized = NormalizeKey(key)
	if _, found := coreFields[normalized]; found {
		return normalized, true, true
	}
	if _, found := attributeFields[normalized]; found {
		return normalized, false, true
	}
	return normalized, false, false
}
