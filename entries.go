package awsexpect

import "reflect"

// MatchesEntries reports whether item contains every key in entries with an equal
// value. Extra fields in item are ignored (non-strict subset match). item is never
// modified.
func MatchesEntries(item map[string]any, entries map[string]any) bool {
	for k, want := range entries {
		got, ok := item[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
