package fingerprint

import (
	"fmt"
	"sort"
)

// FieldChange is one structural field that differs between two summaries.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Diff compares two summaries field by field. Only structural fields
// participate; textual content never reaches a Summary in the first place.
func Diff(old, new *Summary) []FieldChange {
	var changes []FieldChange

	if old.FormCount != new.FormCount {
		changes = append(changes, change("formCount", old.FormCount, new.FormCount))
	}
	if old.InputCount != new.InputCount {
		changes = append(changes, change("inputCount", old.InputCount, new.InputCount))
	}
	if old.ButtonCount != new.ButtonCount {
		changes = append(changes, change("buttonCount", old.ButtonCount, new.ButtonCount))
	}
	if old.MobileLayout != new.MobileLayout {
		changes = append(changes, change("mobileLayout", old.MobileLayout, new.MobileLayout))
	}

	for _, typ := range unionKeys(old.InputsByType, new.InputsByType) {
		if old.InputsByType[typ] != new.InputsByType[typ] {
			changes = append(changes, change("inputCount."+typ, old.InputsByType[typ], new.InputsByType[typ]))
		}
	}
	for _, name := range unionBoolKeys(old.Containers, new.Containers) {
		if old.Containers[name] != new.Containers[name] {
			changes = append(changes, change("container."+name, old.Containers[name], new.Containers[name]))
		}
	}

	return changes
}

func change(field string, old, new any) FieldChange {
	return FieldChange{
		Field: field,
		Old:   fmt.Sprintf("%v", old),
		New:   fmt.Sprintf("%v", new),
	}
}

func unionKeys(a, b map[string]int) []string {
	set := map[string]struct{}{}
	for k := range a {
		set[k] = struct{}{}
	}
	for k := range b {
		set[k] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionBoolKeys(a, b map[string]bool) []string {
	set := map[string]struct{}{}
	for k := range a {
		set[k] = struct{}{}
	}
	for k := range b {
		set[k] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
