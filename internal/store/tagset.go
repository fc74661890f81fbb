package store

import (
	"sort"
	"strings"
)

// EncodeTagSet canonicalizes a tag set into the comma-joined form stored in
// Ticket.tag_set: sorted, deduplicated, empty entries dropped. Canonical
// encoding makes the stored value directly comparable between rows without
// re-parsing.
func EncodeTagSet(tags []string) string {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// DecodeTagSet parses the comma-joined storage form back into a set.
func DecodeTagSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	if s == "" {
		return set
	}
	for _, t := range strings.Split(s, ",") {
		set[t] = struct{}{}
	}
	return set
}
