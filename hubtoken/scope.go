package hubtoken

import "strings"

// ScopeSet is the six disjoint per-kind scope lists extracted from a
// token's payload. A nil slice for a kind means "no restriction for
// that kind" (§3).
type ScopeSet struct {
	PutFile              []string
	PutFilePrefix        []string
	DeleteFile           []string
	DeleteFilePrefix     []string
	PutFileArchival      []string
	PutFileArchivalPrefix []string
}

// ExtractScopes partitions payload.Scopes into the six per-kind lists.
func ExtractScopes(scopes []ScopeClaim) ScopeSet {
	var s ScopeSet
	for _, sc := range scopes {
		switch sc.Scope {
		case ScopePutFile:
			s.PutFile = append(s.PutFile, sc.Domain)
		case ScopePutFilePrefix:
			s.PutFilePrefix = append(s.PutFilePrefix, sc.Domain)
		case ScopeDeleteFile:
			s.DeleteFile = append(s.DeleteFile, sc.Domain)
		case ScopeDeleteFilePrefix:
			s.DeleteFilePrefix = append(s.DeleteFilePrefix, sc.Domain)
		case ScopePutFileArchival:
			s.PutFileArchival = append(s.PutFileArchival, sc.Domain)
		case ScopePutFileArchivalPrefix:
			s.PutFileArchivalPrefix = append(s.PutFileArchivalPrefix, sc.Domain)
		}
	}
	return s
}

// IsArchival reports whether any archival scope is present — if so,
// every write under this principal is archival (§3: "Archival kinds are
// overlaid").
func (s ScopeSet) IsArchival() bool {
	return len(s.PutFileArchival) > 0 || len(s.PutFileArchivalPrefix) > 0
}

// matches implements the prefix-or-exact rule common to every scope
// kind: unrestricted if both lists are empty, else a path match or a
// prefix match.
func matches(path string, exact, prefix []string) bool {
	if len(exact) == 0 && len(prefix) == 0 {
		return true
	}
	for _, p := range exact {
		if p == path {
			return true
		}
	}
	for _, p := range prefix {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// AuthorizedWrite reports whether path may be written under this scope
// set. When archival scopes are present, the archival lists gate the
// write instead of the plain putFile lists (§3, §4.5 step 4).
func (s ScopeSet) AuthorizedWrite(path string) bool {
	if s.IsArchival() {
		return matches(path, s.PutFileArchival, s.PutFileArchivalPrefix)
	}
	return matches(path, s.PutFile, s.PutFilePrefix)
}

// AuthorizedDelete reports whether path may be deleted under this scope
// set.
func (s ScopeSet) AuthorizedDelete(path string) bool {
	return matches(path, s.DeleteFile, s.DeleteFilePrefix)
}
