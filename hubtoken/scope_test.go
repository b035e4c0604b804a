package hubtoken

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeSet_Unrestricted(t *testing.T) {
	var s ScopeSet
	assert.True(t, s.AuthorizedWrite("anything/at/all.txt"))
	assert.True(t, s.AuthorizedDelete("anything/at/all.txt"))
	assert.False(t, s.IsArchival())
}

func TestScopeSet_ExactAndPrefixMatch(t *testing.T) {
	s := ExtractScopes([]ScopeClaim{
		{Scope: ScopePutFile, Domain: "profile.json"},
		{Scope: ScopePutFilePrefix, Domain: "photos/"},
		{Scope: ScopeDeleteFile, Domain: "profile.json"},
	})

	assert.True(t, s.AuthorizedWrite("profile.json"))
	assert.True(t, s.AuthorizedWrite("photos/vacation.png"))
	assert.False(t, s.AuthorizedWrite("other.json"))

	assert.True(t, s.AuthorizedDelete("profile.json"))
	assert.False(t, s.AuthorizedDelete("photos/vacation.png"))
}

func TestScopeSet_ArchivalOverlay(t *testing.T) {
	s := ExtractScopes([]ScopeClaim{
		{Scope: ScopePutFile, Domain: "profile.json"},
		{Scope: ScopePutFileArchivalPrefix, Domain: "photos/"},
	})

	require := assert.New(t)
	require.True(s.IsArchival())
	// Archival scopes gate the write once any archival scope is present,
	// so the plain putFile grant for profile.json no longer applies.
	require.False(s.AuthorizedWrite("profile.json"))
	require.True(s.AuthorizedWrite("photos/vacation.png"))
}

func TestScopeSet_NonEmptyListDeniesUnlistedPaths(t *testing.T) {
	s := ExtractScopes([]ScopeClaim{{Scope: ScopePutFile, Domain: "only-this.json"}})
	assert.False(t, s.AuthorizedWrite("anything-else.json"))
}
