package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedAccessLevels(t *testing.T) {
	assert.ElementsMatch(t,
		[]AccessLevel{AccessLevelPublic, AccessLevelConfidential, AccessLevelRestricted},
		AllowedAccessLevels(RoleOwner))
	assert.ElementsMatch(t,
		[]AccessLevel{AccessLevelPublic, AccessLevelConfidential, AccessLevelRestricted},
		AllowedAccessLevels(RoleAdmin))
	assert.ElementsMatch(t,
		[]AccessLevel{AccessLevelPublic, AccessLevelConfidential},
		AllowedAccessLevels(RoleManager))
	assert.Equal(t, []AccessLevel{AccessLevelPublic}, AllowedAccessLevels(RoleAgent))
	assert.Equal(t, []AccessLevel{AccessLevelPublic}, AllowedAccessLevels(RoleViewer))

	// Unknown roles fall back to public-only.
	assert.Equal(t, []AccessLevel{AccessLevelPublic}, AllowedAccessLevels(Role("intern")))
}

func TestCanWriteAccessLevel(t *testing.T) {
	assert.True(t, CanWriteAccessLevel(RoleAdmin, AccessLevelRestricted))
	assert.True(t, CanWriteAccessLevel(RoleOwner, AccessLevelRestricted))
	assert.False(t, CanWriteAccessLevel(RoleManager, AccessLevelRestricted))
	assert.True(t, CanWriteAccessLevel(RoleManager, AccessLevelConfidential))

	// Read-only roles cannot ingest at any level.
	assert.False(t, CanWriteAccessLevel(RoleViewer, AccessLevelPublic))
	assert.False(t, CanWriteAccessLevel(RoleAgent, AccessLevelPublic))
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RoleManager))
	assert.False(t, IsValidRole(Role("root")))
}
