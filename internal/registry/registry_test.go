package registry_test

import (
	"testing"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/registry"
	"github.com/XavierBriggs/fortuna/services/handicapper/sports/americanfootball_ncaaf"
	"github.com/XavierBriggs/fortuna/services/handicapper/sports/americanfootball_nfl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeagueRegistry(t *testing.T) {
	reg, err := registry.NewLeagueRegistry(
		americanfootball_nfl.NewProfile(),
		americanfootball_ncaaf.NewProfile(),
	)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Count())
	assert.Equal(t, []string{"americanfootball_ncaaf", "americanfootball_nfl"}, reg.Keys())

	profile, ok := reg.Get(americanfootball_nfl.SportKey)
	require.True(t, ok)
	assert.Equal(t, "NFL", profile.GetDisplayName())

	_, ok = reg.Get("basketball_nba")
	assert.False(t, ok)
}

func TestLeagueRegistry_DuplicateRejected(t *testing.T) {
	reg, err := registry.NewLeagueRegistry(americanfootball_nfl.NewProfile())
	require.NoError(t, err)

	err = reg.Register(americanfootball_nfl.NewProfile())
	assert.Error(t, err)
}
