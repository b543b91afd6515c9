package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
)

// LeagueRegistry manages registered league profiles
type LeagueRegistry struct {
	profiles map[string]contracts.LeagueProfile
	mu       sync.RWMutex
}

// NewLeagueRegistry creates a registry, registering any profiles given
func NewLeagueRegistry(profiles ...contracts.LeagueProfile) (*LeagueRegistry, error) {
	r := &LeagueRegistry{
		profiles: make(map[string]contracts.LeagueProfile),
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a league profile to the registry
func (r *LeagueRegistry) Register(profile contracts.LeagueProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sportKey := profile.GetSportKey()
	if _, exists := r.profiles[sportKey]; exists {
		return fmt.Errorf("profile for league %s is already registered", sportKey)
	}

	r.profiles[sportKey] = profile
	return nil
}

// Get retrieves a profile by sport key
func (r *LeagueRegistry) Get(sportKey string) (contracts.LeagueProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, exists := r.profiles[sportKey]
	return profile, exists
}

// Keys returns the registered sport keys in sorted order
func (r *LeagueRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.profiles))
	for key := range r.profiles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of registered profiles
func (r *LeagueRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.profiles)
}
