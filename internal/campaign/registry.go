package campaign

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"adcraft/internal/logging"
)

// ErrNotFound is returned by lookups for unknown campaign ids. Callers
// routinely probe for existence before creating, so this is an expected
// condition, not a failure.
var ErrNotFound = errors.New("campaign not found")

// Registry is the process-wide store of campaigns and the single
// active-campaign pointer. It is constructed explicitly and passed
// through the driver's call chain; there is no package-level instance.
//
// The registry guards its own maps but performs no cross-driver
// coordination: concurrent mutation of the same campaign id from two
// drivers is a caller error (last write wins).
type Registry struct {
	mu        sync.RWMutex
	campaigns map[string]Campaign
	activeID  string
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		campaigns: make(map[string]Campaign),
		now:       time.Now,
	}
}

// Create stores a new campaign built from the seed value, assigning a
// fresh id and timestamps and making it the active campaign. The seed's
// ID, timestamps, rollback counter, and phase payloads are ignored;
// a campaign always starts at the content phase. Create never fails.
func (r *Registry) Create(seed Campaign) Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c := Campaign{
		ID:                uuid.NewString(),
		Name:              seed.Name,
		Brand:             seed.Brand,
		Status:            StatusContentPhase,
		CurrentSpecialist: SpecialistContent,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	r.campaigns[c.ID] = c
	r.activeID = c.ID

	logging.Get(logging.CategoryCampaign).Info("Created campaign %s (%s) for brand %s", c.ID, c.Name, c.Brand)
	return c
}

// Get returns the campaign for id, or ErrNotFound.
func (r *Registry) Get(id string) (Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

// Update applies the patch to the stored campaign, bumps UpdatedAt, and
// returns the new value. The patch cannot touch id or timestamps; status
// regression is the quality gate's job and is not policed here.
func (r *Registry) Update(id string, p Patch) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}

	next := c.Apply(p)
	next.ID = c.ID
	next.CreatedAt = c.CreatedAt

	// UpdatedAt is monotonic even if the wall clock jumps backward.
	now := r.now()
	if now.Before(c.UpdatedAt) {
		now = c.UpdatedAt
	}
	next.UpdatedAt = now

	r.campaigns[id] = next
	return next, nil
}

// SetActive switches the single-slot active pointer to id. Returns
// false for unknown ids; the pointer is left untouched in that case.
func (r *Registry) SetActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[id]; !ok {
		return false
	}
	r.activeID = id
	return true
}

// GetActive returns the active campaign, or ErrNotFound when no
// campaign is active.
func (r *Registry) GetActive() (Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return Campaign{}, ErrNotFound
	}
	c, ok := r.campaigns[r.activeID]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

// Delete removes the campaign, clearing the active pointer if it
// referenced the deleted id. Returns false for unknown ids.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[id]; !ok {
		return false
	}
	delete(r.campaigns, id)
	if r.activeID == id {
		r.activeID = ""
	}
	logging.Get(logging.CategoryCampaign).Info("Deleted campaign %s", id)
	return true
}

// ByStatus returns all campaigns with the given status, ordered by
// creation time. Campaign counts are bounded by operator concurrency,
// so a linear scan is fine.
func (r *Registry) ByStatus(status Status) []Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Campaign
	for _, c := range r.campaigns {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sortByCreation(out)
	return out
}

// BySpecialist returns all campaigns currently at the given stage,
// ordered by creation time.
func (r *Registry) BySpecialist(s Specialist) []Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Campaign
	for _, c := range r.campaigns {
		if c.CurrentSpecialist == s {
			out = append(out, c)
		}
	}
	sortByCreation(out)
	return out
}

// All returns every stored campaign, ordered by creation time.
func (r *Registry) All() []Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		out = append(out, c)
	}
	sortByCreation(out)
	return out
}

// Clear removes every campaign and the active pointer. Used for test
// isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.campaigns = make(map[string]Campaign)
	r.activeID = ""
}

func sortByCreation(cs []Campaign) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID < cs[j].ID
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}
