package filtering

import (
	"strings"
	"sync"
)

// Exclusions holds the ids already handled in this run and the companies
// that must not be applied to. Ids are scoped by platform.
type Exclusions struct {
	mu        sync.RWMutex
	applied   map[string]struct{}
	rejected  map[string]struct{}
	companies map[string]struct{}
}

func NewExclusions() *Exclusions {
	return &Exclusions{
		applied:   make(map[string]struct{}),
		rejected:  make(map[string]struct{}),
		companies: make(map[string]struct{}),
	}
}

func key(platform, id string) string {
	return platform + "/" + strings.TrimSpace(id)
}

func normalizeCompany(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (e *Exclusions) MarkApplied(platform, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applied[key(platform, id)] = struct{}{}
}

func (e *Exclusions) MarkRejected(platform, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.applied[key(platform, id)]; ok {
		return
	}
	e.rejected[key(platform, id)] = struct{}{}
}

// Blacklist adds a company. Empty names are ignored.
func (e *Exclusions) Blacklist(company string) {
	name := normalizeCompany(company)
	if name == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.companies[name] = struct{}{}
}

// Processed reports whether the id was applied to or rejected before.
func (e *Exclusions) Processed(platform, id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	k := key(platform, id)
	if _, ok := e.applied[k]; ok {
		return true
	}
	_, ok := e.rejected[k]
	return ok
}

func (e *Exclusions) Applied(platform, id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.applied[key(platform, id)]
	return ok
}

func (e *Exclusions) Blacklisted(company string) bool {
	name := normalizeCompany(company)
	if name == "" {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.companies[name]
	return ok
}

// Merge marks every id from a previous run's history as applied. The map
// is keyed by platform.
func (e *Exclusions) Merge(applied map[string][]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for platform, ids := range applied {
		for _, id := range ids {
			e.applied[key(platform, id)] = struct{}{}
		}
	}
}

// Len returns the sizes of the applied, rejected and company sets.
func (e *Exclusions) Len() (applied, rejected, companies int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.applied), len(e.rejected), len(e.companies)
}
