// Package campaign implements discovery and classification of campaign
// listings: resolving the public directory and evaluating individual pages
// against the eligibility rules.
package campaign

import "errors"

// ID addresses a single campaign listing.
type ID int

// DirectorySet holds the campaign IDs the site currently advertises as
// public. An empty set always means resolution failed, never that zero
// public campaigns exist.
type DirectorySet map[ID]struct{}

// Contains reports membership.
func (d DirectorySet) Contains(id ID) bool {
	_, ok := d[id]
	return ok
}

// Add inserts an ID.
func (d DirectorySet) Add(id ID) {
	d[id] = struct{}{}
}

// Bounds returns the smallest and largest member. It must not be called on
// an empty set.
func (d DirectorySet) Bounds() (ID, ID) {
	first := true
	var lo, hi ID
	for id := range d {
		if first {
			lo, hi = id, id
			first = false
			continue
		}
		if id < lo {
			lo = id
		}
		if id > hi {
			hi = id
		}
	}
	return lo, hi
}

// ErrDirectoryEmpty is returned when the resolver exhausts its attempts
// without extracting a single public campaign ID.
var ErrDirectoryEmpty = errors.New("campaign: public directory unavailable")

// Result is one accepted campaign: the formatted line broadcast to
// observers plus the ID needed for deduplication, computed once at
// classification time.
type Result struct {
	ID     ID
	Line   string
	Public bool
}

// Filters narrows which campaigns a crawl accepts.
type Filters struct {
	// SelectedDays lists the participation-day tokens to keep, e.g. "20일".
	SelectedDays []string
	// ExcludeKeywords drops campaigns whose product name contains any entry
	// (case-sensitive substring match).
	ExcludeKeywords []string
}
