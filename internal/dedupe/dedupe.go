// Package dedupe groups near-identical job listings and picks one survivor
// per group through an ordered cascade of tie-break filters.
package dedupe

import (
	"sort"
	"strings"

	"jobscraps/internal/store"
)

// Site preference for tie-breaking, most trusted first.
var sitePreference = []string{"linkedin", "indeed", "google"}

const (
	// Region preferred by the location tie-break, matched against the full
	// name and the standard abbreviation.
	preferredRegionName   = "colorado"
	preferredRegionAbbrev = ", co"

	// Search label considered too broad to carry signal.
	lowInfoQuery = "united states"
)

// Key is the normalized grouping key for duplicate detection.
type Key struct {
	Title   string
	Company string
}

// Group is a set of listings sharing a normalized (title, company) key.
// Membership is recomputed on every pass; groups are never persisted.
type Group struct {
	Key  Key
	Jobs []store.Job
}

// KeyFor builds the normalized grouping key for a listing.
func KeyFor(j store.Job) Key {
	return Key{
		Title:   strings.ToLower(strings.TrimSpace(j.Title)),
		Company: strings.ToLower(strings.TrimSpace(j.Company)),
	}
}

// GroupJobs buckets rows by normalized (title, company) and returns only the
// buckets with at least two members. A single listing is never a duplicate.
func GroupJobs(rows []store.Job) []Group {
	byKey := make(map[Key][]store.Job)
	var order []Key
	for _, j := range rows {
		k := KeyFor(j)
		if k.Title == "" && k.Company == "" {
			continue
		}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], j)
	}
	var groups []Group
	for _, k := range order {
		if jobs := byKey[k]; len(jobs) > 1 {
			groups = append(groups, Group{Key: k, Jobs: jobs})
		}
	}
	return groups
}

// Identify resolves every duplicate group to one survivor and returns the
// groups plus the id partition. It reads nothing but rows and has no side
// effects.
func Identify(rows []store.Job) (groups []Group, idsToDelete, idsToKeep []string) {
	groups = GroupJobs(rows)
	for _, g := range groups {
		best := SelectSurvivor(g.Jobs)
		idsToKeep = append(idsToKeep, best.ID)
		for _, j := range g.Jobs {
			if j.ID != best.ID {
				idsToDelete = append(idsToDelete, j.ID)
			}
		}
	}
	return groups, idsToDelete, idsToKeep
}

// A filter proposes a narrowed candidate set. The cascade adopts the proposal
// only when it is non-empty and strictly smaller than the current set; an
// empty proposal is discarded, never adopted.
type filter func([]store.Job) []store.Job

// cascade is the ordered tie-break sequence. Order is load-bearing.
var cascade = []filter{
	withDescription,
	inPreferredRegion,
	withSalary,
	atHighestMinSalary,
	preferRemote,
	withoutBroadQuery,
	fromPreferredSite,
	newestPosting,
}

// SelectSurvivor picks exactly one listing from a duplicate group. It is a
// pure function of the group contents: the same set always yields the same
// survivor.
func SelectSurvivor(jobs []store.Job) store.Job {
	candidates := jobs
	for _, f := range cascade {
		if len(candidates) == 1 {
			return candidates[0]
		}
		if narrowed := f(candidates); len(narrowed) > 0 && len(narrowed) < len(candidates) {
			candidates = narrowed
		}
	}
	// No further signal distinguishes the remainder; keep the first.
	return candidates[0]
}

func keep(jobs []store.Job, pred func(store.Job) bool) []store.Job {
	var out []store.Job
	for _, j := range jobs {
		if pred(j) {
			out = append(out, j)
		}
	}
	return out
}

func withDescription(jobs []store.Job) []store.Job {
	return keep(jobs, func(j store.Job) bool {
		return strings.TrimSpace(j.Description) != ""
	})
}

func inPreferredRegion(jobs []store.Job) []store.Job {
	return keep(jobs, func(j store.Job) bool {
		loc := strings.ToLower(j.Location)
		return strings.Contains(loc, preferredRegionName) ||
			strings.Contains(loc, preferredRegionAbbrev)
	})
}

func withSalary(jobs []store.Job) []store.Job {
	return keep(jobs, func(j store.Job) bool { return j.MinAmount > 0 })
}

func atHighestMinSalary(jobs []store.Job) []store.Job {
	salaried := withSalary(jobs)
	if len(salaried) == 0 {
		return nil
	}
	max := salaried[0].MinAmount
	for _, j := range salaried[1:] {
		if j.MinAmount > max {
			max = j.MinAmount
		}
	}
	return keep(salaried, func(j store.Job) bool { return j.MinAmount == max })
}

// preferRemote narrows to remote listings, but only when the set actually
// mixes remote and on-site.
func preferRemote(jobs []store.Job) []store.Job {
	remote := keep(jobs, func(j store.Job) bool { return j.IsRemote })
	if len(remote) == 0 || len(remote) == len(jobs) {
		return nil
	}
	return remote
}

func withoutBroadQuery(jobs []store.Job) []store.Job {
	return keep(jobs, func(j store.Job) bool {
		return !strings.Contains(strings.ToLower(j.SearchQuery), lowInfoQuery)
	})
}

// fromPreferredSite narrows to the first ranked site that has any
// representative in the set.
func fromPreferredSite(jobs []store.Job) []store.Job {
	for _, site := range sitePreference {
		matched := keep(jobs, func(j store.Job) bool {
			return strings.ToLower(j.Site) == site
		})
		if len(matched) > 0 {
			return matched
		}
	}
	return nil
}

// newestPosting narrows to the single listing with the greatest posting-date
// string. Listings without a posting date carry no signal here.
func newestPosting(jobs []store.Job) []store.Job {
	dated := keep(jobs, func(j store.Job) bool {
		return strings.TrimSpace(j.DatePosted) != ""
	})
	if len(dated) == 0 {
		return nil
	}
	sort.SliceStable(dated, func(i, k int) bool {
		return dated[i].DatePosted > dated[k].DatePosted
	})
	return dated[:1]
}
