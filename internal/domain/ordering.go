package domain

import "sort"

// CanonicalLess orders entries by entry date, then by id for same-day entries.
// Every balance derivation uses this order.
func CanonicalLess(a, b *Entry) bool {
	if !a.EntryDate.Equal(b.EntryDate) {
		return a.EntryDate.Before(b.EntryDate)
	}
	return a.ID < b.ID
}

// SortCanonical sorts entries in place in canonical order.
func SortCanonical(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return CanonicalLess(entries[i], entries[j])
	})
}

// SortRecentFirst sorts entries in place, most recent first.
func SortRecentFirst(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return CanonicalLess(entries[j], entries[i])
	})
}

// SortByID sorts entries by ascending id, the order row locks are taken in.
func SortByID(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
}

// insertionIndex returns where a not-yet-persisted entry lands in a
// canonically ordered slice. A new entry receives the highest id, so it goes
// after every entry dated on or before its own date.
func insertionIndex(ordered []*Entry, e *Entry) int {
	return sort.Search(len(ordered), func(i int) bool {
		return ordered[i].EntryDate.After(e.EntryDate)
	})
}
