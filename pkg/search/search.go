// Package search finds nodes by label.
//
// There is no index: every iteration of the sequence returned by [Search]
// scans the labels it was given, in insertion order. Passing the store of
// the current session on each call is enough to never see nodes from a
// graph that has since been reloaded.
//
//	for m := range search.Search(store, "example") {
//	    fmt.Println(m.ID, m.Label)
//	}
package search

import (
	"iter"
	"strings"
)

// Labels is the read view Search needs. *graph.Store implements it.
type Labels interface {
	Len() int
	LabelAt(i int) (id, label string)
}

// Match is one search hit.
type Match struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Search returns the nodes whose label contains query, ignoring case.
// The query is used as given, spaces included. An empty query matches
// nothing. The sequence is lazy, restartable and yields matches in node
// order.
func Search(src Labels, query string) iter.Seq[Match] {
	needle := strings.ToLower(query)
	return func(yield func(Match) bool) {
		if needle == "" || src == nil {
			return
		}
		for i := range src.Len() {
			id, label := src.LabelAt(i)
			if !strings.Contains(strings.ToLower(label), needle) {
				continue
			}
			if !yield(Match{ID: id, Label: label}) {
				return
			}
		}
	}
}

// Collect drains seq into a slice, stopping after limit matches when
// limit > 0.
func Collect(seq iter.Seq[Match], limit int) []Match {
	var out []Match
	for m := range seq {
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
