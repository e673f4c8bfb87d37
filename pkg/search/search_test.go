package search

import (
	"fmt"
	"slices"
	"testing"

	"github.com/matzehuels/sitegraph/pkg/graph"
)

func testStore(t *testing.T, labels ...string) *graph.Store {
	t.Helper()
	in := make([]graph.NodeInput, len(labels))
	for i, l := range labels {
		in[i] = graph.NodeInput{ID: fmt.Sprint(i + 1), Label: l}
	}
	s, err := graph.Load(in, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func ids(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	s := testStore(t, "abc.com", "xABCx.org", "other.net", "AbC", "ab-c.io")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "CaseInsensitive", query: "abc", want: []string{"1", "2", "4"}},
		{name: "UpperQuery", query: "ABC", want: []string{"1", "2", "4"}},
		{name: "Suffix", query: ".net", want: []string{"3"}},
		{name: "NoMatch", query: "zzz", want: nil},
		{name: "Empty", query: "", want: nil},
		{name: "Whitespace", query: "   ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Collect(Search(s, tt.query), 0))
			if !slices.Equal(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearchKeepsSpaces(t *testing.T) {
	s := testStore(t, "ab", "a b", "xyz", "A  B")

	tests := []struct {
		query string
		want  []string
	}{
		{query: " b", want: []string{"2", "4"}},
		{query: "a b", want: []string{"2"}},
		{query: "  ", want: []string{"4"}},
		{query: "b ", want: nil},
	}

	for _, tt := range tests {
		got := ids(Collect(Search(s, tt.query), 0))
		if !slices.Equal(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
			t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestSearchRestartable(t *testing.T) {
	s := testStore(t, "a.com", "b.com", "c.org")
	seq := Search(s, ".com")

	first := Collect(seq, 0)
	second := Collect(seq, 0)
	if !slices.Equal(first, second) {
		t.Errorf("second iteration = %v, want %v", second, first)
	}
	if len(first) != 2 {
		t.Errorf("got %d matches, want 2", len(first))
	}
}

func TestSearchEarlyStop(t *testing.T) {
	s := testStore(t, "x1", "x2", "x3", "x4")

	got := Collect(Search(s, "x"), 2)
	if !slices.Equal(ids(got), []string{"1", "2"}) {
		t.Errorf("Collect(limit 2) = %v", ids(got))
	}
}

func TestSearchNilSource(t *testing.T) {
	if got := Collect(Search(nil, "x"), 0); len(got) != 0 {
		t.Errorf("Search(nil) = %v, want empty", got)
	}
}

func ExampleSearch() {
	in := []graph.NodeInput{
		{ID: "1", Label: "docs.example.com"},
		{ID: "2", Label: "cdn.other.net"},
		{ID: "3", Label: "Example.org"},
	}
	s, _ := graph.Load(in, nil)

	for m := range Search(s, "EXAMPLE") {
		fmt.Println(m.ID, m.Label)
	}
	// Output:
	// 1 docs.example.com
	// 3 Example.org
}
