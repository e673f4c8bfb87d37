// Package source fetches raw graph documents for a named variant.
//
// A Source returns the undecoded JSON bytes of one variant; decoding and
// validation happen in [graph.Decode]. Three backends are provided:
//
//   - [FileSource]: a directory holding graph_data.json and
//     graph_data_filtered.json
//   - [HTTPSource]: the same file names under a base URL, with retries
//   - [MongoSource]: a collection of {variant, graph} documents
//
// Any Source can be wrapped with [Cached] to store fetched bytes in a
// [cache.Cache].
package source

import (
	"context"
	"strings"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
)

// Variant names one of the two published graph documents.
type Variant string

const (
	// Full is the unfiltered graph.
	Full Variant = "full"
	// Filtered keeps only nodes judged relevant. It is the default.
	Filtered Variant = "filtered"
)

// DefaultVariant is loaded when nothing else is requested.
const DefaultVariant = Filtered

// Variants lists every known variant.
func Variants() []Variant { return []Variant{Full, Filtered} }

// ParseVariant accepts "full" or "filtered" (case-insensitive). An empty
// string yields [DefaultVariant].
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultVariant, nil
	case string(Full):
		return Full, nil
	case string(Filtered):
		return Filtered, nil
	}
	return "", apperrors.New(apperrors.ErrCodeInvalidVariant, "unknown variant %q (want full or filtered)", s)
}

// Toggle returns the other variant.
func (v Variant) Toggle() Variant {
	if v == Full {
		return Filtered
	}
	return Full
}

// FileName returns the document name the variant is published under.
func (v Variant) FileName() string {
	if v == Full {
		return "graph_data.json"
	}
	return "graph_data_filtered.json"
}

func (v Variant) String() string { return string(v) }

// Source fetches the raw document for a variant.
type Source interface {
	// Name identifies the source in logs and cache keys.
	Name() string
	Fetch(ctx context.Context, v Variant) ([]byte, error)
}
