// Package datasource produces the synthetic context fed to research pipelines:
// news search results, financial snapshots and a grants catalog.
//
// Every function is pure and infallible. Output is seeded from the input so the
// same query always yields the same context.
package datasource

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// Section is one labelled block of gathered context.
type Section struct {
	Label string
	Body  string
}

// Render joins sections into a single context block of "--- LABEL ---" headers.
func Render(sections ...Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", strings.ToUpper(s.Label), s.Body))
	}
	return strings.Join(parts, "\n\n")
}

// newFaker returns a generator seeded from parts. gofakeit treats seed 0 as
// "random", so the hash is forced odd.
func newFaker(parts ...string) *gofakeit.Faker {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return gofakeit.New(h.Sum64() | 1)
}
