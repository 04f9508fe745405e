package feed

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

type rowTitles []Row

func (r rowTitles) String(i int) string { return r[i].Title }
func (r rowTitles) Len() int            { return len(r) }

// Find returns the positions of rows matching query, best match first. A row
// whose id equals query always ranks first. An empty query matches nothing.
func Find(rows []Row, query string) []int {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var out []int
	exact := -1
	for i, r := range rows {
		if r.ID == query {
			exact = i
			out = append(out, i)
			break
		}
	}

	for _, m := range fuzzy.FindFrom(query, rowTitles(rows)) {
		if m.Index == exact {
			continue
		}
		out = append(out, m.Index)
	}
	return out
}
