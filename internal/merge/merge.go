// Package merge combines message collections into one deduplicated
// collection. Both the bulk-fetch path and the realtime feed route through
// it, so the store never holds two records with the same ID regardless of
// the order asynchronous results land in.
package merge

import "unibox/internal/domain"

// Deduplicate returns a collection with exactly one record per distinct ID.
// When multiple records share an ID the one with the latest timestamp wins;
// on equal timestamps the later-occurring record in the input wins. Output
// preserves the relative order of first appearance of each surviving ID.
func Deduplicate(messages []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	index := make(map[string]int, len(messages))

	for _, msg := range messages {
		at, seen := index[msg.ID]
		if !seen {
			index[msg.ID] = len(out)
			out = append(out, msg)
			continue
		}
		if !msg.Timestamp.Before(out[at].Timestamp) {
			out[at] = msg
		}
	}
	return out
}

// Merge concatenates existing and incoming and deduplicates the result.
// Neither input is mutated. The final set is the same no matter which side
// holds the newer version of a conflicting record.
func Merge(existing, incoming []domain.Message) []domain.Message {
	all := make([]domain.Message, 0, len(existing)+len(incoming))
	all = append(all, existing...)
	all = append(all, incoming...)
	return Deduplicate(all)
}
