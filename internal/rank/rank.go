// Package rank orders a message collection for presentation. Ranking is a
// pure read-time projection: it never mutates the store or its input.
package rank

import (
	"fmt"
	"sort"
	"time"

	"unibox/internal/domain"
)

// Mode selects the ranking policy.
type Mode string

const (
	ModePriority Mode = "priority" // descending priority, newest first on ties
	ModeTime     Mode = "time"     // newest first
	ModeBoth     Mode = "both"     // blended relevance (default)
)

// ParseMode validates a mode string, returning ModeBoth for empty input.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePriority, ModeTime, ModeBoth:
		return Mode(s), nil
	case "":
		return ModeBoth, nil
	}
	return "", fmt.Errorf("unknown rank mode %q", s)
}

// Blended relevance policy: weights and horizon are fixed, matching the
// backend's scoring contract.
const (
	priorityWeight = 0.7
	recencyWeight  = 0.3
	recencyHorizon = 7 * 24 * time.Hour
)

// Rank returns a new slice ordered under the given mode, using the current
// wall clock as the recency reference.
func Rank(messages []domain.Message, mode Mode) []domain.Message {
	return RankAt(messages, mode, time.Now())
}

// RankAt ranks against a fixed "now" snapshot. The snapshot is taken once
// per call so the comparator stays a total order for the whole sort.
func RankAt(messages []domain.Message, mode Mode, now time.Time) []domain.Message {
	out := make([]domain.Message, len(messages))
	copy(out, messages)

	switch mode {
	case ModePriority:
		sort.SliceStable(out, func(i, j int) bool {
			pi, pj := ClampPriority(out[i].Priority), ClampPriority(out[j].Priority)
			if pi != pj {
				return pi > pj
			}
			return out[i].Timestamp.After(out[j].Timestamp)
		})
	case ModeTime:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.After(out[j].Timestamp)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			ri, rj := Relevance(out[i], now), Relevance(out[j], now)
			if ri != rj {
				return ri > rj
			}
			return out[i].Timestamp.After(out[j].Timestamp)
		})
	}
	return out
}

// Relevance blends priority and recency into a single score.
func Relevance(msg domain.Message, now time.Time) float64 {
	return priorityWeight*ClampPriority(msg.Priority) + recencyWeight*Recency(msg, now)
}

// Recency decays linearly from 1 (just arrived) to 0 at the horizon.
// Messages with timestamps in the future score 1.
func Recency(msg domain.Message, now time.Time) float64 {
	age := now.Sub(msg.Timestamp)
	if age <= 0 {
		return 1
	}
	if age >= recencyHorizon {
		return 0
	}
	return 1 - float64(age)/float64(recencyHorizon)
}

// ClampPriority forces a priority into [0,1]. Out-of-range upstream values
// are never rejected at ingestion, only clamped at the point of use.
func ClampPriority(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
