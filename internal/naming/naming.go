package naming

import (
	"sort"
	"strings"
)

// Candidate is one possible display name for a device, tagged with where it
// came from: "advertised" (local name from the advertisement), "model"
// (audio-accessory model hint), "manufacturer" (company name fallback).
type Candidate struct {
	Name   string
	Source string
}

type scoredCandidate struct {
	Source      string
	DisplayName string
	Score       int
}

// NormalizeCandidate trims and scores a raw candidate. ok=false marks
// candidates that should never be offered (empty, placeholder, garbage).
func NormalizeCandidate(source, rawName string) (displayName string, score int, ok bool) {
	source = strings.ToLower(strings.TrimSpace(source))
	name := strings.TrimSpace(rawName)
	if name == "" {
		return "", 0, false
	}

	s := scoreCandidate(source, name)
	if s < 0 {
		return name, s, false
	}
	return name, s, true
}

// ChooseBestDisplayName picks the highest-scoring candidate above the
// quality bar, with deterministic tie-breaking.
func ChooseBestDisplayName(candidates []Candidate) (string, bool) {
	best := scoredCandidate{Score: -1_000_000}

	for _, c := range candidates {
		display, score, ok := NormalizeCandidate(c.Source, c.Name)
		if !ok {
			continue
		}
		// Require a minimum quality bar before offering a display name.
		if score < 70 {
			continue
		}
		next := scoredCandidate{Source: c.Source, DisplayName: display, Score: score}
		if betterCandidate(next, best) {
			best = next
		}
	}

	if best.Score < 70 || strings.TrimSpace(best.DisplayName) == "" {
		return "", false
	}
	return best.DisplayName, true
}

// SortCandidatesForDisplay orders candidates best-first for diagnostics.
func SortCandidatesForDisplay(candidates []Candidate) []Candidate {
	type scored struct {
		orig Candidate
		norm scoredCandidate
		ok   bool
	}

	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		display, score, ok := NormalizeCandidate(c.Source, c.Name)
		scoredList = append(scoredList, scored{
			orig: c,
			norm: scoredCandidate{Source: c.Source, DisplayName: display, Score: score},
			ok:   ok,
		})
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		ai := scoredList[i]
		aj := scoredList[j]
		if ai.ok != aj.ok {
			return ai.ok
		}
		if ai.norm.Score != aj.norm.Score {
			return ai.norm.Score > aj.norm.Score
		}
		return ai.norm.DisplayName < aj.norm.DisplayName
	})

	out := make([]Candidate, 0, len(scoredList))
	for _, item := range scoredList {
		out = append(out, item.orig)
	}
	return out
}

func betterCandidate(a, b scoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	// Prefer shorter names after scoring; long advertised names tend to
	// carry serial-number noise.
	if len(a.DisplayName) != len(b.DisplayName) {
		return len(a.DisplayName) < len(b.DisplayName)
	}
	return a.DisplayName < b.DisplayName
}

func scoreCandidate(source, name string) int {
	normalized := strings.ToLower(name)
	if looksGarbage(normalized) {
		return -1
	}

	base := 50
	switch source {
	case "advertised":
		base = 90
	case "model":
		base = 85
	case "manufacturer":
		base = 72
	}

	if len(name) < 2 {
		base -= 50
	}

	// Factory default names ("LE-A1B2", "BT_5.1") are better than nothing
	// but should lose to anything human-assigned.
	if looksFactoryDefault(normalized) {
		base -= 15
	}

	return base
}

func looksFactoryDefault(normalized string) bool {
	for _, prefix := range []string{"le-", "ble-", "bt-", "bt_"} {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

func looksGarbage(normalized string) bool {
	if normalized == "" {
		return true
	}
	switch normalized {
	case "unknown", "n/a", "null", "(null)":
		return true
	}
	// A bare address is not a name.
	if strings.Count(normalized, ":") >= 5 {
		return true
	}
	return false
}
