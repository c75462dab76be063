package tagging

import (
	"sort"
	"strings"

	"blewatch/internal/continuity"
)

// Suggestion is one device-category guess with supporting evidence.
type Suggestion struct {
	Tag        string
	Confidence int
	Evidence   map[string]any
}

// MergeSuggestions collapses suggestion groups per tag, keeping the highest
// confidence and unioning evidence, with deterministic output order.
func MergeSuggestions(groups ...[]Suggestion) []Suggestion {
	byTag := make(map[string]Suggestion)

	for _, group := range groups {
		for _, s := range group {
			tag := NormalizeTag(s.Tag)
			if !IsValidTag(tag) {
				continue
			}
			if s.Confidence <= 0 {
				continue
			}

			existing, ok := byTag[tag]
			if !ok || s.Confidence > existing.Confidence {
				s.Tag = tag
				byTag[tag] = s
				continue
			}
			if ok && s.Evidence != nil {
				if existing.Evidence == nil {
					existing.Evidence = map[string]any{}
				}
				for k, v := range s.Evidence {
					existing.Evidence[k] = v
				}
				byTag[tag] = existing
			}
		}
	}

	out := make([]Suggestion, 0, len(byTag))
	for _, v := range byTag {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// SuggestFromMessages derives category suggestions from decoded continuity
// sub-messages; the sub-protocol is a much stronger signal than a name.
func SuggestFromMessages(msgs []continuity.Message) []Suggestion {
	var out []Suggestion
	for _, m := range msgs {
		switch v := m.(type) {
		case continuity.AudioAccessoryStatus:
			out = append(out, Suggestion{
				Tag:        TagAudio,
				Confidence: 92,
				Evidence: map[string]any{
					"signal": "continuity",
					"model":  v.ModelName(),
				},
			})
		case continuity.FindMy:
			out = append(out, Suggestion{
				Tag:        TagTracker,
				Confidence: 85,
				Evidence: map[string]any{
					"signal":    "continuity",
					"ownership": v.Ownership.String(),
				},
			})
		case continuity.AirPlayTarget:
			out = append(out, Suggestion{
				Tag:        TagMedia,
				Confidence: 88,
				Evidence: map[string]any{
					"signal": "continuity",
					"kind":   v.Kind().String(),
				},
			})
		case continuity.NearbyInfo:
			s := Suggestion{
				Tag:        TagPhone,
				Confidence: 72,
				Evidence: map[string]any{
					"signal":   "continuity",
					"activity": v.Activity.String(),
				},
			}
			switch v.Activity {
			case continuity.ActivityWatchOnWrist, continuity.ActivityWorkout:
				s.Tag = TagWearable
				s.Confidence = 86
			}
			out = append(out, s)
		case continuity.Handoff:
			out = append(out, Suggestion{
				Tag:        TagPhone,
				Confidence: 60,
				Evidence:   map[string]any{"signal": "continuity", "handoff": true},
			})
		}
	}
	return out
}

// SuggestFromNames derives weaker suggestions from advertised local names.
func SuggestFromNames(names []string) []Suggestion {
	var out []Suggestion
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}

		contains := func(set ...string) bool {
			for _, candidate := range set {
				if strings.Contains(name, candidate) {
					return true
				}
			}
			return false
		}

		add := func(tag string, match string) {
			out = append(out, Suggestion{
				Tag:        tag,
				Confidence: 70,
				Evidence: map[string]any{
					"signal": "name",
					"name":   raw,
					"match":  match,
				},
			})
		}

		switch {
		case contains("airpods", "buds", "headphone", "earbud", "beats"):
			add(TagAudio, "audio")
		case contains("watch", "band", "ring"):
			add(TagWearable, "wearable")
		case contains("tv", "homepod", "speaker", "soundbar", "chromecast"):
			add(TagMedia, "media")
		case contains("airtag", "tile", "smarttag", "tracker"):
			add(TagTracker, "tracker")
		case contains("iphone", "pixel", "galaxy", "phone"):
			add(TagPhone, "phone")
		case contains("macbook", "laptop", "imac", "desktop"):
			add(TagComputer, "computer")
		case contains("beacon", "ibeacon"):
			add(TagBeacon, "beacon")
		case contains("bulb", "plug", "sensor", "thermo", "scale"):
			add(TagIoT, "iot")
		}
	}
	return out
}

// Tags is the merged tag list for one device, computed from its latest
// snapshot content.
func Tags(name string, msgs []continuity.Message) []string {
	merged := MergeSuggestions(
		SuggestFromMessages(msgs),
		SuggestFromNames([]string{name}),
	)
	out := make([]string, 0, len(merged))
	for _, s := range merged {
		out = append(out, s.Tag)
	}
	return NormalizeTagList(out)
}
