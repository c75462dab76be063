package tagging

import (
	"sort"
	"strings"
)

const (
	TagAudio    = "audio"
	TagWearable = "wearable"
	TagPhone    = "phone"
	TagComputer = "computer"
	TagTracker  = "tracker"
	TagMedia    = "media"
	TagBeacon   = "beacon"
	TagIoT      = "iot"
)

var allTags = []string{
	TagAudio,
	TagWearable,
	TagPhone,
	TagComputer,
	TagTracker,
	TagMedia,
	TagBeacon,
	TagIoT,
}

func AllTags() []string {
	out := make([]string, len(allTags))
	copy(out, allTags)
	return out
}

func IsValidTag(tag string) bool {
	tag = NormalizeTag(tag)
	for _, t := range allTags {
		if t == tag {
			return true
		}
	}
	return false
}

func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func NormalizeTagList(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		t := NormalizeTag(raw)
		if t == "" {
			continue
		}
		if !IsValidTag(t) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
