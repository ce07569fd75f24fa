package moderation

import (
	"strings"

	"aegis/internal/tracking"
)

var weaponKeywords = []string{
	"gun", "firearm", "weapon", "handgun", "pistol", "revolver", "rifle",
	"shotgun", "assault rifle", "machine gun", "submachine", "sniper",
	"ak-47", "ar-15", "grenade", "explosive", "bomb", "rocket", "missile",
	"bazooka", "knife", "blade", "dagger", "sword", "machete", "axe",
	"hatchet", "club", "bat", "taser", "crossbow", "bow", "arrow",
}

var nudityKeywords = []string{
	"breast", "breasts", "nipple", "nipples", "torso", "chest",
}

var personLabels = map[string]struct{}{
	"person": {}, "man": {}, "woman": {}, "boy": {}, "girl": {},
}

// ObjectRules picks which detected objects on a frame deserve a blur box.
type ObjectRules struct {
	MinConfidence float64
}

// Select keeps weapon and nudity detections above the confidence floor.
// Person boxes are kept only when the frame as a whole was flagged, since a
// person alone is not unsafe.
func (r ObjectRules) Select(dets []tracking.Detection, frameBlocked bool) []tracking.Detection {
	var out []tracking.Detection
	for _, d := range dets {
		if d.Confidence < r.MinConfidence || d.Box.Empty() {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(d.Label))
		switch {
		case matchesKeyword(label, weaponKeywords), matchesKeyword(label, nudityKeywords):
			out = append(out, d)
		case frameBlocked && isPerson(label):
			out = append(out, d)
		}
	}
	return out
}

func isPerson(label string) bool {
	_, ok := personLabels[label]
	return ok
}

// matchesKeyword matches whole words or whole phrases so "bat" does not hit
// "bathtub".
func matchesKeyword(label string, keywords []string) bool {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return r == ' ' || r == '_' || r == '/' || r == ','
	})
	joined := " " + strings.Join(words, " ") + " "
	for _, kw := range keywords {
		if strings.Contains(joined, " "+kw+" ") {
			return true
		}
	}
	return false
}
