package procsession

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var adjectives = []string{
	"quiet", "brisk", "amber", "silver", "lucid", "bold", "steady", "quick",
	"gentle", "sharp", "vivid", "calm", "swift", "clever", "bright", "dense",
}

var nouns = []string{
	"falcon", "harbor", "cedar", "granite", "otter", "meadow", "ember", "ridge",
	"comet", "willow", "basin", "lantern", "quartz", "heron", "thicket", "delta",
}

// NewSessionID generates an adjective-noun pair derived from the current
// timestamp for readability (grounded on the teacher's uuid-based ids,
// swapped for a human-friendly scheme per §4.C). Uniqueness is probabilistic;
// callers detecting a collision should call WithSuffix for a guaranteed-unique
// fallback.
func NewSessionID() string {
	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))
	return fmt.Sprintf("%s-%s", adjectives[r.Intn(len(adjectives))], nouns[r.Intn(len(nouns))])
}

// WithSuffix appends a short uuid suffix to disambiguate a colliding id.
func WithSuffix(id string) string {
	return fmt.Sprintf("%s-%s", id, uuid.NewString()[:8])
}
