package sandbox

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"github.com/segmentio/ksuid"
)

// NewID returns a fresh sandbox identifier: a KSUID, lowercased so it is
// safe in hostnames and subdomains.
func NewID() string {
	return strings.ToLower(ksuid.New().String())
}

// slugRegex validates RFC 1123 labels: lowercase alphanumeric, hyphens
// allowed inside, alphanumeric at both ends.
var slugRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateSlug checks that a slug can serve as a DNS label, since slugs
// become subdomains.
func ValidateSlug(slug string) error {
	if len(slug) == 0 {
		return fmt.Errorf("slug cannot be empty")
	}
	if len(slug) > 63 {
		return fmt.Errorf("slug cannot exceed 63 characters")
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("slug must be lowercase alphanumeric with inner hyphens, starting and ending with an alphanumeric")
	}
	return nil
}

var slugAdjectives = []string{
	"amber", "breezy", "coral", "dusty", "eager", "foggy", "gentle", "hazy",
	"ivory", "jolly", "lively", "mellow", "misty", "nimble", "rustic", "tidy",
}

var slugNouns = []string{
	"anchor", "beacon", "cove", "dune", "estuary", "fjord", "grotto", "harbor",
	"inlet", "jetty", "lagoon", "marina", "otter", "pier", "quay", "reef",
}

// GenerateSlug returns a random human-friendly slug, adjective-noun plus a
// short random suffix. Always passes ValidateSlug.
func GenerateSlug() string {
	adj := slugAdjectives[randomInt(len(slugAdjectives))]
	noun := slugNouns[randomInt(len(slugNouns))]
	return fmt.Sprintf("%s-%s-%s", adj, noun, randomSuffix())
}

func randomInt(max int) int {
	b := make([]byte, 1)
	rand.Read(b)
	return int(b[0]) % max
}

func randomSuffix() string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 4)
	rand.Read(b)
	for i := range b {
		b[i] = chars[int(b[i])%len(chars)]
	}
	return string(b)
}
