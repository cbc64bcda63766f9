package sandbox

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if id != strings.ToLower(id) {
			t.Fatalf("NewID() = %q, not lowercase", id)
		}
		if seen[id] {
			t.Fatalf("NewID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestValidateSlug(t *testing.T) {
	valid := []string{"a", "abc", "misty-otter", "a1-b2", "0leading-digit", "x9"}
	for _, s := range valid {
		if err := ValidateSlug(s); err != nil {
			t.Errorf("ValidateSlug(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{"", "-leading", "trailing-", "UPPER", "under_score", "dot.ted", strings.Repeat("a", 64)}
	for _, s := range invalid {
		if err := ValidateSlug(s); err == nil {
			t.Errorf("ValidateSlug(%q) = nil, want error", s)
		}
	}

	if err := ValidateSlug(strings.Repeat("a", 63)); err != nil {
		t.Errorf("ValidateSlug(63 chars) = %v, want nil", err)
	}
}

func TestGenerateSlugIsValid(t *testing.T) {
	for i := 0; i < 50; i++ {
		slug := GenerateSlug()
		if err := ValidateSlug(slug); err != nil {
			t.Fatalf("GenerateSlug() = %q fails validation: %v", slug, err)
		}
		if parts := strings.Split(slug, "-"); len(parts) != 3 {
			t.Fatalf("GenerateSlug() = %q, want adjective-noun-suffix", slug)
		}
	}
}
