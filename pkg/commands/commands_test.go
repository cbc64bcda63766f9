package commands

import (
	"strings"
	"testing"
	"time"
)

func TestHumanAge(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero time", time.Time{}, "-"},
		{"seconds", time.Now().Add(-30 * time.Second), "30s"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5m"},
		{"hours", time.Now().Add(-2 * time.Hour), "2h"},
		{"days", time.Now().Add(-72 * time.Hour), "3d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := humanAge(tt.t); got != tt.want {
				t.Errorf("humanAge() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues([]string{"FOO=bar", "EMPTY=", "EQ=a=b"}, "env")
	if err != nil {
		t.Fatalf("parseKeyValues() error: %v", err)
	}
	want := map[string]string{"FOO": "bar", "EMPTY": "", "EQ": "a=b"}
	if len(got) != len(want) {
		t.Fatalf("parseKeyValues() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseKeyValues()[%q] = %q, want %q", k, got[k], v)
		}
	}

	if _, err := parseKeyValues([]string{"novalue"}, "env"); err == nil {
		t.Error("parseKeyValues() with missing = returned nil error")
	}
	if _, err := parseKeyValues([]string{"=x"}, "label"); err == nil {
		t.Error("parseKeyValues() with empty key returned nil error")
	}
	if got, err := parseKeyValues(nil, "env"); err != nil || got != nil {
		t.Errorf("parseKeyValues(nil) = %v, %v, want nil, nil", got, err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 20, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-very-long-sandbox-name", 10, "a-very-..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestShortImageID(t *testing.T) {
	if got := shortImageID("sha256:abcdef0123456789abcdef"); got != "abcdef012345" {
		t.Errorf("shortImageID() = %q, want abcdef012345", got)
	}
	if got := shortImageID("abc"); got != "abc" {
		t.Errorf("shortImageID() = %q, want abc", got)
	}
}

func TestDropSSHEntry(t *testing.T) {
	config := `Host dockhand.one
    HostName 127.0.0.1
    Port 2222
    User one

Host dockhand.two
    HostName 127.0.0.1
    Port 2222
    User two

Host unrelated
    HostName example.com
`

	got := dropSSHEntry(config, "dockhand.one")
	if strings.Contains(got, "dockhand.one") || strings.Contains(got, "User one") {
		t.Errorf("dropSSHEntry() left the removed block behind:\n%s", got)
	}
	if !strings.Contains(got, "Host dockhand.two") || !strings.Contains(got, "User two") {
		t.Errorf("dropSSHEntry() damaged a sibling block:\n%s", got)
	}
	if !strings.Contains(got, "Host unrelated") || !strings.Contains(got, "example.com") {
		t.Errorf("dropSSHEntry() damaged an unrelated block:\n%s", got)
	}

	// Absent alias leaves the config untouched.
	if got := dropSSHEntry(config, "dockhand.absent"); got != config {
		t.Error("dropSSHEntry() modified config without a matching block")
	}

	// An alias that is a prefix of another must not swallow its neighbor.
	prefixed := `Host dockhand.a
    HostName 127.0.0.1
    User a

Host dockhand.ab
    HostName 127.0.0.1
    User ab
`
	got = dropSSHEntry(prefixed, "dockhand.a")
	if strings.Contains(got, "User a\n") {
		t.Errorf("dropSSHEntry() left the removed block behind:\n%s", got)
	}
	if !strings.Contains(got, "Host dockhand.ab") || !strings.Contains(got, "User ab") {
		t.Errorf("dropSSHEntry() removed a block whose alias merely shares a prefix:\n%s", got)
	}
}

func TestCutKeyValue(t *testing.T) {
	tests := []struct {
		in       string
		key      string
		value    string
		hasValue bool
	}{
		{"env=prod", "env", "prod", true},
		{"managed", "managed", "", false},
		{"a=b=c", "a", "b=c", true},
	}
	for _, tt := range tests {
		key, value, hasValue := cutKeyValue(tt.in)
		if key != tt.key || value != tt.value || hasValue != tt.hasValue {
			t.Errorf("cutKeyValue(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, key, value, hasValue, tt.key, tt.value, tt.hasValue)
		}
	}
}
