package config

import (
	"testing"
	"time"
)

func TestParseProviders(t *testing.T) {
	providers := parseProviders("stripepay:whsec_abc, globex:whsec_def,broken,empty:")

	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers["stripepay"] != "whsec_abc" {
		t.Errorf("unexpected stripepay secret: %q", providers["stripepay"])
	}
	if providers["globex"] != "whsec_def" {
		t.Errorf("unexpected globex secret: %q", providers["globex"])
	}
}

func TestSplitList(t *testing.T) {
	items := splitList(" http://a.local , http://b.local ,, ")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0] != "http://a.local" || items[1] != "http://b.local" {
		t.Errorf("unexpected items: %v", items)
	}

	if splitList("") != nil {
		t.Error("expected nil for empty input")
	}
}

func TestGetters(t *testing.T) {
	t.Setenv("PAYHOOK_TEST_INT", "42")
	t.Setenv("PAYHOOK_TEST_BAD_INT", "nope")
	t.Setenv("PAYHOOK_TEST_BOOL", "true")
	t.Setenv("PAYHOOK_TEST_DURATION", "90s")

	if got := GetInt("PAYHOOK_TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if got := GetInt("PAYHOOK_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
	if got := GetBool("PAYHOOK_TEST_BOOL", false); !got {
		t.Error("expected true")
	}
	if got := GetDuration("PAYHOOK_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("expected 90s, got %s", got)
	}
	if got := GetString("PAYHOOK_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}
