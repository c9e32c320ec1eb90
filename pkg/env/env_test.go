package env

import "testing"

func TestGetFallsBackWhenBlank(t *testing.T) {
	t.Setenv("LAGLUE_TEST_VALUE", "   ")
	if got := Get("LAGLUE_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("LAGLUE_TEST_VALUE", "console")
	if got := Get("LAGLUE_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("LAGLUE_TEST_FLAG", "true")
	if !Bool("LAGLUE_TEST_FLAG", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("LAGLUE_TEST_FLAG", "nope")
	if Bool("LAGLUE_TEST_FLAG", false) {
		t.Fatalf("malformed value should fall back")
	}
}
