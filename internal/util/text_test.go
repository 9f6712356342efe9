package util

import "testing"

func TestNormalizeFullAddress(t *testing.T) {
	got := NormalizeFullAddress("123 Main St, Las Vegas,NV 89101")
	want := " 123 main st  las vegas nv 89101 "
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if !ContainsAny(got, Pad([]string{"nv"})) {
		t.Fatal("padded state not found")
	}
	if ContainsAny(got, Pad([]string{"vegas nv8"})) {
		t.Fatal("unexpected match")
	}
}

func TestHasAnyPrefix(t *testing.T) {
	if !HasAnyPrefix("89101-1234", []string{"891"}) {
		t.Fatal("prefix not matched")
	}
	if HasAnyPrefix("", []string{"891"}) {
		t.Fatal("empty matched")
	}
}
