package phonenumber

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"+1 415-555-0100",
		"14155550100",
		"+14155550100",
		" +1 (415) 555-0100 ",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	a := Normalize("+1 415-555-0100")
	b := Normalize("14155550100")
	if a != b {
		t.Errorf("expected equivalent normalization, got %q vs %q", a, b)
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"+14155550100": true,
		"+1":           false,
		"14155550100":  false,
		"+abc":         false,
		"":             false,
	}
	for in, want := range cases {
		if got := Valid(Normalize(in)); got != want {
			t.Errorf("Valid(Normalize(%q)) = %v, want %v", in, got, want)
		}
	}
}
