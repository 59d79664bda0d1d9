package decimal

import "testing"

func TestParseAndString(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"0", "0"},
		{"100", "100"},
		{"100.5", "100.5"},
		{"-100.5", "-100.5"},
		{"0.001", "0.001"},
		{"50000.5", "50000.5"},
		{"1.000000000000000000", "1"},
		{"-0", "0"},
		{"+5", "5"},
		{".5", "0.5"},
	}
	for _, tc := range cases {
		d, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", tc.input, err)
		}
		if got := d.String(); got != tc.want {
			t.Errorf("Parse(%q).String() = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestRoundTripIdempotentOnCanonicalInput(t *testing.T) {
	canon := []string{"0", "1", "100.5", "-100.5", "0.001"}
	for _, s := range canon {
		d, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		got := d.String()
		if got != s {
			t.Errorf("round trip on canonical %q produced %q", s, got)
		}
		d2, err := Parse(got)
		if err != nil {
			t.Fatalf("re-parse of %q: %v", got, err)
		}
		if !d.Equal(d2) {
			t.Errorf("re-parsed decimal not equal to original for %q", s)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{"", "abc", "1.2.3", "1.2345678901234567890", "-", "1-2"}
	for _, s := range bad {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", s)
		}
	}
}

func TestIsZero(t *testing.T) {
	z, _ := Parse("0")
	if !z.IsZero() {
		t.Fatalf("expected 0 to be zero")
	}
	nz, _ := Parse("0.000000000000000001")
	if nz.IsZero() {
		t.Fatalf("expected smallest unit to be non-zero")
	}
}

func TestEqualStructural(t *testing.T) {
	a := MustParse("1.5")
	b := MustParse("1.500")
	if !a.Equal(b) {
		t.Fatalf("expected 1.5 == 1.500")
	}
	c := MustParse("-0")
	z := MustParse("0")
	if !c.Equal(z) {
		t.Fatalf("expected canonical zero regardless of sign")
	}
	if a == b {
		// struct equality works too since uint256.Int is a plain array
	} else {
		t.Fatalf("expected struct == to also hold for equal decimals")
	}
}

func TestMapKeyUsage(t *testing.T) {
	m := map[Decimal]string{}
	m[MustParse("100")] = "a"
	m[MustParse("100.0")] = "b"
	if len(m) != 1 {
		t.Fatalf("expected canonical decimals to collide as map keys, got %d entries", len(m))
	}
	if m[MustParse("100")] != "b" {
		t.Fatalf("expected last write to win")
	}
}
