package mysql

import "testing"

func TestNormalizeCourseCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"CPE-501", "CPE-501"},
		{"cpe-501", "CPE-501"},
		{"  cpe-501  ", "CPE-501"},
		{"cpe–501", "CPE-501"},  // en dash
		{"génie-101", "GENIE-101"}, // é decomposes, mark stripped
	}

	for _, c := range cases {
		if got := NormalizeCourseCode(c.in); got != c.want {
			t.Errorf("NormalizeCourseCode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
