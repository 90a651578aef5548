package pipeline

import (
	"reflect"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "all.g", want: "all.g"},
		{in: "  tank/ ", want: "tank"},
		{in: `hull\`, want: "hull"},
		{in: "comb//", want: "comb"},
		{in: "we!rd-name$", want: "werdname"},
		{in: "under_score.r", want: "under_score.r"},
		{in: "/", want: ""},
		{in: "---", want: ""},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTopObjects(t *testing.T) {
	out := "all.g/   tank.r/\n hull\\  *** \n\tturret.c/R\n"
	got := parseTopObjects(out)
	want := []string{"all.g", "tank.r", "hull", "turret.cR"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseTopObjects() = %v, want %v", got, want)
	}
	if got := parseTopObjects(""); len(got) != 0 {
		t.Errorf("parseTopObjects(empty) = %v", got)
	}
}

func TestParseTree(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "union and subtraction", in: "{u hull.r} {u turret.c} {- cutout.s}\n", want: []string{"hull.r", "turret.c", "cutout.s"}},
		{name: "intersection and spacing", in: "{+ a.s}{ u  b.s }", want: []string{"a.s", "b.s"}},
		{name: "duplicates kept once", in: "{u wheel.c} {u wheel.c}", want: []string{"wheel.c"}},
		{name: "primitive listing", in: "ell: not a combination", want: nil},
		{name: "empty", in: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTree(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseTree(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCandidateObjects(t *testing.T) {
	got := candidateObjects("/lib/parts/tank.g", []string{"tank.g", "hull", "all", "turret"})
	want := []string{"all", "all.g", "tank", "tank.g", "tank.c", "hull", "turret"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidateObjects() = %v, want %v", got, want)
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name           string
		stdout, stderr string
		want           string
	}{
		{name: "stdout preferred", stdout: " Tank \n", stderr: "noise", want: "Tank"},
		{name: "stderr fallback", stdout: "  ", stderr: "M1 Abrams\n", want: "M1 Abrams"},
		{name: "unknown", want: UnknownTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle(tt.stdout, tt.stderr); got != tt.want {
				t.Errorf("extractTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
