package classify

import (
	"math"
	"testing"

	"github.com/joseph-ayodele/eps-docsorter/constants"
)

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "xyzabcxyz", 100},
		{"xyzabcxyz", "abc", 100},
		{"", "", 100},
		{"", "abc", 0},
		{"resumen de epicrisiz del paciente", "epicrisis", 100 * (1 - 2.0/18)},
		{"resumen de epicrisiz del paciente", "historia clinica", 43.75},
	}
	for _, tt := range tests {
		got := PartialRatio(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PartialRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("ab", "b"); math.Abs(got-200.0/3) > 1e-9 {
		t.Errorf("Ratio(ab, b) = %v", got)
	}
	if got := Ratio("same", "same"); got != 100 {
		t.Errorf("Ratio(same, same) = %v", got)
	}
}

func TestClassify(t *testing.T) {
	const noisy = "Resumen de EPICRISIZ del paciente"

	tests := []struct {
		name      string
		text      string
		rules     Rules
		threshold float64
		want      constants.DocumentType
		wantOK    bool
		wantExact bool
	}{
		{
			name:   "empty text",
			text:   "   ",
			rules:  Rules{{Type: "FVS", Keywords: []string{"factura"}}},
			wantOK: false,
		},
		{
			name:      "exact match ignoring accents and case",
			text:      "HISTORIA   ELECTRÓNICA del paciente",
			rules:     Rules{{Type: "FVS", Keywords: []string{"periodo facturado"}}, {Type: "EPI", Keywords: []string{"historia electronica"}}},
			want:      "EPI",
			wantOK:    true,
			wantExact: true,
		},
		{
			name: "exact match beats an earlier fuzzy candidate",
			text: "PERIODO FACTURADO " + noisy,
			rules: Rules{
				{Type: "EPI", Keywords: []string{"resumen de epicrisis"}},
				{Type: "FVS", Keywords: []string{"periodo facturado"}},
			},
			want:      "FVS",
			wantOK:    true,
			wantExact: true,
		},
		{
			name: "higher fuzzy score later in the rules wins",
			text: noisy,
			rules: Rules{
				{Type: "A", Keywords: []string{"epicrisis"}},
				{Type: "B", Keywords: []string{"resumen de epicrisis"}},
			},
			want:   "B",
			wantOK: true,
		},
		{
			name: "equal fuzzy scores keep the first candidate",
			text: noisy,
			rules: Rules{
				{Type: "A", Keywords: []string{"epicrisis"}},
				{Type: "B", Keywords: []string{"epicrisis"}},
			},
			want:   "A",
			wantOK: true,
		},
		{
			name:   "below threshold",
			text:   noisy,
			rules:  Rules{{Type: "A", Keywords: []string{"epicrisxs"}}},
			wantOK: false,
		},
		{
			name:   "blank keywords are ignored",
			text:   noisy,
			rules:  Rules{{Type: "A", Keywords: []string{"", "  "}}},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := tt.threshold
			if th == 0 {
				th = DefaultThreshold
			}
			m, ok := Classify(tt.text, tt.rules, th)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (match %+v)", ok, tt.wantOK, m)
			}
			if !ok {
				return
			}
			if m.Type != tt.want {
				t.Errorf("type = %q, want %q", m.Type, tt.want)
			}
			if m.Exact != tt.wantExact {
				t.Errorf("exact = %v, want %v", m.Exact, tt.wantExact)
			}
		})
	}
}

func TestClassifyThresholdIsInclusive(t *testing.T) {
	text := "resumen de epicrisiz del paciente"
	th := PartialRatio(text, "epicrisis")
	rules := Rules{{Type: "EPI", Keywords: []string{"epicrisis"}}}

	if _, ok := Classify(text, rules, th); !ok {
		t.Fatalf("score equal to threshold %v should match", th)
	}
	if _, ok := Classify(text, rules, th+0.001); ok {
		t.Fatalf("score below threshold should not match")
	}
}

func TestClassifierDefaults(t *testing.T) {
	c := NewClassifier(0, nil)
	if c.Threshold() != DefaultThreshold {
		t.Fatalf("threshold = %v", c.Threshold())
	}
	m, ok := c.Classify("p.pdf", "Factura electrónica de venta", Rules{{Type: "FVS", Keywords: []string{"factura electronica"}}})
	if !ok || m.Type != "FVS" {
		t.Fatalf("got %+v, %v", m, ok)
	}
}

func TestRulesTypes(t *testing.T) {
	r := Rules{{Type: "FVS"}, {Type: "EPI"}, {Type: "1"}}
	got := r.Types()
	want := []constants.DocumentType{"FVS", "EPI", "1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Types() = %v", got)
		}
	}
}
