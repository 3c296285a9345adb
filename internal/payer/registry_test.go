package payer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
)

func TestBuiltin(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "NUEVA_EPS" || names[1] != "SANITAS" {
		t.Fatalf("Names = %v", names)
	}

	p, err := reg.Lookup("  nueva_eps ")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	got := p.Rules.Types()
	want := []constants.DocumentType{"FVS", "EPI", "HAU", "OPF", "CRC"}
	if len(got) != len(want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("types[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestProfileFilename(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	tests := []struct {
		payer   string
		docType constants.DocumentType
		want    string
	}{
		{"NUEVA_EPS", "FVS", "FVS_890702241_ELE46339.pdf"},
		{"SANITAS", "1", "890702241_ELE_46339_1_1.pdf"},
	}
	for _, tt := range tests {
		p, err := reg.Lookup(tt.payer)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", tt.payer, err)
		}
		name, err := p.Filename(tt.docType, "46339")
		if err != nil {
			t.Fatalf("Filename: %v", err)
		}
		if name != tt.want {
			t.Errorf("%s: got %q, want %q", tt.payer, name, tt.want)
		}
	}
}

func TestCanonicalNames(t *testing.T) {
	reg, _ := Builtin()
	p, _ := reg.Lookup("SANITAS")
	names, err := p.CanonicalNames("46339")
	if err != nil {
		t.Fatalf("CanonicalNames: %v", err)
	}
	if len(names) != 4 {
		t.Fatalf("got %d names, want 4", len(names))
	}
	if names["890702241_ELE_46339_2_1.pdf"] != "2" {
		t.Errorf("missing type 2 name: %v", names)
	}
}

func TestLookupUnknown(t *testing.T) {
	reg, _ := Builtin()
	_, err := reg.Lookup("COOMEVA")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestParseNumericKeysNormalized(t *testing.T) {
	doc := `
payers:
  X:
    numeric_id: 900123
    prefix: FE
    filename_template: "{NIT}_{PREFIX}{invoice}_{file_type}.pdf"
    types:
      01: [factura]
      2: [epicrisis, ""]
`
	reg, err := Parse([]byte(doc), "test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, _ := reg.Lookup("x")
	if p.NumericID != "900123" {
		t.Errorf("NumericID = %q", p.NumericID)
	}
	if p.Rules[0].Type != "1" || p.Rules[1].Type != "2" {
		t.Errorf("types = %v", p.Rules.Types())
	}
	if len(p.Rules[1].Keywords) != 1 {
		t.Errorf("blank keyword kept: %v", p.Rules[1].Keywords)
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{"payers": {"J": {"numeric_id": "1", "prefix": "", "filename_template": "{file_type}{invoice}.pdf",
		"types": {"A": ["alpha"], "B": ["beta"]}}}}`
	reg, err := Parse([]byte(doc), "json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, _ := reg.Lookup("J")
	if got := p.Rules.Types(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("types = %v", got)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ``},
		{"no payers", `payers: {}`},
		{"unknown field", `
payers:
  X:
    numeric_id: "1"
    prefix: A
    filename_template: "{invoice}_{file_type}.pdf"
    colour: red
    types: {A: [a]}`},
		{"bad template field", `
payers:
  X:
    numeric_id: "1"
    prefix: A
    filename_template: "{invoice}_{kind}.pdf"
    types: {A: [a]}`},
		{"non digit id", `
payers:
  X:
    numeric_id: "89-07"
    prefix: A
    filename_template: "{invoice}_{file_type}.pdf"
    types: {A: [a]}`},
		{"duplicate normalized type", `
payers:
  X:
    numeric_id: "1"
    prefix: A
    filename_template: "{invoice}_{file_type}.pdf"
    types: {"1": [a], "01": [b]}`},
		{"template ignores type", `
payers:
  X:
    numeric_id: "1"
    prefix: A
    filename_template: "{invoice}.pdf"
    types: {A: [a], B: [b]}`},
		{"no keywords", `
payers:
  X:
    numeric_id: "1"
    prefix: A
    filename_template: "{invoice}_{file_type}.pdf"
    types: {A: []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.name)
			if err == nil {
				t.Fatal("expected error")
			}
			if common.KindOf(err) != common.KindConfig {
				t.Errorf("kind = %q, want config", common.KindOf(err))
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payers.yaml")
	if err := os.WriteFile(path, builtinRegistry, 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := Load(`"` + path + `"`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg.Names()) != 2 {
		t.Errorf("Names = %v", reg.Names())
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); common.KindOf(err) != common.KindConfig {
		t.Errorf("missing file: kind = %q", common.KindOf(err))
	}
	if reg, err := Load(""); err != nil || len(reg.Names()) != 2 {
		t.Errorf("Load(\"\") = %v, %v", reg, err)
	}
}
