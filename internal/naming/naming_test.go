package naming

import (
	"errors"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		f    Fields
		want string
	}{
		{
			name: "type first",
			tmpl: "{file_type}_{NIT}_{PREFIX}{invoice}.pdf",
			f:    Fields{FileType: "FVS", NIT: "890702241", Prefix: "ELE", Invoice: "46339"},
			want: "FVS_890702241_ELE46339.pdf",
		},
		{
			name: "numeric type codes",
			tmpl: "{NIT}_{PREFIX}_{invoice}_{file_type}_1.pdf",
			f:    Fields{FileType: "1", NIT: "890702241", Prefix: "ELE", Invoice: "46339"},
			want: "890702241_ELE_46339_1_1.pdf",
		},
		{
			name: "suffix defaults to empty",
			tmpl: "{file_type}_{invoice}{SUFFIX}.pdf",
			f:    Fields{FileType: "EPI", Invoice: "7"},
			want: "EPI_7.pdf",
		},
		{
			name: "escaped braces",
			tmpl: "{{{file_type}}}.pdf",
			f:    Fields{FileType: "EPI"},
			want: "{EPI}.pdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.f)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	for _, tmpl := range []string{
		"{file_type}_{HOSPITAL}.pdf",
		"{file_type",
		"file_type}",
		"{}.pdf",
		"{invoice:05d}.pdf",
	} {
		_, err := Render(tmpl, Fields{FileType: "FVS", Invoice: "1"})
		var fe *FormattingError
		if !errors.As(err, &fe) {
			t.Errorf("Render(%q) error = %v, want *FormattingError", tmpl, err)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("{file_type}_{NIT}_{PREFIX}{invoice}{SUFFIX}.pdf"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := Validate(""); err == nil {
		t.Fatal("empty template should not validate")
	}
	if err := Validate("{patient}.pdf"); err == nil {
		t.Fatal("unknown field should not validate")
	}
}
