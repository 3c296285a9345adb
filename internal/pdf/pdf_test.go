package pdf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/eps-docsorter/internal/pdf/pdftest"
)

func TestToolkitPageCountAndWritePage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.pdf")
	pdftest.Write(t, src, "first page", "second page", "third page")

	tk := NewToolkit(nil)
	n, err := tk.PageCount(src)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("PageCount = %d, want 3", n)
	}

	dst := filepath.Join(dir, "page2.pdf")
	if err := tk.WritePage(src, 2, dst); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if n, _ := tk.PageCount(dst); n != 1 {
		t.Errorf("page file has %d pages", n)
	}
	text, err := NewPlainText(nil).ExtractText(context.Background(), dst)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(text, "second page") {
		t.Errorf("page 2 text = %q", text)
	}
}

func TestToolkitWritePageInvalid(t *testing.T) {
	dir := t.TempDir()
	tk := NewToolkit(nil)
	if err := tk.WritePage(filepath.Join(dir, "missing.pdf"), 1, filepath.Join(dir, "out.pdf")); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.pdf")); !os.IsNotExist(err) {
		t.Error("partial output left behind")
	}
	if err := tk.WritePage("x.pdf", 0, "y.pdf"); err == nil {
		t.Fatal("expected error for page 0")
	}
}

func TestToolkitMerge(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	pdftest.Write(t, a, "alpha one", "alpha two")
	pdftest.Write(t, b, "bravo")

	tk := NewToolkit(nil)
	out := filepath.Join(dir, "merged.pdf")
	if err := tk.Merge([]string{a, b}, out); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	n, err := tk.PageCount(out)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("merged pages = %d, want 3", n)
	}

	text, err := NewPlainText(nil).ExtractText(context.Background(), out)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	ia, ib := strings.Index(text, "alpha two"), strings.Index(text, "bravo")
	if ia < 0 || ib < 0 || ia > ib {
		t.Errorf("merged order wrong: %q", text)
	}

	if err := tk.Merge(nil, out); err == nil {
		t.Error("expected error for empty input list")
	}
}

func TestPlainTextBlankAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.pdf")
	pdftest.Write(t, blank, "")

	pt := NewPlainText(nil)
	text, err := pt.ExtractText(context.Background(), blank)
	if err != nil {
		t.Fatalf("ExtractText(blank): %v", err)
	}
	if text != "" {
		t.Errorf("blank text = %q", text)
	}

	corrupt := filepath.Join(dir, "corrupt.pdf")
	if err := os.WriteFile(corrupt, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := pt.ExtractText(context.Background(), corrupt); err == nil {
		t.Error("expected error for corrupt file")
	}
}
