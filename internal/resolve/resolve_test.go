package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/eps-docsorter/internal/common"
)

// fileText treats each file's bytes as its text layer.
type fileText struct{}

func (fileText) ExtractText(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

type fakeEngine struct {
	calls int
	text  string
	err   error
}

func (f *fakeEngine) MakeSearchable(_ context.Context, _, out string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte(f.text), 0o644)
}

type fakeRecognizer struct{ text string }

func (f fakeRecognizer) Recognize(context.Context, string) (string, error) { return f.text, nil }
func (fakeRecognizer) Close() error                                          { return nil }

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestResolveEmbeddedText(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "page.pdf")
	write(t, p, "factura electronica")

	eng := &fakeEngine{}
	res, err := New(fileText{}, eng, nil).Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != p || res.Text != "factura electronica" || res.OCRApplied {
		t.Errorf("Resolve = %+v", res)
	}
	if eng.calls != 0 {
		t.Error("ocr ran on a page with text")
	}
}

func TestResolveAppliesOCR(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.pdf")
	write(t, p, "  \n ")

	eng := &fakeEngine{text: "epicrisis"}
	res, err := New(fileText{}, eng, nil).Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(dir, "scan_searchable.pdf")
	if res.Path != want || res.Text != "epicrisis" || !res.OCRApplied {
		t.Errorf("Resolve = %+v", res)
	}
	if exists(p) {
		t.Error("input not removed after ocr")
	}
}

func TestResolveOCRFailureKeepsPage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.pdf")
	write(t, p, "")

	ocrErr := common.NewAppError(common.KindOCR, p, "ocrmypdf failed", errors.New("exit 2"))
	res, err := New(fileText{}, &fakeEngine{err: ocrErr}, nil).Resolve(context.Background(), p)
	if common.KindOf(err) != common.KindOCR {
		t.Fatalf("err = %v", err)
	}
	if res.Path != p || res.Text != "" {
		t.Errorf("Resolve = %+v", res)
	}
	if !exists(p) {
		t.Error("page removed after failed ocr")
	}
}

func TestResolveReusesLeftover(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.pdf")
	write(t, p, "")
	write(t, filepath.Join(dir, "scan_searchable.pdf"), "orden medica")

	eng := &fakeEngine{}
	res, err := New(fileText{}, eng, nil).Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if eng.calls != 0 {
		t.Error("ocr re-ran despite usable leftover")
	}
	if res.Text != "orden medica" || !res.OCRApplied || exists(p) {
		t.Errorf("Resolve = %+v, input exists = %v", res, exists(p))
	}
}

func TestResolveDiscardsBlankLeftover(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.pdf")
	write(t, p, "")
	write(t, filepath.Join(dir, "scan_searchable.pdf"), "")

	eng := &fakeEngine{text: "triage"}
	res, err := New(fileText{}, eng, nil).Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if eng.calls != 1 || res.Text != "triage" {
		t.Errorf("calls = %d, Resolve = %+v", eng.calls, res)
	}
}

func TestResolveSearchableNotReOCRed(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan_searchable.pdf")
	write(t, p, "")

	eng := &fakeEngine{text: "x"}
	_, err := New(fileText{}, eng, nil).Resolve(context.Background(), p)
	if !errors.Is(err, common.ErrNoText) {
		t.Fatalf("err = %v, want ErrNoText", err)
	}
	if eng.calls != 0 {
		t.Error("ocr ran on its own output")
	}
}

func TestResolveRecognizerFallback(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.pdf")
	write(t, p, "")

	eng := &fakeEngine{err: errors.New("ocrmypdf missing")}
	r := New(fileText{}, eng, nil, WithRecognizer(fakeRecognizer{text: "comprobante de recibido"}))
	res, err := r.Resolve(context.Background(), p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != p || res.Text != "comprobante de recibido" || res.OCRApplied {
		t.Errorf("Resolve = %+v", res)
	}
}
