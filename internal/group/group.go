// Package group classifies the pages of one invoice folder, merges pages of
// the same document type and renames the result with the payer's template.
package group

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/classify"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/invoice"
	"github.com/joseph-ayodele/eps-docsorter/internal/payer"
	"github.com/joseph-ayodele/eps-docsorter/internal/pdf"
)

// Page is one single-page PDF inside an invoice folder.
type Page struct {
	Path    string
	Folder  string
	Invoice string
	Type    constants.DocumentType
	Text    string
	Err     error // set on excluded pages
}

// Group is the pages of one (invoice, type) pair in discovery order.
type Group struct {
	Invoice string
	Type    constants.DocumentType
	Pages   []Page
}

// MergedDocument is the final file produced for a group.
type MergedDocument struct {
	Invoice   string
	Type      constants.DocumentType
	Path      string
	Pages     int
	Members   []string
	PatientID string
}

type Grouper struct {
	classifier *classify.Classifier
	merger     pdf.Merger
	pager      pdf.Pager
	logger     *slog.Logger
}

func New(classifier *classify.Classifier, merger pdf.Merger, pager pdf.Pager, logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = classify.NewClassifier(classify.DefaultThreshold, logger)
	}
	return &Grouper{classifier: classifier, merger: merger, pager: pager, logger: logger}
}

// GroupAndMerge returns the merged documents and the pages that could not be
// placed. Only a formatting error (bad filename template) is returned as err;
// every other failure is logged and leaves the affected files on disk.
func (g *Grouper) GroupAndMerge(ctx context.Context, folder string, pages []Page, profile payer.Profile) ([]MergedDocument, []Page, error) {
	inv, ok := invoice.Extract(filepath.Base(folder))
	if !ok {
		excluded := make([]Page, 0, len(pages))
		for _, p := range pages {
			p.Err = common.NewAppError(common.KindUnclassified, p.Path, "folder has no invoice number", common.ErrNoInvoice)
			g.logger.Error("page excluded", "path", p.Path, "folder", folder, "error", p.Err)
			excluded = append(excluded, p)
		}
		return nil, excluded, nil
	}

	canonical, err := profile.CanonicalNames(inv)
	if err != nil {
		return nil, nil, common.NewAppError(common.KindFormatting, folder, "render filenames for payer "+profile.Name, err)
	}
	finalByType := make(map[constants.DocumentType]string, len(canonical))
	for name, t := range canonical {
		finalByType[t] = filepath.Join(folder, name)
	}

	groups, excluded := g.group(folder, inv, pages, profile.Rules)

	var merged []MergedDocument
	for _, grp := range groups {
		if err := ctx.Err(); err != nil {
			return merged, excluded, err
		}
		doc, err := g.mergeGroup(grp, folder, finalByType[grp.Type])
		if err != nil {
			g.logger.Error("merge failed", "folder", folder, "type", grp.Type.String(), "error", err)
			for _, p := range grp.Pages {
				p.Err = err
				excluded = append(excluded, p)
			}
			continue
		}
		merged = append(merged, doc)
	}
	return merged, excluded, nil
}

func (g *Grouper) group(folder, inv string, pages []Page, rules classify.Rules) ([]Group, []Page) {
	var (
		groups   []Group
		excluded []Page
		index    = make(map[constants.DocumentType]int)
	)
	for _, p := range pages {
		p.Folder = folder
		p.Invoice = inv
		m, ok := g.classifier.Classify(p.Path, p.Text, rules)
		if !ok {
			p.Err = common.NewAppError(common.KindUnclassified, p.Path, "no document type matched", common.ErrNoMatch)
			g.logger.Error("page excluded", "path", p.Path, "invoice", inv, "error", p.Err)
			excluded = append(excluded, p)
			continue
		}
		p.Type = m.Type
		i, seen := index[m.Type]
		if !seen {
			i = len(groups)
			index[m.Type] = i
			groups = append(groups, Group{Invoice: inv, Type: m.Type})
		}
		groups[i].Pages = append(groups[i].Pages, p)
		g.logger.Info("page classified", "path", p.Path, "invoice", inv, "type", m.Type.String())
	}
	return groups, excluded
}

func (g *Grouper) mergeGroup(grp Group, folder, final string) (MergedDocument, error) {
	inputs := make([]string, 0, len(grp.Pages)+1)
	if _, err := os.Stat(final); err == nil {
		// Re-run: extend the document produced earlier instead of replacing it.
		inputs = append(inputs, final)
	}
	for _, p := range grp.Pages {
		if p.Path != final {
			inputs = append(inputs, p.Path)
		}
	}

	combined := filepath.Join(folder, constants.CombinedPrefix+grp.Type.String()+constants.PDFExt)
	if err := g.merger.Merge(inputs, combined); err != nil {
		return MergedDocument{}, common.NewAppError(common.KindReadParse, combined, "merge group", err)
	}
	g.logger.Info("group merged", "output", combined, "invoice", grp.Invoice, "type", grp.Type.String(), "members", len(inputs))

	for _, in := range inputs {
		if err := os.Remove(in); err != nil {
			g.logger.Error("failed to remove merged member", "path", in, "error",
				common.NewAppError(common.KindFilesystem, in, "remove merged member", err))
		}
	}

	doc := MergedDocument{
		Invoice:   grp.Invoice,
		Type:      grp.Type,
		Path:      combined,
		Members:   inputs,
		PatientID: patientID(grp.Pages),
	}
	if err := os.Rename(combined, final); err != nil {
		g.logger.Error("rename failed", "path", combined, "target", final, "error",
			common.NewAppError(common.KindFilesystem, combined, "rename merged document", err))
	} else {
		doc.Path = final
		g.logger.Info("document renamed", "path", final)
	}

	n, err := g.pager.PageCount(doc.Path)
	if err != nil {
		g.logger.Warn("could not count merged pages", "path", doc.Path, "error", err)
	}
	doc.Pages = n
	return doc, nil
}

func patientID(pages []Page) string {
	for _, p := range pages {
		if id, ok := invoice.PatientID(p.Text); ok {
			return id
		}
	}
	return ""
}

// String is used in logs and the run report.
func (d MergedDocument) String() string {
	return fmt.Sprintf("%s/%s -> %s (%d pages)", d.Invoice, d.Type, filepath.Base(d.Path), d.Pages)
}
