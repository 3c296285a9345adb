package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/invoice"
	"github.com/joseph-ayodele/eps-docsorter/internal/payer"
)

// StageStats summarizes one pass over the tree.
type StageStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Skipped   uint32
	Failed    uint32
}

// errSkip marks a file a stage had nothing to do for.
var errSkip = errors.New("skip")

// listPDFs walks root and returns every non-hidden PDF in natural order
// (page 2 before page 10), which is the order pages are merged in.
// Listing up front keeps files a stage creates out of that same stage.
func listPDFs(root string, stats *StageStats) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil // continue walking
		}
		if path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsPDF(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, common.NewAppError(common.KindFilesystem, root, "walk", err)
	}
	slices.SortFunc(files, naturalCompare)
	return files, nil
}

// naturalCompare orders paths with digit runs compared as numbers, so
// x_page_2.pdf comes before x_page_10.pdf.
func naturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if c := cmp.Compare(len(na), len(nb)); c != 0 {
				return c
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
			// equal values: fewer leading zeros first
			if c := cmp.Compare(i-si, j-sj); c != 0 {
				return c
			}
			continue
		}
		if a[i] != b[j] {
			return cmp.Compare(a[i], b[j])
		}
		i++
		j++
	}
	return cmp.Compare(len(a)-i, len(b)-j)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// canonicalSet remembers, per folder, which filenames are finished outputs of
// the active payer. Those files never re-enter a stage.
type canonicalSet struct {
	profile payer.Profile
	folders map[string]map[string]struct{}
}

func newCanonicalSet(profile payer.Profile) *canonicalSet {
	return &canonicalSet{profile: profile, folders: make(map[string]map[string]struct{})}
}

func (c *canonicalSet) contains(path string) (bool, error) {
	dir := filepath.Dir(path)
	names, ok := c.folders[dir]
	if !ok {
		names = map[string]struct{}{}
		if inv, found := invoice.Extract(filepath.Base(dir)); found {
			rendered, err := c.profile.CanonicalNames(inv)
			if err != nil {
				return false, common.NewAppError(common.KindFormatting, dir, "render filenames for payer "+c.profile.Name, err)
			}
			for n := range rendered {
				names[n] = struct{}{}
			}
		}
		c.folders[dir] = names
	}
	_, hit := names[filepath.Base(path)]
	return hit, nil
}

// forEachWorkingPDF lists the tree and calls fn for every PDF that is not a
// finished output. A fatal error from fn stops the pass; any other error is
// counted and the pass continues.
func forEachWorkingPDF(ctx context.Context, root string, canon *canonicalSet, fn func(path string) error) (StageStats, error) {
	var stats StageStats
	files, err := listPDFs(root, &stats)
	if err != nil {
		return stats, err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		done, err := canon.contains(path)
		if err != nil {
			return stats, err
		}
		if done {
			continue
		}
		stats.Matched++
		switch err := fn(path); {
		case err == nil:
			stats.Succeeded++
		case errors.Is(err, errSkip):
			stats.Skipped++
		case common.IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			stats.Failed++
			return stats, err
		default:
			stats.Failed++
		}
	}
	return stats, nil
}

func (s StageStats) String() string {
	return fmt.Sprintf("scanned=%d matched=%d succeeded=%d skipped=%d failed=%d",
		s.Scanned, s.Matched, s.Succeeded, s.Skipped, s.Failed)
}
