package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"msg-deidentifier/internal/anonymizer"
	"msg-deidentifier/internal/phi"
)

// Preview writes the sampled changes of a run, one block per file, with
// character-level edits highlighted. Without color, deletions render as
// [-x-] and insertions as {+y+}.
type Preview struct {
	w       io.Writer
	dmp     *diffmatchpatch.DiffMatchPatch
	header  *color.Color
	deleted *color.Color
	added   *color.Color
	failed  *color.Color
	colored bool
}

// NewPreview returns a renderer writing to w.
func NewPreview(w io.Writer, colored bool) *Preview {
	p := &Preview{
		w:       w,
		dmp:     diffmatchpatch.New(),
		header:  color.New(color.FgCyan, color.Bold),
		deleted: color.New(color.FgRed, color.CrossedOut),
		added:   color.New(color.FgGreen),
		failed:  color.New(color.FgRed, color.Bold),
		colored: colored,
	}
	for _, c := range []*color.Color{p.header, p.deleted, p.added, p.failed} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Render writes every file of batch relative to root.
func (p *Preview) Render(batch *anonymizer.BatchResult, root string) {
	for _, f := range batch.Files {
		p.renderFile(f, root)
	}
}

func (p *Preview) renderFile(f *anonymizer.FileResult, root string) {
	name := f.InputPath
	if rel, err := filepath.Rel(root, f.InputPath); err == nil && !strings.HasPrefix(rel, "..") {
		name = rel
	}

	switch {
	case f.Skipped:
		fmt.Fprintf(p.w, "%s (skipped)\n", p.header.Sprint(name))
		return
	case !f.Success:
		fmt.Fprintf(p.w, "%s %s\n", p.header.Sprint(name), p.failed.Sprintf("failed: %s", f.Error))
		return
	}

	fmt.Fprintf(p.w, "%s [%s] %d messages, %d fields\n",
		p.header.Sprint(name), f.Standard, f.Statistics.TotalMessages, f.Statistics.FieldsModified)
	for _, c := range f.Changes {
		fmt.Fprintf(p.w, "  %-28s %-26s %s\n", c.Location, c.Category, p.Line(c))
	}
	for _, w := range f.Warnings {
		fmt.Fprintf(p.w, "  warning: %s\n", w)
	}
}

// Line renders the edit from the original to the replacement value.
func (p *Preview) Line(c phi.AppliedChange) string {
	if c.Replacement == "" {
		return p.deletion(c.Original) + " (removed)"
	}
	diffs := p.dmp.DiffMain(c.Original, c.Replacement, false)
	diffs = p.dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString(p.deletion(d.Text))
		case diffmatchpatch.DiffInsert:
			b.WriteString(p.insertion(d.Text))
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

func (p *Preview) deletion(s string) string {
	if p.colored {
		return p.deleted.Sprint(s)
	}
	return "[-" + s + "-]"
}

func (p *Preview) insertion(s string) string {
	if p.colored {
		return p.added.Sprint(s)
	}
	return "{+" + s + "+}"
}
