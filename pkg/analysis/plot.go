package analysis

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

// ErrNotPlottable indicates that an analyzer has no histograms to draw.
var ErrNotPlottable = errors.New("analyzer has no histograms")

// Plottable is implemented by analyzers that accumulate histograms.
type Plottable interface {
	Histograms() []*hbook.H1D
}

// SavePlots draws every histogram of a into its own image. For path
// "out/kin.png" the pT histogram is written to "out/kin_pT.png". The format
// follows the extension (png, pdf, svg, ...). It returns the files written.
func SavePlots(a scheduler.Analyzer, path string) ([]string, error) {
	p, ok := a.(Plottable)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotPlottable, a)
	}
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".png"
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))

	var written []string
	for i, h := range p.Histograms() {
		name := h.Name()
		if name == "" {
			name = fmt.Sprintf("h%d", i)
		}
		out := fmt.Sprintf("%s_%s%s", base, name, ext)
		if err := saveH1D(h, name, out); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

func saveH1D(h *hbook.H1D, name, path string) error {
	plt := hplot.New()
	plt.Title.Text = name
	plt.Title.Padding = 2 * vg.Millimeter
	plt.X.Label.Text = name
	plt.Y.Label.Text = "entries"

	hh := hplot.NewH1D(h)
	hh.Infos.Style = hplot.HInfoSummary
	plt.Add(hh, hplot.NewGrid())

	if err := plt.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("could not save %s plot to %s: %w", name, path, err)
	}
	return nil
}
