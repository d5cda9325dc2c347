package analysis

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/lcio"
)

// Default selection cuts.
const (
	DefaultCollection = "MCParticle"
	DefaultMinPT      = 0.5
	DefaultEtaLimit   = 4.0
	DefaultNBins      = 80
	DefaultMaxPT      = 100.0
)

// DefaultSelection returns the default kinematics cuts.
func DefaultSelection() scheduler.SelectionConfig {
	return scheduler.SelectionConfig{
		Collection:     DefaultCollection,
		MinPT:          DefaultMinPT,
		EtaLimit:       DefaultEtaLimit,
		NBins:          DefaultNBins,
		RequireCharged: false,
	}
}

// Kinematics fills transverse momentum and pseudorapidity histograms of the
// generator-stable particles of an LCIO MC particle collection.
type Kinematics struct {
	cfg scheduler.SelectionConfig

	Events    int64 // events seen
	Missing   int64 // events without the configured collection
	Particles int64 // generator-stable particles seen
	Selected  int64 // particles passing every cut

	PT  *hbook.H1D
	Eta *hbook.H1D
}

// NewKinematics validates cfg and returns an empty analyzer.
func NewKinematics(cfg scheduler.SelectionConfig) (*Kinematics, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.NBins <= 0 {
		return nil, fmt.Errorf("%w: nBins must be > 0, got %d", scheduler.ErrConfigValidation, cfg.NBins)
	}
	if cfg.MinPT < 0 || cfg.MinPT >= DefaultMaxPT {
		return nil, fmt.Errorf("%w: minPT must be in [0, %g), got %g", scheduler.ErrConfigValidation, DefaultMaxPT, cfg.MinPT)
	}
	if cfg.EtaLimit <= 0 {
		return nil, fmt.Errorf("%w: etaLimit must be > 0, got %g", scheduler.ErrConfigValidation, cfg.EtaLimit)
	}
	return newKinematics(cfg), nil
}

func newKinematics(cfg scheduler.SelectionConfig) *Kinematics {
	pt := hbook.NewH1D(cfg.NBins, 0, DefaultMaxPT)
	pt.Annotation()["name"] = "pT"
	eta := hbook.NewH1D(cfg.NBins, -cfg.EtaLimit, cfg.EtaLimit)
	eta.Annotation()["name"] = "eta"
	return &Kinematics{cfg: cfg, PT: pt, Eta: eta}
}

// Selection returns the cuts the analyzer was built with.
func (k *Kinematics) Selection() scheduler.SelectionConfig { return k.cfg }

// Process implements scheduler.Analyzer. Events of another type than
// *lcio.Event or lcio.Event count as missing the collection.
func (k *Kinematics) Process(evt scheduler.Event) {
	k.Events++

	var event *lcio.Event
	switch e := evt.(type) {
	case *lcio.Event:
		event = e
	case lcio.Event:
		event = &e
	}
	if event == nil {
		k.Missing++
		return
	}
	coll, ok := event.Get(k.cfg.Collection).(*lcio.McParticleContainer)
	if !ok {
		k.Missing++
		return
	}

	for i := range coll.Particles {
		p := &coll.Particles[i]
		if p.GenStatus != 1 {
			continue
		}
		k.Particles++
		if k.cfg.RequireCharged && p.Charge == 0 {
			continue
		}
		pT, eta, ok := kinematics(p.P)
		if !ok || pT < k.cfg.MinPT || math.Abs(eta) > k.cfg.EtaLimit {
			continue
		}
		k.Selected++
		k.PT.Fill(pT, 1)
		k.Eta.Fill(eta, 1)
	}
}

// kinematics returns the transverse momentum and pseudorapidity of p. ok is
// false for a null momentum.
func kinematics(p [3]float64) (pT, eta float64, ok bool) {
	mag := math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	if mag == 0 {
		return 0, 0, false
	}
	pT = math.Hypot(p[0], p[1])
	eta = math.Atanh(p[2] / mag)
	return pT, eta, !math.IsInf(eta, 0)
}

// Clone implements scheduler.Analyzer.
func (k *Kinematics) Clone() scheduler.Analyzer {
	return newKinematics(k.cfg)
}

// Merge implements scheduler.Analyzer. Histograms are added bin by bin.
func (k *Kinematics) Merge(other scheduler.Analyzer) error {
	o, ok := other.(*Kinematics)
	if !ok {
		return fmt.Errorf("%w: kinematics cannot merge %T", scheduler.ErrMergeMismatch, other)
	}
	if !sameBinning(k.PT, o.PT) || !sameBinning(k.Eta, o.Eta) {
		return fmt.Errorf("%w: histogram binning differs", scheduler.ErrMergeMismatch)
	}
	k.Events += o.Events
	k.Missing += o.Missing
	k.Particles += o.Particles
	k.Selected += o.Selected
	k.PT = renamed(hbook.AddH1D(k.PT, o.PT), k.PT)
	k.Eta = renamed(hbook.AddH1D(k.Eta, o.Eta), k.Eta)
	return nil
}

func sameBinning(a, b *hbook.H1D) bool {
	return a.Len() == b.Len() && a.XMin() == b.XMin() && a.XMax() == b.XMax()
}

func renamed(h, from *hbook.H1D) *hbook.H1D {
	h.Annotation()["name"] = from.Name()
	return h
}

// Print implements scheduler.Analyzer.
func (k *Kinematics) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "collection\t%s\n", k.cfg.Collection)
	fmt.Fprintf(tw, "events\t%d\n", k.Events)
	fmt.Fprintf(tw, "events without collection\t%d\n", k.Missing)
	fmt.Fprintf(tw, "stable particles\t%d\n", k.Particles)
	fmt.Fprintf(tw, "selected particles\t%d\n", k.Selected)
	for _, h := range []*hbook.H1D{k.PT, k.Eta} {
		if h.Entries() == 0 {
			fmt.Fprintf(tw, "%s\tempty\n", h.Name())
			continue
		}
		fmt.Fprintf(tw, "%s\tentries=%d mean=%.4g std=%.4g\n", h.Name(), h.Entries(), h.XMean(), h.XStdDev())
	}
	return tw.Flush()
}

// Histograms implements Plottable.
func (k *Kinematics) Histograms() []*hbook.H1D {
	return []*hbook.H1D{k.PT, k.Eta}
}
