package analysis_test

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stackvity/bsm-analyze/internal/testutil"
	"github.com/stackvity/bsm-analyze/pkg/analysis"
	"github.com/stackvity/bsm-analyze/pkg/reader"
	"github.com/stackvity/bsm-analyze/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/lcio"
)

// --- Helpers ---

func event(particles ...lcio.McParticle) *lcio.Event {
	evt := &lcio.Event{}
	evt.Add(analysis.DefaultCollection, &lcio.McParticleContainer{Particles: particles})
	return evt
}

func filled(t *testing.T, events ...*lcio.Event) *analysis.Kinematics {
	t.Helper()
	k, err := analysis.NewKinematics(analysis.DefaultSelection())
	require.NoError(t, err)
	for _, evt := range events {
		k.Process(evt)
	}
	return k
}

func merged(t *testing.T, parts ...scheduler.Analyzer) scheduler.Analyzer {
	t.Helper()
	out := parts[0].Clone()
	for _, p := range parts {
		require.NoError(t, out.Merge(p))
	}
	return out
}

func assertSameHist(t *testing.T, want, got *hbook.H1D) {
	t.Helper()
	require.Equal(t, want.Len(), got.Len())
	assert.Equal(t, want.Entries(), got.Entries())
	assert.InDelta(t, want.SumW(), got.SumW(), 1e-9)
	for i := 0; i < want.Len(); i++ {
		_, wy := want.XY(i)
		_, gy := got.XY(i)
		assert.InDelta(t, wy, gy, 1e-9, "bin %d", i)
	}
}

func assertSameKinematics(t *testing.T, want, got scheduler.Analyzer) {
	t.Helper()
	w := want.(*analysis.Kinematics)
	g := got.(*analysis.Kinematics)
	assert.Equal(t, w.Events, g.Events)
	assert.Equal(t, w.Missing, g.Missing)
	assert.Equal(t, w.Particles, g.Particles)
	assert.Equal(t, w.Selected, g.Selected)
	assertSameHist(t, w.PT, g.PT)
	assertSameHist(t, w.Eta, g.Eta)
}

// --- Counter ---

func TestCounter_MergeAlgebra(t *testing.T) {
	a, b, c := &analysis.Counter{Events: 3}, &analysis.Counter{Events: 5}, &analysis.Counter{Events: 11}

	ab := merged(t, a, b).(*analysis.Counter)
	ba := merged(t, b, a).(*analysis.Counter)
	assert.Equal(t, ab.Events, ba.Events)

	left := merged(t, merged(t, a, b), c).(*analysis.Counter)
	right := merged(t, a, merged(t, b, c)).(*analysis.Counter)
	assert.Equal(t, left.Events, right.Events)
	assert.Equal(t, int64(19), left.Events)

	assert.ErrorIs(t, a.Merge(&analysis.Kinematics{}), scheduler.ErrMergeMismatch)
}

func TestCounter_ProcessAndPrint(t *testing.T) {
	c := analysis.NewCounter()
	c.Process(1)
	c.Process("anything")
	var buf bytes.Buffer
	require.NoError(t, c.Print(&buf))
	assert.Equal(t, "events: 2\n", buf.String())
	assert.Equal(t, int64(0), c.Clone().(*analysis.Counter).Events)
}

// --- Kinematics ---

func TestNewKinematics_Validation(t *testing.T) {
	cfg := analysis.DefaultSelection()
	cfg.NBins = 0
	_, err := analysis.NewKinematics(cfg)
	assert.ErrorIs(t, err, scheduler.ErrConfigValidation)

	cfg = analysis.DefaultSelection()
	cfg.EtaLimit = 0
	_, err = analysis.NewKinematics(cfg)
	assert.ErrorIs(t, err, scheduler.ErrConfigValidation)

	cfg = analysis.DefaultSelection()
	cfg.MinPT = -1
	_, err = analysis.NewKinematics(cfg)
	assert.ErrorIs(t, err, scheduler.ErrConfigValidation)

	cfg = analysis.DefaultSelection()
	cfg.Collection = ""
	k, err := analysis.NewKinematics(cfg)
	require.NoError(t, err)
	assert.Equal(t, analysis.DefaultCollection, k.Selection().Collection)
}

func TestKinematics_AppliesCuts(t *testing.T) {
	unstable := testutil.Particle(5, 0, 0, 1)
	unstable.GenStatus = 2

	k := filled(t,
		event(
			testutil.Particle(2, 0, 0, 1),   // pT 2, eta 0: selected
			testutil.Particle(0.1, 0, 0, 1), // below minPT
			testutil.Particle(1, 0, 100, 1), // |eta| > 4
			testutil.Particle(0, 0, 0, 1),   // null momentum
			unstable,
		),
		event(testutil.Particle(0, 3, 0, 0)), // neutral, selected without requireCharged
		&lcio.Event{},                        // no collection
	)
	k.Process("not an lcio event")

	assert.Equal(t, int64(4), k.Events)
	assert.Equal(t, int64(2), k.Missing)
	assert.Equal(t, int64(5), k.Particles)
	assert.Equal(t, int64(2), k.Selected)
	assert.Equal(t, int64(2), k.PT.Entries())
	assert.InDelta(t, 2.5, k.PT.XMean(), 1e-9)
	assert.InDelta(t, 0, k.Eta.XMean(), 1e-9)
}

func TestKinematics_RequireCharged(t *testing.T) {
	cfg := analysis.DefaultSelection()
	cfg.RequireCharged = true
	k, err := analysis.NewKinematics(cfg)
	require.NoError(t, err)

	k.Process(event(testutil.Particle(1, 1, 0, 0), testutil.Particle(1, 1, 0, -1)))
	assert.Equal(t, int64(2), k.Particles)
	assert.Equal(t, int64(1), k.Selected)
}

func TestKinematics_Eta(t *testing.T) {
	k := filled(t, event(testutil.Particle(1, 0, math.Sinh(1.5), 1)))
	assert.InDelta(t, 1.5, k.Eta.XMean(), 1e-9)
}

func TestKinematics_MergeAlgebra(t *testing.T) {
	a := filled(t, event(testutil.Particle(1, 0, 0, 1), testutil.Particle(2, 1, 1, 1)))
	b := filled(t, event(testutil.Particle(7, 3, -2, -1)), event(testutil.Particle(0.7, 0.1, 3, 1)))
	c := filled(t, &lcio.Event{}, event(testutil.Particle(40, 0, 10, 1)))

	assertSameKinematics(t, merged(t, a, b), merged(t, b, a))
	assertSameKinematics(t, merged(t, merged(t, a, b), c), merged(t, a, merged(t, b, c)))

	all := merged(t, a, b, c).(*analysis.Kinematics)
	assert.Equal(t, int64(5), all.Events)
	assert.Equal(t, int64(5), all.Selected)
	assert.Equal(t, "pT", all.PT.Name())
}

func TestKinematics_MergeMismatch(t *testing.T) {
	a := filled(t)
	assert.ErrorIs(t, a.Merge(analysis.NewCounter()), scheduler.ErrMergeMismatch)

	cfg := analysis.DefaultSelection()
	cfg.NBins = 10
	other, err := analysis.NewKinematics(cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Merge(other), scheduler.ErrMergeMismatch)
}

func TestKinematics_Print(t *testing.T) {
	k := filled(t, event(testutil.Particle(3, 4, 0, 1)))
	var buf bytes.Buffer
	require.NoError(t, k.Print(&buf))
	out := buf.String()
	assert.Contains(t, out, "selected particles")
	assert.Contains(t, out, "entries=1")

	var empty bytes.Buffer
	require.NoError(t, filled(t).Print(&empty))
	assert.Contains(t, empty.String(), "empty")
}

// --- Registry & Plots ---

func TestNew(t *testing.T) {
	a, err := analysis.New(analysis.NameCount, analysis.DefaultSelection())
	require.NoError(t, err)
	assert.IsType(t, &analysis.Counter{}, a)

	a, err = analysis.New(analysis.NameKinematics, analysis.DefaultSelection())
	require.NoError(t, err)
	assert.IsType(t, &analysis.Kinematics{}, a)

	_, err = analysis.New("fft", analysis.DefaultSelection())
	assert.ErrorIs(t, err, analysis.ErrUnknownAnalyzer)
	assert.Equal(t, []string{"count", "kinematics"}, analysis.Names())
}

func TestSavePlots(t *testing.T) {
	k := filled(t, event(testutil.Particle(1, 2, 3, 1), testutil.Particle(4, 1, -1, 1)))
	out := filepath.Join(t.TempDir(), "kin.png")

	files, err := analysis.SavePlots(k, out)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		info, statErr := os.Stat(f)
		require.NoError(t, statErr)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.Equal(t, filepath.Join(filepath.Dir(out), "kin_pT.png"), files[0])

	_, err = analysis.SavePlots(analysis.NewCounter(), out)
	assert.ErrorIs(t, err, analysis.ErrNotPlottable)
}

// --- End to End ---

func TestKinematics_ParallelRunMatchesSerial(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 6; i++ {
		var events [][]lcio.McParticle
		for j := 0; j <= i; j++ {
			events = append(events, []lcio.McParticle{
				testutil.Particle(float64(i+1), float64(j), float64(i-j), 1),
				testutil.Particle(0.5*float64(j+1), 1, -2, -1),
			})
		}
		path := filepath.Join(dir, fmt.Sprintf("run%d.slcio", i))
		testutil.WriteLCIOFile(t, path, events)
		files = append(files, path)
	}

	proto, err := analysis.NewKinematics(analysis.DefaultSelection())
	require.NoError(t, err)

	serial := proto.Clone()
	for _, f := range files {
		r := reader.NewLCIOReader()
		require.NoError(t, r.Open(f))
		for r.Next() {
			serial.Process(r.Event())
		}
		require.NoError(t, r.Err())
		require.NoError(t, r.Close())
	}

	c, err := scheduler.NewController(scheduler.Options{Concurrency: 3, NewReader: reader.NewLCIOReader})
	require.NoError(t, err)
	require.NoError(t, c.Use(proto))
	report, err := c.Process(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 6, report.Summary.CompletedCount)
	assert.Equal(t, int64(21), report.Summary.EventsProcessed)
	assertSameKinematics(t, serial, report.Analyzer)
}
