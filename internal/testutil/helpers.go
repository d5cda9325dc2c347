package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/lcio"
)

// CreateDummyFile creates a file with the given content at path, creating
// parent directories as needed.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	dir := filepath.Dir(fullPath)
	err := os.MkdirAll(dir, 0755)
	require.NoError(t, err, "Failed to create directory %s for dummy file", dir)
	err = os.WriteFile(fullPath, []byte(content), 0644)
	require.NoError(t, err, "Failed to write dummy file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at the given path.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	err := os.MkdirAll(fullPath, 0755)
	require.NoError(t, err, "Failed to create dummy directory %s", fullPath)
}

// Particle builds a generator-stable MC particle with momentum (px, py, pz).
func Particle(px, py, pz float64, charge float32) lcio.McParticle {
	return lcio.McParticle{
		PDG:       211,
		GenStatus: 1,
		P:         [3]float64{px, py, pz},
		Charge:    charge,
		Mass:      0.13957,
	}
}

// WriteLCIOFile writes one event per entry of events to path. Every event
// carries its particles in an "MCParticle" collection.
func WriteLCIOFile(t *testing.T, path string, events [][]lcio.McParticle) {
	t.Helper()
	CreateDummyDir(t, filepath.Dir(path))

	w, err := lcio.Create(path)
	require.NoError(t, err, "Failed to create LCIO file %s", path)

	err = w.WriteRunHeader(&lcio.RunHeader{RunNumber: 1, Detector: "test"})
	require.NoError(t, err, "Failed to write run header to %s", path)

	for i, particles := range events {
		evt := lcio.Event{
			RunNumber:   1,
			EventNumber: int32(i),
			Detector:    "test",
		}
		evt.Add("MCParticle", &lcio.McParticleContainer{Particles: particles})
		require.NoError(t, w.WriteEvent(&evt), "Failed to write event %d to %s", i, path)
	}
	require.NoError(t, w.Close(), "Failed to close LCIO file %s", path)
}
