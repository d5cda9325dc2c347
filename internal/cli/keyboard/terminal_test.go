package keyboard_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/bsm-analyze/internal/cli/keyboard"
	"github.com/stackvity/bsm-analyze/internal/testutil"
	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

func drain(t *testing.T, s *keyboard.Source) []rune {
	t.Helper()
	var keys []rune
	for {
		key, ok := s.Poll()
		if !ok {
			return keys
		}
		keys = append(keys, key)
	}
}

func TestSource_PollDeliversKeysInOrder(t *testing.T) {
	s := keyboard.NewSource(bytes.NewReader([]byte("shq")))
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not finish")
	}
	assert.Equal(t, []rune{'s', 'h', 'q'}, drain(t, s))
	assert.NoError(t, s.Err())

	key, ok := s.Poll()
	assert.False(t, ok, "poll on an empty source must not block")
	assert.Zero(t, key)
}

func TestSource_PollNeverBlocks(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	s := keyboard.NewSource(r)

	_, ok := s.Poll()
	assert.False(t, ok)

	_, err := w.Write([]byte("q"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		key, ok := s.Poll()
		return ok && key == 'q'
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSource_DropsKeysWhenFull(t *testing.T) {
	s := keyboard.NewSource(bytes.NewReader(bytes.Repeat([]byte("s"), 100)))
	<-s.Done()
	assert.Len(t, drain(t, s), 32)
}

func TestSource_ReadError(t *testing.T) {
	boom := errors.New("tty gone")
	r, w := io.Pipe()
	s := keyboard.NewSource(r)
	require.NoError(t, w.CloseWithError(boom))
	assert.ErrorIs(t, s.Err(), boom)
}

func TestSource_DrivesKeyboard(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	notifier := &testutil.MockNotifier{}
	cmds := notifier.Forward(4)

	kb, err := scheduler.NewKeyboard(keyboard.NewSource(r), notifier, 5*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, kb.Start())

	_, err = w.Write([]byte("q"))
	require.NoError(t, err)
	select {
	case cmd := <-cmds:
		assert.Equal(t, scheduler.CommandQuit, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("quit was not forwarded")
	}

	kb.Stop()
	kb.Join()
}

func TestOpenTerminal_RejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys")
	testutil.CreateDummyFile(t, path, "q")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = keyboard.OpenTerminal(f)
	assert.ErrorIs(t, err, keyboard.ErrNotTerminal)
}

func TestCRLF(t *testing.T) {
	var buf bytes.Buffer
	w := keyboard.CRLF(&buf)
	n, err := w.Write([]byte("files 1/2\nworkers 2\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 21, n)
	assert.Equal(t, "files 1/2\r\nworkers 2\r\n", buf.String())
}
