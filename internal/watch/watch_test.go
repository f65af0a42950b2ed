package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_Debounce(t *testing.T) {
	defer goleak.VerifyNone(t)

	file := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(file, []byte("from: users\n"), 0644))

	var calls atomic.Int32
	w, err := NewWatcher(file, func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	w.SetDebounce(50 * time.Millisecond)

	require.NoError(t, w.Start())
	assert.Equal(t, int32(1), calls.Load())

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(file, []byte("from: orders\n"), 0644))
	}
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(file), "other.yaml"), []byte("x"), 0644))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, w.Stop())
}

func TestWatcher_InitialCallbackError(t *testing.T) {
	defer goleak.VerifyNone(t)

	file := filepath.Join(t.TempDir(), "query.yaml")
	w, err := NewWatcher(file, func() error { return errors.New("bad document") })
	require.NoError(t, err)

	assert.ErrorContains(t, w.Start(), "bad document")
	require.NoError(t, w.Stop())
}
