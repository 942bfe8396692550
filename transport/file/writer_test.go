package file_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpbank/snmp_sections/transport/file"
)

func newBuf(t *testing.T) (*bytes.Buffer, *file.WriterTransport) {
	t.Helper()
	var buf bytes.Buffer
	tr, err := file.New(file.Config{Writer: &buf}, nil)
	require.NoError(t, err)
	return &buf, tr
}

func TestSend_MultipleRecords(t *testing.T) {
	buf, tr := newBuf(t)
	msgs := []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}

	for _, m := range msgs {
		require.NoError(t, tr.Send([]byte(m)))
	}
	assert.Equal(t, strings.Join(msgs, "\n")+"\n", buf.String())
}

func TestSend_ConcurrentSafe(t *testing.T) {
	buf, tr := newBuf(t)
	const n = 100
	msg := []byte(`{"concurrent":true}`)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = tr.Send(msg)
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, n)
	for _, l := range lines {
		require.Equal(t, string(msg), l, "interleaved record")
	}
}

func TestSend_WriterError(t *testing.T) {
	tr, err := file.New(file.Config{Writer: errWriter{}}, nil)
	require.NoError(t, err)
	assert.Error(t, tr.Send([]byte(`{"x":1}`)))
}

func TestClose_BorrowedWriterUntouched(t *testing.T) {
	buf, tr := newBuf(t)
	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Send([]byte(`{}`)), "borrowed writer should stay usable")
	assert.NotZero(t, buf.Len())
}

// ─────────────────────────────────────────────────────────────────────────────
// File output and rotation
// ─────────────────────────────────────────────────────────────────────────────

func TestFileOutput_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "scans.json")
	tr, err := file.New(file.Config{Path: path, MaxBytes: 20, MaxBackups: 2}, nil)
	require.NoError(t, err)

	// Each record is 15 bytes with its newline, so every record but the
	// first triggers a rotation.
	for _, r := range []string{`{"n":"000001"}`, `{"n":"000002"}`, `{"n":"000003"}`, `{"n":"000004"}`} {
		require.NoError(t, tr.Send([]byte(r)))
	}
	require.NoError(t, tr.Close())

	want := map[string]string{
		path:        `{"n":"000004"}` + "\n",
		path + ".1": `{"n":"000003"}` + "\n",
		path + ".2": `{"n":"000002"}` + "\n",
	}
	for p, content := range want {
		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, content, string(got), filepath.Base(p))
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "backup beyond MaxBackups should be removed, stat err = %v", err)
}

func TestFileOutput_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"old\":1}\n"), 0o644))
	tr, err := file.New(file.Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send([]byte(`{"new":1}`)))
	require.NoError(t, tr.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"old\":1}\n{\"new\":1}\n", string(got))
}

func TestRotatingFile_WriteAfterClose(t *testing.T) {
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: filepath.Join(t.TempDir(), "x")}, nil)
	require.NoError(t, err)
	require.NoError(t, rf.Close())
	_, err = rf.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingFile_RequiresPath(t *testing.T) {
	_, err := file.NewRotatingFile(file.RotateConfig{}, nil)
	assert.Error(t, err)
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("simulated write error") }

var _ file.Transport = (*file.WriterTransport)(nil)
