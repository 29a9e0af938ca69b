package media

import (
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestProcessReadsOutputThenEOF(t *testing.T) {
	cmd := exec.Command("sh", "-c", "printf hello")
	p, err := startProcess("test", cmd, true, false, 5*time.Millisecond, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer p.Stop()

	var got []byte
	buf := make([]byte, 4096)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := p.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, "hello", string(got))
}

func TestProcessReadHonorsPollBound(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 5")
	p, err := startProcess("test", cmd, true, false, 5*time.Millisecond, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer p.Stop()

	start := time.Now()
	n, rerr := p.Read(make([]byte, 4096))
	assert.Equal(t, 0, n)
	assert.NoError(t, rerr)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, p.Alive())
}

func TestProcessSmallReadBufferKeepsRemainder(t *testing.T) {
	cmd := exec.Command("sh", "-c", "printf abcdef")
	p, err := startProcess("test", cmd, true, false, 5*time.Millisecond, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer p.Stop()

	var got []byte
	buf := make([]byte, 2)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := p.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, "abcdef", string(got))
}

func TestProcessWriteAndIdempotentStop(t *testing.T) {
	cmd := exec.Command("cat")
	p, err := startProcess("test", cmd, false, true, time.Millisecond, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	require.NoError(t, p.Write([]byte("data")))

	p.Stop()
	p.Stop() // no-op
	assert.False(t, p.Alive())

	// Writes after stop fail instead of blocking.
	assert.Error(t, p.Write([]byte("late")))
}

func TestCheckBinaries(t *testing.T) {
	assert.NoError(t, CheckBinaries("sh"))
	assert.Error(t, CheckBinaries("definitely-not-a-real-binary-name"))
}
