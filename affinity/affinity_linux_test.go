//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-lowlat/api"
)

// firstAllowedCPU returns a CPU the test process may run on.
func firstAllowedCPU(t *testing.T) int {
	t.Helper()
	var set unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &set))
	for cpu := 0; cpu < 1024; cpu++ {
		if set.IsSet(cpu) {
			return cpu
		}
	}
	t.Fatal("no cpu in affinity mask")
	return -1
}

func TestGo_Pinned(t *testing.T) {
	cpu := firstAllowedCPU(t)

	var mask unix.CPUSet
	var getErr error
	th, err := Go(cpu, "pinned", func() {
		getErr = unix.SchedGetaffinity(0, &mask)
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	th.Wait()

	require.NoError(t, getErr)
	assert.Equal(t, 1, mask.Count())
	assert.True(t, mask.IsSet(cpu))
	assert.Equal(t, "pinned", th.Name())
	assert.Equal(t, cpu, th.Core())
}

func TestGo_Unpinned(t *testing.T) {
	ran := make(chan struct{})
	th, err := Go(-1, "free", func() { close(ran) }, nil)
	require.NoError(t, err)

	<-th.Done()
	select {
	case <-ran:
	default:
		t.Fatal("fn did not run")
	}
}

func TestGo_InvalidCore(t *testing.T) {
	ran := false
	th, err := Go(1<<20, "bad", func() { ran = true }, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Nil(t, th)
	assert.False(t, ran)
	assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
}

func TestSetAffinity_Negative(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	assert.ErrorIs(t, SetAffinity(-1), api.ErrInvalidArgument)
}
