package pool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Clamps(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]int{-5: 1, 0: 1, 1: 1, 3: 3, MaxSize: MaxSize, 100: MaxSize} {
		in, want := in, want
		t.Run(fmt.Sprintf("size=%d", in), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, want, New(in).Size())
		})
	}
}

func TestTryAcquire_ExclusiveDevice(t *testing.T) {
	t.Parallel()

	camera := New(1)
	require.True(t, camera.TryAcquire())
	require.False(t, camera.TryAcquire(), "second holder must be refused")
	require.Equal(t, 1, camera.InUse())

	camera.Release()
	require.Zero(t, camera.InUse())
	require.True(t, camera.TryAcquire())
	camera.Release()
}

func TestRelease_WithoutAcquirePanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { New(1).Release() })
}

func BenchmarkTryAcquireRelease(b *testing.B) {
	p := New(1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if p.TryAcquire() {
			p.Release()
		}
	}
}
