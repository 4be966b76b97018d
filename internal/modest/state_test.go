package modest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateBoolRoundTrip(t *testing.T) {
	s := NewState()
	s.SetBool("ready", true)

	v, ok := s.GetBool("ready")
	require.True(t, ok)
	assert.True(t, v)

	_, ok = s.GetBool("missing")
	assert.False(t, ok)
}

func TestStateTypeMismatchNotFound(t *testing.T) {
	s := NewState()
	s.SetString("name", "engine")

	_, ok := s.GetBool("name")
	assert.False(t, ok, "reading a string variable as bool must report not-found, not a wrong value")
}

func TestStateAdjustAndDiff(t *testing.T) {
	s := NewState()
	s.SetInt32("count", 10)

	v, ok := s.Adjust("count", 5)
	require.True(t, ok)
	assert.EqualValues(t, 15, v)

	s.SetInt32("other", 4)
	d, ok := s.Diff("count", "other")
	require.True(t, ok)
	assert.EqualValues(t, 11, d)
}

func TestStateConcurrentSetsNoTornWrites(t *testing.T) {
	s := NewState()
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetInt32("shared", int32(i))
		}(i)
	}
	wg.Wait()

	v, ok := s.GetInt32("shared")
	require.True(t, ok)
	assert.True(t, v >= 0 && v < n, "final value must be one of the written values")
}

func TestStateRemove(t *testing.T) {
	s := NewState()
	s.SetBool("flag", true)
	s.Remove("flag")

	_, ok := s.GetBool("flag")
	assert.False(t, ok)
}
