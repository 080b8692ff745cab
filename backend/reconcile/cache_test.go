package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid/threadview/backend/thread"
)

func TestPairCacheMemoizes(t *testing.T) {
	cache, err := NewPairCache(NewEngine(), 8)
	require.NoError(t, err)

	msgs := []thread.Message{
		assistantAt("a1", 0, true, nativeAssistant("web_search")),
		toolResultAt("t1", time.Second, "tu_1", "web_search", "ok"),
	}

	first := cache.Reconcile(msgs)
	second := cache.Reconcile(msgs)
	require.Len(t, first, 1)
	assert.Equal(t, first, second)
}

func TestPairCacheInvalidatesOnChange(t *testing.T) {
	cache, err := NewPairCache(NewEngine(), 8)
	require.NoError(t, err)

	streaming := []thread.Message{
		assistantAt("a1", 0, false, nativeAssistant("web_search")),
	}
	pending := cache.Reconcile(streaming)
	require.Len(t, pending, 1)
	assert.Equal(t, PairStatePending, pending[0].State)

	// A new result changes the fingerprint, so the next call runs a fresh
	// pass instead of serving the stale pending pair.
	arrived := append(streaming, toolResultAt("t1", time.Second, "tu_1", "web_search", "ok"))
	arrived[0].Complete = true

	resolved := cache.Reconcile(arrived)
	require.Len(t, resolved, 1)
	assert.Equal(t, PairStateResolved, resolved[0].State)
	assert.Equal(t, "ok", resolved[0].OutputText)
}

func TestFingerprint(t *testing.T) {
	msgs := []thread.Message{
		assistantAt("a1", 0, true, nativeAssistant("web_search")),
		toolResultAt("t1", time.Second, "tu_1", "web_search", "ok"),
	}

	assert.Equal(t, Fingerprint(msgs), Fingerprint(msgs))

	reordered := []thread.Message{msgs[1], msgs[0]}
	assert.NotEqual(t, Fingerprint(msgs), Fingerprint(reordered))

	incomplete := []thread.Message{msgs[0], msgs[1]}
	incomplete[0].Complete = false
	assert.NotEqual(t, Fingerprint(msgs), Fingerprint(incomplete))
}
