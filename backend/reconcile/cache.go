package reconcile

import (
	"fmt"
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/corvid/threadview/backend/thread"
)

// PairCache memoizes reconciliation output keyed by a snapshot fingerprint.
// Because a pass is a pure function of its input, identical snapshots can
// share a pair list; any change to the message list produces a new key, so
// a newly arrived result always triggers a fresh pass.
type PairCache struct {
	engine *Engine
	cache  *lru.Cache[string, []ToolCallPair]
}

func NewPairCache(engine *Engine, size int) (*PairCache, error) {
	cache, err := lru.New[string, []ToolCallPair](size)
	if err != nil {
		return nil, err
	}
	return &PairCache{engine: engine, cache: cache}, nil
}

func (c *PairCache) Reconcile(msgs []thread.Message) []ToolCallPair {
	key := Fingerprint(msgs)
	if pairs, ok := c.cache.Get(key); ok {
		return pairs
	}

	pairs := c.engine.Reconcile(msgs)
	c.cache.Add(key, pairs)
	return pairs
}

// Fingerprint hashes everything reconciliation depends on: identity, role,
// ordering, completion state, and raw content.
func Fingerprint(msgs []thread.Message) string {
	h := fnv.New64a()
	for i := range msgs {
		msg := &msgs[i]
		content, _ := msg.ContentString()
		fmt.Fprintf(h, "%s|%s|%d|%t|%s|%s\n",
			msg.ID, msg.Role, msg.CreatedAt.UnixNano(), msg.Complete,
			msg.Metadata.AssistantMessageID, content)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
