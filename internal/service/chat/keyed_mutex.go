package chat

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// keyedMutex serializes work per conversation id. Unrelated ids may share a
// stripe, which only costs some parallelism.
type keyedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
