package chat

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// chatLocks serializes persist-then-publish per chat so room events leave in
// the order the store accepted them. Chats share a fixed set of stripes.
type chatLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *chatLocks) lock(chatID string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
