package services

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// ConversationLocks serializes message processing per (tenant, phone) so
// two webhook deliveries for the same conversation can never interleave
// state reads and writes. Keys are hashed onto a fixed set of shards;
// unrelated conversations only contend when they land on the same shard.
type ConversationLocks struct {
	shards [lockShards]sync.Mutex
}

func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{}
}

// Lock acquires the shard for the conversation key and returns the matching
// unlock function.
func (l *ConversationLocks) Lock(tenantID, phone string) func() {
	shard := &l.shards[l.shardIndex(tenantID, phone)]
	shard.Lock()
	return shard.Unlock
}

func (l *ConversationLocks) shardIndex(tenantID, phone string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	h.Write([]byte{'|'})
	h.Write([]byte(phone))
	return h.Sum32() % lockShards
}
