package engine

import "sync"

// requestIndexShards is the number of independent lock domains in the
// request index. Splitting the map this way lets concurrent readers on
// different shards proceed without contending on a single mutex, while the
// engine goroutine remains the only writer.
const requestIndexShards = 256

type requestShard struct {
	mu      sync.RWMutex
	entries map[uint32]any
}

// RequestIndex is a concurrent map from a request's 32-bit wire ID to
// caller-supplied data (typically a pointer to connection or stream
// state). Writes (Add, Remove, FindRemove) are expected to come from the
// engine goroutine only; Find may be called from any goroutine that holds
// a reference to the index.
type RequestIndex struct {
	shards [requestIndexShards]requestShard
	log    Logger
}

// NewRequestIndex creates an empty request index. A nil logger disables
// failure logging.
func NewRequestIndex(log Logger) *RequestIndex {
	idx := &RequestIndex{log: log}
	for i := range idx.shards {
		idx.shards[i].entries = make(map[uint32]any)
	}
	return idx
}

func (idx *RequestIndex) shardFor(reqID uint32) *requestShard {
	return &idx.shards[murmur2RequestID(reqID)%requestIndexShards]
}

// Add associates reqID with data. Duplicate IDs are rejected: it logs a
// warning and returns false if reqID is already present, leaving the
// existing entry untouched.
func (idx *RequestIndex) Add(reqID uint32, data any) bool {
	s := idx.shardFor(reqID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[reqID]; exists {
		idx.warn(reqID, "add")
		return false
	}
	s.entries[reqID] = data
	return true
}

// Find returns the data associated with reqID, if any.
func (idx *RequestIndex) Find(reqID uint32) (any, bool) {
	s := idx.shardFor(reqID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[reqID]
	return v, ok
}

// Remove deletes reqID from the index. It logs a warning and returns false
// if reqID was not present.
func (idx *RequestIndex) Remove(reqID uint32) bool {
	s := idx.shardFor(reqID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[reqID]; !exists {
		idx.warn(reqID, "remove")
		return false
	}
	delete(s.entries, reqID)
	return true
}

// FindRemove atomically finds and removes reqID in one shard-locked step,
// returning the data that was present.
func (idx *RequestIndex) FindRemove(reqID uint32) (any, bool) {
	s := idx.shardFor(reqID)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[reqID]
	if !ok {
		idx.warn(reqID, "find_remove")
		return nil, false
	}
	delete(s.entries, reqID)
	return v, true
}

// Len returns the total number of indexed requests across all shards.
func (idx *RequestIndex) Len() int {
	n := 0
	for i := range idx.shards {
		idx.shards[i].mu.RLock()
		n += len(idx.shards[i].entries)
		idx.shards[i].mu.RUnlock()
	}
	return n
}

func (idx *RequestIndex) warn(reqID uint32, op string) {
	if idx.log == nil || !idx.log.IsEnabled(LogLevelWarn) {
		return
	}
	idx.log.Log(LogEntry{
		Level:    LogLevelWarn,
		Category: "requestindex",
		Message:  "req " + op + " failed",
		Context:  map[string]any{"req_id": reqID},
	})
}
