package h2conn

import "sync"

// streamTable is the connection's concurrent stream registry. The teacher
// library keeps a sorted slice (streams.go) for its server, which expects
// both parities of stream id; a client only ever allocates odd ids itself,
// so a plain map indexed by id is both simpler and correct here.
type streamTable struct {
	mu               sync.Mutex
	streams          map[uint32]*stream
	nextID           uint32
	maxOpen          uint32
	remainingStreams uint32
}

func newStreamTable(maxConcurrent uint32) *streamTable {
	return &streamTable{
		streams:          make(map[uint32]*stream),
		nextID:           1,
		maxOpen:          maxConcurrent,
		remainingStreams: maxConcurrent,
	}
}

// allocate reserves the next odd stream id and registers s under it, or
// returns ErrNoAvailableStreams if the peer's MAX_CONCURRENT_STREAMS
// budget is exhausted.
func (t *streamTable) allocate(newStream func(id uint32) *stream) (*stream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.remainingStreams == 0 {
		return nil, ErrNoAvailableStreams
	}

	id := t.nextID
	t.nextID += 2
	t.remainingStreams--

	s := newStream(id)
	t.streams[id] = s
	return s, nil
}

func (t *streamTable) get(id uint32) *stream {
	t.mu.Lock()
	s := t.streams[id]
	t.mu.Unlock()
	return s
}

// release removes a finished stream from the table and restores its slot
// to the concurrency budget.
func (t *streamTable) release(id uint32) {
	t.mu.Lock()
	if _, ok := t.streams[id]; ok {
		delete(t.streams, id)
		t.remainingStreams++
	}
	t.mu.Unlock()
}

// setMaxConcurrent applies a peer SETTINGS_MAX_CONCURRENT_STREAMS update,
// adjusting the remaining budget by the delta rather than clobbering it so
// in-flight streams are not double counted.
func (t *streamTable) setMaxConcurrent(max uint32) {
	t.mu.Lock()
	delta := int64(max) - int64(t.maxOpen)
	t.maxOpen = max
	nr := int64(t.remainingStreams) + delta
	if nr < 0 {
		nr = 0
	}
	t.remainingStreams = uint32(nr)
	t.mu.Unlock()
}

// maxOpenID returns the highest stream id currently registered in the
// table (i.e. still open), or 0 if none are. This is a single pass over
// the live table, not the monotonic allocation counter: a stream that
// already completed and was released must not count, or a locally
// initiated GOAWAY could report a lastStreamId higher than any stream
// actually still open, telling the peer a completed exchange is still
// pending (SPEC_FULL.md section 12 decision 3).
func (t *streamTable) maxOpenID() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var max uint32
	for id := range t.streams {
		if id > max {
			max = id
		}
	}
	return max
}

// forEach calls fn for every currently registered stream. fn must not
// call back into the table.
func (t *streamTable) forEach(fn func(*stream)) {
	t.mu.Lock()
	snapshot := make([]*stream, 0, len(t.streams))
	for _, s := range t.streams {
		snapshot = append(snapshot, s)
	}
	t.mu.Unlock()

	for _, s := range snapshot {
		fn(s)
	}
}
