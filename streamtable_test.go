package h2conn

import "testing"

func TestStreamTableAllocateOddIncreasingIDs(t *testing.T) {
	st := newStreamTable(10)

	var ids []uint32
	for i := 0; i < 3; i++ {
		s, err := st.allocate(func(id uint32) *stream {
			return newStream(id, DefaultInitialWindowSize, DefaultInitialWindowSize, 0, 0)
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.id)
	}

	want := []uint32{1, 3, 5}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestStreamTableExhaustsBudget(t *testing.T) {
	st := newStreamTable(1)

	if _, err := st.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) }); err != nil {
		t.Fatal(err)
	}
	_, err := st.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) })
	if err != ErrNoAvailableStreams {
		t.Fatalf("err = %v, want ErrNoAvailableStreams", err)
	}
}

func TestStreamTableReleaseRestoresBudget(t *testing.T) {
	st := newStreamTable(1)

	s, err := st.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) })
	if err != nil {
		t.Fatal(err)
	}
	st.release(s.id)

	if _, err := st.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) }); err != nil {
		t.Fatalf("allocate after release: %v", err)
	}
}

func TestStreamTableSetMaxConcurrentDelta(t *testing.T) {
	st := newStreamTable(2)

	if _, err := st.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) }); err != nil {
		t.Fatal(err)
	}
	// one stream open, one slot remaining; peer raises the cap to 4
	st.setMaxConcurrent(4)

	st.mu.Lock()
	remaining := st.remainingStreams
	st.mu.Unlock()

	if remaining != 3 {
		t.Fatalf("remainingStreams = %d, want 3", remaining)
	}
}

func TestStreamTableMaxOpenID(t *testing.T) {
	st := newStreamTable(10)
	for i := 0; i < 3; i++ {
		if _, err := st.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) }); err != nil {
			t.Fatal(err)
		}
	}
	if got := st.maxOpenID(); got != 5 {
		t.Fatalf("maxOpenID = %d, want 5", got)
	}
}

func TestStreamTableMaxOpenIDIgnoresReleasedStreams(t *testing.T) {
	st := newStreamTable(10)
	var ids []uint32
	for i := 0; i < 3; i++ {
		s, err := st.allocate(func(id uint32) *stream { return newStream(id, 0, 0, 0, 0) })
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.id)
	}

	// release the highest-numbered stream (id 5) while id 3 is still open;
	// the live maximum should drop to 3, not stay pinned at the allocation
	// high-water mark.
	st.release(ids[2])

	if got := st.maxOpenID(); got != 3 {
		t.Fatalf("maxOpenID = %d, want 3", got)
	}

	st.release(ids[1])
	st.release(ids[0])

	if got := st.maxOpenID(); got != 0 {
		t.Fatalf("maxOpenID on empty table = %d, want 0", got)
	}
}
