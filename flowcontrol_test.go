package h2conn

import "testing"

func TestEffectiveSendCapsAtSmallestWindow(t *testing.T) {
	cases := []struct {
		name                  string
		connWindow, streamWin int64
		maxFrame              uint32
		want                  int
		wantN                 int
	}{
		{"conn limited", 10, 1000, 16384, 100, 10},
		{"stream limited", 1000, 10, 16384, 100, 10},
		{"frame size limited", 1000, 1000, 16, 100, 16},
		{"zero window", 0, 1000, 16384, 100, 0},
		{"negative window", -5, 1000, 16384, 100, 0},
		{"want smaller than window", 1000, 1000, 16384, 5, 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := effectiveSend(c.connWindow, c.streamWin, c.maxFrame, c.want)
			if got != c.wantN {
				t.Fatalf("effectiveSend(%d, %d, %d, %d) = %d, want %d", c.connWindow, c.streamWin, c.maxFrame, c.want, got, c.wantN)
			}
		})
	}
}

func TestConsumeServerWindowReplenishesPastHalf(t *testing.T) {
	f := newConnFlow(100)

	// draining 40 leaves 60, still above half (50): no replenish yet
	if inc := f.consumeServerWindow(40); inc != 0 {
		t.Fatalf("increment = %d, want 0", inc)
	}
	// draining another 20 leaves 40, below half: replenish back to 100
	inc := f.consumeServerWindow(20)
	if inc != 60 {
		t.Fatalf("increment = %d, want 60", inc)
	}
	if f.serverWindow != 100 {
		t.Fatalf("serverWindow = %d, want 100 after replenish", f.serverWindow)
	}
}

func TestConnFlowClientWindowAtomics(t *testing.T) {
	f := newConnFlow(100)
	if got := f.loadClientWindow(); got != DefaultInitialWindowSize {
		t.Fatalf("initial clientWindow = %d, want %d", got, DefaultInitialWindowSize)
	}
	f.addClientWindow(-1000)
	if got := f.loadClientWindow(); got != DefaultInitialWindowSize-1000 {
		t.Fatalf("clientWindow after debit = %d", got)
	}
}
