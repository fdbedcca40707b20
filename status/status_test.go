package status

import (
	"math"
	"testing"
	"time"
)

func waitLast(t *testing.T, text string) Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m, ok := Last(); ok && m.Message == text {
			return m
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("message %q was not broadcasted", text)
	return Message{}
}

func TestBroadcast(t *testing.T) {
	Info("loaded %s", "bone.md5mesh")
	m := waitLast(t, "loaded bone.md5mesh")
	if m.Type != INFO {
		t.Errorf("unexpected type %d", m.Type)
	}

	Progress(float32(math.NaN()), "frame %d", 3)
	m = waitLast(t, "frame 3")
	if m.Type != PROGRESS || m.Progress != 0 {
		t.Errorf("unexpected progress message %+v", m)
	}

	Error("bad %d", 1)
	if m = waitLast(t, "bad 1"); m.Type != ERROR {
		t.Errorf("unexpected type %d", m.Type)
	}
}
