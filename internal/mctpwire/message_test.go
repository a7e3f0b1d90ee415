package mctpwire

import "testing"

func TestAppendGrowsLen(t *testing.T) {
	var m Message
	m.Append([]byte{1, 2, 3})
	m.Append([]byte{4, 5})
	if m.Len != 5 {
		t.Fatalf("expected Len 5, got %d", m.Len)
	}
	want := []byte{1, 2, 3, 4, 5}
	got := m.Payload()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("payload mismatch at %d: want %d, got %d", i, want[i], got[i])
		}
	}
}

func TestResetClearsFields(t *testing.T) {
	m := Message{Dst: 1, Src: 2, TagOwner: true, Tag: 5, Type: 9}
	m.Append([]byte{1, 2, 3})

	m.Reset()

	if m.Dst != 0 || m.Src != 0 || m.TagOwner || m.Tag != 0 || m.Type != 0 || m.Len != 0 {
		t.Fatalf("expected message fields cleared, got %+v", m)
	}
}
