package eventstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAndDone(t *testing.T) {
	sink := NewChannelSink(10)
	s := New(sink)

	s.Push(EventMsgID, map[string]string{"id": "m1"})
	s.Push(EventToken, "hel")
	s.Done(map[string]string{"status": "ok"})

	var got []Event
	for ev := range sink.Events() {
		got = append(got, ev)
	}

	require.Len(t, got, 3)
	assert.Equal(t, EventMsgID, got[0].Name)
	assert.Equal(t, EventToken, got[1].Name)
	assert.Equal(t, EventDone, got[2].Name)
}

func TestDoneIsIdempotent(t *testing.T) {
	sink := NewChannelSink(10)
	s := New(sink)

	s.Done(nil)
	s.Done(nil)
	s.Push(EventToken, "late") // dropped: sink already closed by Done

	var got []Event
	for ev := range sink.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, EventDone, got[0].Name)
}

func TestDisconnectSuppressesPush(t *testing.T) {
	sink := NewChannelSink(10)
	s := New(sink)

	s.MarkDisconnected()
	s.Push(EventToken, "x")
	assert.True(t, s.Disconnected())

	// Done still emits nothing since disconnected, but still closes sink.
	s.Done(nil)

	n := 0
	for range sink.Events() {
		n++
	}
	assert.Equal(t, 0, n)
}
