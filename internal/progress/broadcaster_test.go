package progress

import (
	"testing"
	"time"

	"github.com/buemura/surface/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan types.Event) []types.Event {
	var out []types.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func stages(evs []types.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Stage
	}
	return out
}

func TestSubscribe_ConnectedFirst(t *testing.T) {
	b := New(Options{})
	ch, unsub := b.Subscribe("s1")
	defer unsub()

	b.Publish(types.Event{ScanID: "s1", Stage: types.StageInitializing, Progress: 5})
	b.Publish(types.Event{ScanID: "other", Stage: types.StageInitializing, Progress: 5})

	evs := drain(ch)
	require.Len(t, evs, 2)
	assert.Equal(t, types.StageConnected, evs[0].Stage)
	assert.Equal(t, "s1", evs[0].ScanID)
	assert.Equal(t, types.StageInitializing, evs[1].Stage)
	assert.False(t, evs[1].Time.IsZero())
}

func TestSubscribe_ConnectedCarriesProgress(t *testing.T) {
	b := New(Options{})
	b.Publish(types.Event{ScanID: "s1", Stage: types.StageScanning, Progress: 42})

	ch, unsub := b.Subscribe("s1")
	defer unsub()

	ev := <-ch
	assert.Equal(t, types.StageConnected, ev.Stage)
	assert.Equal(t, 42, ev.Progress)
}

func TestPublish_FanOut(t *testing.T) {
	b := New(Options{})
	a, unsubA := b.Subscribe("s1")
	defer unsubA()
	c, unsubC := b.Subscribe("s1")
	defer unsubC()

	b.Publish(types.Event{ScanID: "s1", Stage: types.StagePayload})

	assert.Equal(t, []string{types.StageConnected, types.StagePayload}, stages(drain(a)))
	assert.Equal(t, []string{types.StageConnected, types.StagePayload}, stages(drain(c)))
}

func TestPublish_NeverBlocks(t *testing.T) {
	var drops int
	b := New(Options{Buffer: 2, OnDrop: func(string) { drops++ }})
	ch, unsub := b.Subscribe("s1")
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(types.Event{ScanID: "s1", Stage: types.StagePayload})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	// connected + one payload fit in the buffer.
	assert.Len(t, drain(ch), 2)
	assert.Equal(t, int64(9), b.Dropped())
	assert.Equal(t, 9, drops)
}

func TestPublish_TerminalEvictsOldest(t *testing.T) {
	b := New(Options{Buffer: 4})
	ch, unsub := b.Subscribe("s1")
	defer unsub()

	for i := 0; i < 10; i++ {
		b.Publish(types.Event{ScanID: "s1", Stage: types.StagePayload, Progress: 50})
	}
	b.Publish(types.Event{ScanID: "s1", Stage: types.StageCompleted, Progress: 100})
	b.Close("s1")

	evs := drain(ch)
	require.Len(t, evs, 4)
	assert.Equal(t, types.StageCompleted, evs[len(evs)-1].Stage)
	// connected was the oldest and made room.
	assert.NotEqual(t, types.StageConnected, evs[0].Stage)
	assert.Equal(t, int64(8), b.Dropped())
}

func TestClose_ClosesSubscribers(t *testing.T) {
	b := New(Options{})
	ch, unsub := b.Subscribe("s1")

	b.Publish(types.Event{ScanID: "s1", Stage: types.StageCompleted, Progress: 100})
	b.Close("s1")
	b.Close("s1")
	unsub()

	evs := drain(ch)
	assert.Equal(t, []string{types.StageConnected, types.StageCompleted}, stages(evs))
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, b.Subscribers("s1"))
}

func TestSubscribe_AfterClose(t *testing.T) {
	b := New(Options{})
	b.Publish(types.Event{ScanID: "s1", Stage: types.StageFailed, Log: "scan cancelled"})
	b.Close("s1")
	b.Publish(types.Event{ScanID: "s1", Stage: types.StagePayload})

	ch, unsub := b.Subscribe("s1")
	unsub()

	var evs []types.Event
	for ev := range ch {
		evs = append(evs, ev)
	}
	require.Len(t, evs, 2)
	assert.Equal(t, types.StageConnected, evs[0].Stage)
	assert.Equal(t, types.StageFailed, evs[1].Stage)
	assert.Equal(t, "scan cancelled", evs[1].Log)
}

func TestUnsubscribe(t *testing.T) {
	b := New(Options{})
	ch, unsub := b.Subscribe("s1")
	assert.Equal(t, 1, b.Subscribers("s1"))

	unsub()
	unsub()
	assert.Zero(t, b.Subscribers("s1"))

	b.Publish(types.Event{ScanID: "s1", Stage: types.StagePayload})
	assert.Equal(t, []string{types.StageConnected}, stages(drain(ch)))
}

func TestForget(t *testing.T) {
	b := New(Options{})
	b.Publish(types.Event{ScanID: "s1", Stage: types.StageCompleted})
	b.Close("s1")
	b.Forget("s1")

	ch, unsub := b.Subscribe("s1")
	defer unsub()
	// A forgotten topic starts fresh and stays open.
	assert.Equal(t, []string{types.StageConnected}, stages(drain(ch)))
	assert.Equal(t, 1, b.Subscribers("s1"))
}
