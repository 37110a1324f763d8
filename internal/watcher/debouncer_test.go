package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, ch <-chan []FileEvent, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case events, ok := <-ch:
		require.True(t, ok, "channel closed")
		return events
	case <-time.After(timeout):
		t.Fatal("timeout waiting for batch")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "org/x/a/1/a-1.jar", Operation: OpCreate, Timestamp: time.Now()})

	// Then: it passes through after the window
	events := receiveBatch(t, d.Output(), time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation
	}{
		{"create then modify is create", []Operation{OpCreate, OpModify}, []Operation{OpCreate}},
		{"modify then delete is delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
		{"delete then create is modify", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
		{"repeated modify is one modify", []Operation{OpModify, OpModify, OpModify}, []Operation{OpModify}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20*time.Millisecond, nil)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "a.jar", Operation: op})
			}

			events := receiveBatch(t, d.Output(), time.Second)
			got := make([]Operation, 0, len(events))
			for _, e := range events {
				got = append(got, e.Operation)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	// When: a file is created and deleted inside one window
	d.Add(FileEvent{Path: "tmp.jar", Operation: OpCreate})
	d.Add(FileEvent{Path: "tmp.jar", Operation: OpDelete})

	// Then: nothing is emitted
	select {
	case events := <-d.Output():
		t.Fatalf("unexpected batch: %v", events)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	for _, p := range []string{"c", "a", "b"} {
		d.Add(FileEvent{Path: p, Operation: OpModify})
	}

	events := receiveBatch(t, d.Output(), time.Second)
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Path)
	assert.Equal(t, "b", events[1].Path)
	assert.Equal(t, "c", events[2].Path)
}

func TestDebouncer_FlushEmitsImmediately(t *testing.T) {
	d := NewDebouncer(time.Hour, nil)
	defer d.Stop()

	d.Add(FileEvent{Path: "a", Operation: OpCreate})
	d.Flush()

	events := receiveBatch(t, d.Output(), time.Second)
	assert.Len(t, events, 1)
}

func TestDebouncer_StopTwiceAndAddAfterStop(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, nil)
	d.Stop()

	assert.NotPanics(t, func() {
		d.Stop()
		d.Add(FileEvent{Path: "a", Operation: OpCreate})
		d.Flush()
	})
	_, ok := <-d.Output()
	assert.False(t, ok)
}
