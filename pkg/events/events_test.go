package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanEmitter_DeliversInOrder(t *testing.T) {
	em := NewChanEmitter(4)
	sub := em.Subscribe()

	ctx := context.Background()
	em.Emit(ctx, New(EventStageStarted, StageData{Stage: StageTrain}))
	em.Emit(ctx, New(EventProgress, ProgressData{Step: 1, TotalSteps: 10}))
	em.Close()

	var got []EventType
	for ev := range sub.Events() {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []EventType{EventStageStarted, EventProgress}, got)
}

func TestChanEmitter_EmitAfterCloseIsDropped(t *testing.T) {
	em := NewChanEmitter(1)
	em.Close()
	em.Close()

	assert.NotPanics(t, func() {
		em.Emit(context.Background(), New(EventDone, DoneData{}))
	})
}

func TestChanEmitter_CancelledContextUnblocks(t *testing.T) {
	em := NewChanEmitter(0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		em.Emit(ctx, New(EventDone, DoneData{}))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit did not return after cancel")
	}
}

func TestChanEmitter_ConcurrentEmitAndClose(t *testing.T) {
	em := NewChanEmitter(8)
	sub := em.Subscribe()

	go func() {
		for range sub.Events() {
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			em.Emit(context.Background(), New(EventProgress, ProgressData{Step: i}))
		}(i)
	}
	wg.Wait()
	em.Close()
}

func TestProgressData_Fraction(t *testing.T) {
	assert.Equal(t, 0.0, ProgressData{Step: 5}.Fraction())
	assert.Equal(t, 0.5, ProgressData{Step: 5, TotalSteps: 10}.Fraction())
	assert.Equal(t, 1.0, ProgressData{Step: 12, TotalSteps: 10}.Fraction())
}

type recordingEmitter struct{ events []Event }

func (r *recordingEmitter) Emit(_ context.Context, e Event) { r.events = append(r.events, e) }

func TestMulti(t *testing.T) {
	a, b := &recordingEmitter{}, &recordingEmitter{}
	m := Multi{a, nil, b, Nop{}}

	m.Emit(context.Background(), New(EventWarning, ErrorData{Stage: StageExport, Err: errors.New("x")}))

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, EventWarning, b.events[0].Type)
}
