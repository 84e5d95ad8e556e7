package notify

import (
	"sync"
	"testing"
	"time"
)

func TestQueueBasicOperations(t *testing.T) {
	q := newEventQueue[event]()
	defer q.close()

	for i := 0; i < 10; i++ {
		if !q.push(&event{kind: eventCommit, version: uint64(i)}) {
			t.Fatalf("Failed to push event %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case ev := <-q.recv():
			if ev.version != uint64(i) {
				t.Errorf("Expected version %d, got %d", i, ev.version)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for event %d", i)
		}
	}

	select {
	case ev := <-q.recv():
		t.Errorf("Queue should be empty, but got %v", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestQueueRejectsNil(t *testing.T) {
	q := newEventQueue[event]()
	defer q.close()

	if q.push(nil) {
		t.Error("nil event should be rejected")
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := newEventQueue[int]()
	defer q.close()

	const numProducers = 8
	const itemsPerProducer = 500
	totalItems := numProducers * itemsPerProducer

	// the last value seen per producer, values of one producer must arrive in order
	last := make([]int, numProducers)
	for i := range last {
		last[i] = -1
	}

	done := make(chan int)
	go func() {
		received := 0
		for received < totalItems {
			select {
			case v := <-q.recv():
				producer, seq := *v/itemsPerProducer, *v%itemsPerProducer
				if seq <= last[producer] {
					t.Errorf("producer %d: got %d after %d", producer, seq, last[producer])
				}
				last[producer] = seq
				received++
			case <-time.After(2 * time.Second):
				done <- received
				return
			}
		}
		done <- received
	}()

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				v := producerID*itemsPerProducer + i
				if !q.push(&v) {
					t.Errorf("Producer %d failed to push item %d", producerID, i)
				}
			}
		}(p)
	}
	wg.Wait()

	if received := <-done; received != totalItems {
		t.Errorf("Expected %d items, got %d", totalItems, received)
	}
}

func TestQueueClose(t *testing.T) {
	q := newEventQueue[int]()

	for i := 0; i < 5; i++ {
		q.push(&i)
	}
	q.close()

	val := 100
	if q.push(&val) {
		t.Error("Should not be able to push after queue is closed")
	}

	for i := 0; i < 5; i++ {
		select {
		case v := <-q.recv():
			if *v != i {
				t.Errorf("Expected %d, got %d", i, *v)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	// the channel is closed once everything was delivered
	if _, ok := <-q.recv(); ok {
		t.Error("Channel should be closed but is still open")
	}
}

func BenchmarkQueuePush(b *testing.B) {
	q := newEventQueue[event]()
	defer q.close()

	go func() {
		for range q.recv() {
		}
	}()

	ev := &event{kind: eventCommit}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			q.push(ev)
		}
	})
}
