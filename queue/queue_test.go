package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkQueue_FIFO(t *testing.T) {
	q := New[int]()

	for i := 0; i < 200; i++ {
		require.NoError(t, q.Send(i))
	}
	require.Equal(t, 200, q.Len())

	for i := 0; i < 200; i++ {
		v, ok := q.Receive()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Equal(t, 0, q.Len())
}

func TestWorkQueue_InterleavedSendReceiveKeepsOrder(t *testing.T) {
	q := New[int]()
	next := 0

	// push past the compaction threshold while consuming from the front
	for i := 0; i < 1000; i++ {
		require.NoError(t, q.Send(i))
		if i%3 == 0 {
			v, ok := q.Receive()
			require.True(t, ok)
			require.Equal(t, next, v)
			next++
		}
	}

	for q.Len() > 0 {
		v, ok := q.Receive()
		require.True(t, ok)
		require.Equal(t, next, v)
		next++
	}
	require.Equal(t, 1000, next)
}

func TestWorkQueue_ReceiveBlocksUntilSend(t *testing.T) {
	q := New[string]()
	got := make(chan string, 1)

	go func() {
		v, _ := q.Receive()
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("receive returned before anything was sent")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Send("hello"))

	select {
	case v := <-got:
		require.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("receive did not return after send")
	}
}

func TestWorkQueue_CloseWakesReceivers(t *testing.T) {
	q := New[int]()
	wg := &sync.WaitGroup{}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Receive()
			require.False(t, ok)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receivers still blocked after close")
	}
	require.True(t, q.Closed())
}

func TestWorkQueue_DrainsAfterClose(t *testing.T) {
	q := New[int]()
	require.NoError(t, q.Send(1))
	require.NoError(t, q.Send(2))

	q.Close()
	require.ErrorIs(t, q.Send(3), ErrQueueClosed)

	v, ok := q.Receive()
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = q.Receive()
	require.True(t, ok)
	require.Equal(t, 2, v)

	_, ok = q.Receive()
	require.False(t, ok)
}

func TestWorkQueue_Bounded(t *testing.T) {
	q := NewBounded[int](2)
	require.Equal(t, 2, q.Cap())

	require.NoError(t, q.Send(1))
	require.NoError(t, q.Send(2))
	require.ErrorIs(t, q.Send(3), ErrQueueFull)

	_, ok := q.Receive()
	require.True(t, ok)
	require.NoError(t, q.Send(3))
}

func TestWorkQueue_NegativeCapacityIsUnbounded(t *testing.T) {
	q := NewBounded[int](-1)
	require.Equal(t, 0, q.Cap())

	for i := 0; i < 100; i++ {
		require.NoError(t, q.Send(i))
	}
}

func TestWorkQueue_Purge(t *testing.T) {
	q := New[int]()
	require.Nil(t, q.Purge())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Send(i))
	}
	_, _ = q.Receive()

	require.Equal(t, []int{1, 2, 3, 4}, q.Purge())
	require.Equal(t, 0, q.Len())

	q.Close()
	_, ok := q.Receive()
	require.False(t, ok)
}

func TestWorkQueue_ExactlyOnceAcrossConsumers(t *testing.T) {
	const (
		producers = 8
		perProd   = 500
		consumers = 6
	)

	q := New[int]()
	seen := make([]int, producers*perProd)
	mu := &sync.Mutex{}

	var consumerGroup errgroup.Group
	for i := 0; i < consumers; i++ {
		consumerGroup.Go(func() error {
			for {
				v, ok := q.Receive()
				if !ok {
					return nil
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		})
	}

	var producerGroup errgroup.Group
	for p := 0; p < producers; p++ {
		producerGroup.Go(func() error {
			for i := 0; i < perProd; i++ {
				if err := q.Send(p*perProd + i); err != nil {
					return err
				}
			}
			return nil
		})
	}

	require.NoError(t, producerGroup.Wait())
	q.Close()
	require.NoError(t, consumerGroup.Wait())

	for v, n := range seen {
		require.Equalf(t, 1, n, "item %d delivered %d times", v, n)
	}
}
