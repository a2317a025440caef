package bridge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandoffFIFO(t *testing.T) {
	h := newHandoff(4)
	const n = 500

	go func() {
		for i := 0; i < n; i++ {
			if err := h.Send(Record{fmt.Sprint(i)}); err != nil {
				return
			}
		}
		h.Close()
	}()

	i := 0
	for rec := range h.Receive() {
		require.Equal(t, Record{fmt.Sprint(i)}, rec)
		i++
	}
	assert.Equal(t, n, i)
}

func TestHandoffCloseWakesBlockedReceiver(t *testing.T) {
	h := newHandoff(1)
	exited := make(chan struct{})
	go func() {
		for range h.Receive() {
		}
		close(exited)
	}()

	time.Sleep(10 * time.Millisecond)
	h.Close()

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("receiver did not observe close")
	}
}

func TestHandoffCloseWakesBlockedSender(t *testing.T) {
	h := newHandoff(1)
	require.NoError(t, h.Send(Record{"fill"}))

	errc := make(chan error, 1)
	go func() { errc <- h.Send(Record{"blocked"}) }()

	time.Sleep(10 * time.Millisecond)
	h.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrHandoffClosed)
	case <-time.After(time.Second):
		t.Fatal("sender stayed blocked after close")
	}
}

func TestHandoffDrainsBufferedAfterClose(t *testing.T) {
	h := newHandoff(3)
	require.NoError(t, h.Send(Record{"1"}))
	require.NoError(t, h.Send(Record{"2"}))
	h.Close()
	h.Close()

	assert.ErrorIs(t, h.Send(Record{"3"}), ErrHandoffClosed)

	var got []Record
	for rec := range h.Receive() {
		got = append(got, rec)
	}
	assert.Equal(t, []Record{{"1"}, {"2"}}, got)
}

func TestHandoffDetach(t *testing.T) {
	h := newHandoff(1)
	require.NoError(t, h.Send(Record{"fill"}))

	errc := make(chan error, 1)
	go func() { errc <- h.Send(Record{"blocked"}) }()

	time.Sleep(10 * time.Millisecond)
	h.Detach()
	h.Detach()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrReceiverGone)
	case <-time.After(time.Second):
		t.Fatal("sender stayed blocked after detach")
	}
	assert.ErrorIs(t, h.Send(Record{"late"}), ErrReceiverGone)
}

func TestHandoffDefaultCapacity(t *testing.T) {
	h := newHandoff(0)
	assert.Equal(t, DefaultQueueCapacity, cap(h.ch))
	assert.Equal(t, 0, h.Len())
}
