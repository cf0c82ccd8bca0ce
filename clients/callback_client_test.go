package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/events"
	"github.com/stretchr/testify/require"
)

func TestItRetriesOnFailedCallbacks(t *testing.T) {
	// Counter for the number of retries we've done
	var tries int64

	// Set up a dummy server to receive the callbacks
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check that we got the callback we're expecting
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		// Check we got a valid callback message of the type we'd expect
		var actualMsg StatusMessage
		require.NoError(t, json.Unmarshal(body, &actualMsg))
		require.Equal(t, ConversionStatusCompleted, actualMsg.Status)

		// Return HTTP error codes the first two times
		if atomic.AddInt64(&tries, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		// Return a successful response the third time
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	client := NewCallbackClient(svr.URL)
	err := client.DoWithRetries(context.Background(), StatusMessage{JobID: "example-job-id", Status: ConversionStatusCompleted})
	require.NoError(t, err)
	require.Equal(t, int64(3), atomic.LoadInt64(&tries), "Expected the client to retry on failed callbacks")
}

func TestItGivesUpAfterRetries(t *testing.T) {
	var tries int64
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&tries, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer svr.Close()

	client := NewCallbackClient(svr.URL)
	err := client.DoWithRetries(context.Background(), StatusMessage{JobID: "example-job-id"})
	require.Error(t, err)
	require.Equal(t, int64(3), atomic.LoadInt64(&tries))
}

func TestItDeliversEventsInOrder(t *testing.T) {
	var mu sync.Mutex
	var received []StatusMessage
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var msg StatusMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	client := NewCallbackClient(svr.URL)
	for _, stage := range []events.Stage{events.StageCreated, events.StageProbing, events.StageEncoding, events.StageDone} {
		client.Notify(events.New("ordered-job", events.TypeStageEntered, stage))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 4
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	var stages []events.Stage
	for _, msg := range received {
		require.Equal(t, "ordered-job", msg.JobID)
		stages = append(stages, msg.Stage)
	}
	require.Equal(t, []events.Stage{events.StageCreated, events.StageProbing, events.StageEncoding, events.StageDone}, stages)
	require.Equal(t, ConversionStatusCompleted, received[3].Status)
	require.Equal(t, 1.0, received[3].CompletionRatio)
}

func TestItFlushesOnShutdown(t *testing.T) {
	var count int64
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&count, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	client := NewCallbackClient(svr.URL)
	client.Notify(events.New("flush-job", events.TypeStageEntered, events.StageFailed))
	client.Notify(events.New("flush-job", events.TypeStageFailed, events.StageProbing))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, client.Run(ctx))
	require.Equal(t, int64(2), atomic.LoadInt64(&count))
}
