//go:build integration

// stream_reconnect_test.go checks that a remote viewer loses nothing when
// the server goes away: the stage keeps publishing, and a reconnecting
// client resumes from the last sequence it saw.
package integration

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stagehand/internal/auth"
	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/interp"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/server"
	"github.com/thruflo/stagehand/internal/stage"
	"github.com/thruflo/stagehand/internal/stream"
	"github.com/thruflo/stagehand/internal/testutil"
)

func fastStage(t *testing.T) *stage.Stage {
	t.Helper()
	motion, nudge, minWait := testutil.FastTiming()
	st := stage.New(stage.Options{
		Interp: interp.Options{
			Timing: interp.Timing{Motion: motion, Nudge: nudge, MinWait: minWait, Scale: 1},
		},
		Logger: logging.Discard(),
	})
	t.Cleanup(st.Close)
	return st
}

// hashForTest uses cheap argon2 parameters.
func hashForTest(password string) (string, error) {
	return auth.HashPasswordWithParams(password, auth.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
}

// startServer serves st on port (0 picks one) and returns the server and
// its port.
func startServer(t *testing.T, st *stage.Stage, port int) (*server.Server, int) {
	t.Helper()

	srv, err := server.New(st, server.Config{Port: port, Logger: logging.Discard()})
	require.NoError(t, err)

	go func() { _ = srv.Start(context.Background()) }()
	testutil.WaitFor(t, func() bool { return srv.ListenAddr() != "" }, "server listening")
	t.Cleanup(func() { _ = srv.Stop() })

	_, portStr, err := net.SplitHostPort(srv.ListenAddr())
	require.NoError(t, err)
	bound, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return srv, bound
}

// collectUntil reads events until match returns true or timeout expires.
func collectUntil(t *testing.T, events <-chan *stream.Event, timeout time.Duration, match func(*stream.Event) bool) []*stream.Event {
	t.Helper()

	var got []*stream.Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatalf("stream closed after %d events", len(got))
			}
			got = append(got, e)
			if match(e) {
				return got
			}
		case <-deadline:
			t.Fatalf("timed out after %d events", len(got))
		}
	}
}

func assertContiguous(t *testing.T, events []*stream.Event) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Seq+1, events[i].Seq, "gap or duplicate at event %d", i)
	}
}

func TestStreamDisconnectReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	t.Run("client catches up on events published while the server was down", func(t *testing.T) {
		st := fastStage(t)
		require.True(t, st.DropBlock(block.Move(10)))

		srv1, port := startServer(t, st, 0)
		url := "http://127.0.0.1:" + strconv.Itoa(port)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client := stream.NewStreamClient(url, stream.WithReconnectInterval(50*time.Millisecond))
		require.NoError(t, client.Connect(ctx))
		events, _ := client.Subscribe(ctx, 0)

		st.Reset()
		before := collectUntil(t, events, 3*time.Second, func(e *stream.Event) bool {
			return e.Type == stream.MessageTypeReset
		})
		require.NotEmpty(t, before)

		require.NoError(t, srv1.Stop())

		// The stage keeps running with nobody listening.
		fromSeq := st.Broker().LastSeq() + 1
		runs := st.Run(context.Background())
		require.Len(t, runs, 1)
		_, err := stream.AwaitDone(ctx, st.Broker(), fromSeq, runs)
		require.NoError(t, err)

		startServer(t, st, port)

		after := collectUntil(t, events, 5*time.Second, func(e *stream.Event) bool {
			return e.Type == stream.MessageTypeDone
		})

		all := append(before, after...)
		assertContiguous(t, all)

		done, err := after[len(after)-1].DoneData()
		require.NoError(t, err)
		assert.Equal(t, runs[done.SpriteID], done.RunID)
		assert.Equal(t, "completed", done.Reason)
	})

	t.Run("client joins mid-stream from a sequence number", func(t *testing.T) {
		st := fastStage(t)
		for i := 0; i < 5; i++ {
			st.Reset()
		}
		last := st.Broker().LastSeq()
		require.Greater(t, last, uint64(3))

		_, port := startServer(t, st, 0)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client := stream.NewStreamClient("http://127.0.0.1:" + strconv.Itoa(port))
		events, _ := client.Subscribe(ctx, last-2)

		got := collectUntil(t, events, 3*time.Second, func(e *stream.Event) bool {
			return e.Seq == last
		})
		require.Len(t, got, 3)
		assert.Equal(t, last-2, got[0].Seq)
		assertContiguous(t, got)
	})

	t.Run("authenticated client streams events", func(t *testing.T) {
		st := fastStage(t)
		hash, err := hashForTest("stage-pass")
		require.NoError(t, err)

		srv, err := server.New(st, server.Config{PasswordHash: hash, Logger: logging.Discard()})
		require.NoError(t, err)
		go func() { _ = srv.Start(context.Background()) }()
		testutil.WaitFor(t, func() bool { return srv.ListenAddr() != "" }, "server listening")
		t.Cleanup(func() { _ = srv.Stop() })

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, port, err := net.SplitHostPort(srv.ListenAddr())
		require.NoError(t, err)
		client := stream.NewStreamClient("http://127.0.0.1:" + port)
		require.Error(t, client.Connect(ctx), "unauthenticated requests are rejected")
		require.NoError(t, client.Authenticate(ctx, "stage-pass"))
		require.NoError(t, client.Connect(ctx))

		events, _ := client.Subscribe(ctx, 0)
		require.NoError(t, client.Reset(ctx))
		collectUntil(t, events, 3*time.Second, func(e *stream.Event) bool {
			return e.Type == stream.MessageTypeReset
		})
	})
}
