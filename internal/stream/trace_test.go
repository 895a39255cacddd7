package stream

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	first := MustNewEvent(MessageTypeRun, RunEvent{Runs: map[int]string{1: "r1"}})
	first.Seq = 1
	second := MustNewEvent(MessageTypeDone, DoneEvent{SpriteID: 1, RunID: "r1", Reason: "completed"})
	second.Seq = 2

	require.NoError(t, rec.Write(first))
	require.NoError(t, rec.Write(second))
	assert.Equal(t, 2, rec.Count())
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	assert.Error(t, rec.Write(first), "write after close")

	events, err := ReadTrace(&buf)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Seq)

	done, err := events[1].DoneData()
	require.NoError(t, err)
	assert.Equal(t, "r1", done.RunID)
}

func TestRecorderRecordsBrokerFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trace.ndjson.zst")
	rec, err := CreateRecorder(path)
	require.NoError(t, err)

	b := NewBroker(0)
	events := b.Subscribe(context.Background(), 0)
	for i := 0; i < 4; i++ {
		b.Publish(MustNewEvent(MessageTypeSprite, SpriteEvent{ID: i + 1}))
	}
	b.Close()

	require.NoError(t, rec.Record(context.Background(), events))
	require.NoError(t, rec.Close())

	got, err := ReadTraceFile(path)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}

func TestReadTraceRejectsUncompressed(t *testing.T) {
	_, err := ReadTrace(bytes.NewReader([]byte(`{"seq":1}` + "\n")))
	assert.Error(t, err)
}
