package hookstore

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/model"
)

func chtimes(path string, t time.Time) error {
	return os.Chtimes(path, t, t)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestRecordPreThenPostReconciles(t *testing.T) {
	s := newTestStore(t)

	err := s.RecordPre("call-1", model.PreCallEvent{
		SessionID: "sess-1",
		ToolName:  "Bash",
		ToolInput: map[string]any{"command": "ls"},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	rec, ok := s.Read("call-1")
	require.True(t, ok)
	require.False(t, rec.Complete())

	err = s.RecordPost("call-1", model.PostCallEvent{
		ToolOutput: "file1\nfile2",
		Timestamp:  time.Now(),
	})
	require.NoError(t, err)

	rec, ok = s.Read("call-1")
	require.True(t, ok)
	require.True(t, rec.Complete())
}

func TestRecordPostWithoutPreCreatesRecord(t *testing.T) {
	s := newTestStore(t)

	err := s.RecordPost("call-orphan", model.PostCallEvent{ToolOutput: "x", Timestamp: time.Now()})
	require.NoError(t, err)

	rec, ok := s.Read("call-orphan")
	require.True(t, ok)
	require.Nil(t, rec.PreCall)
	require.NotNil(t, rec.PostCall)
}

func TestReadAbsentReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.Read("does-not-exist")
	require.False(t, ok)
}

func TestListBySessionOrdersByPreTimestamp(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()

	require.NoError(t, s.RecordPre("c2", model.PreCallEvent{SessionID: "s1", Timestamp: base.Add(2 * time.Second)}))
	require.NoError(t, s.RecordPre("c1", model.PreCallEvent{SessionID: "s1", Timestamp: base}))
	require.NoError(t, s.RecordPre("c3", model.PreCallEvent{SessionID: "s2", Timestamp: base.Add(time.Second)}))

	recs, err := s.ListBySession("s1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "c1", recs[0].CallID)
	require.Equal(t, "c2", recs[1].CallID)
}

func TestEvictOlderThan(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordPre("stale", model.PreCallEvent{SessionID: "s1", Timestamp: time.Now()}))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, chtimes(s.completePath("stale"), old))

	evicted, err := s.EvictOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)

	_, ok := s.Read("stale")
	require.False(t, ok)
}

func TestDeleteMany(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordPre("a", model.PreCallEvent{SessionID: "s1", Timestamp: time.Now()}))
	require.NoError(t, s.RecordPre("b", model.PreCallEvent{SessionID: "s1", Timestamp: time.Now()}))

	s.DeleteMany([]string{"a", "b"})

	_, ok := s.Read("a")
	require.False(t, ok)
	_, ok = s.Read("b")
	require.False(t, ok)
}
