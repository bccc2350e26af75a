package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/report"
	"github.com/mindwell-dev/mindwell/internal/risk"
)

var storeTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	fileBackend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	all := map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   fileBackend,
		"redis":  NewRedisBackendFromClient(client, "test:", 0),
	}
	t.Cleanup(func() {
		for _, b := range all {
			_ = b.Close()
		}
	})
	return all
}

func record(id string) *SessionRecord {
	return &SessionRecord{
		ID:        id,
		UserID:    "user-1",
		State:     "active",
		StartedAt: storeTime,
		UpdatedAt: storeTime,
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, b.SaveSession(ctx, record("sess-1")))

			loaded, err := b.LoadSession(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, "sess-1", loaded.ID)
			assert.Equal(t, "user-1", loaded.UserID)
			assert.Equal(t, "active", loaded.State)

			_, err = b.LoadSession(ctx, "missing")
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestObservationsRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.SaveSession(ctx, record("sess-1")))

			first := emotion.NewObservation(emotion.ModalityText, emotion.LabelSadness, 0.9, storeTime)
			second := emotion.NewObservation(emotion.ModalityImage, emotion.LabelJoy, 0.4, storeTime.Add(time.Second))
			require.NoError(t, b.AppendObservation(ctx, "sess-1", first))
			require.NoError(t, b.AppendObservation(ctx, "sess-1", second))

			loaded, err := b.LoadObservations(ctx, "sess-1")
			require.NoError(t, err)
			require.Len(t, loaded, 2)
			assert.Equal(t, emotion.LabelSadness, loaded[0].Label)
			assert.Equal(t, emotion.ModalityImage, loaded[1].Modality)

			err = b.AppendObservation(ctx, "missing", first)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestTurnsRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.SaveSession(ctx, record("sess-1")))

			require.NoError(t, b.AppendTurn(ctx, "sess-1", chat.Turn{
				Role: chat.RoleUser, Text: "hello", Timestamp: storeTime,
			}))
			require.NoError(t, b.AppendTurn(ctx, "sess-1", chat.Turn{
				Role: chat.RoleAssistant, Text: "hi there", Timestamp: storeTime.Add(time.Second),
			}))

			turns, err := b.LoadTurns(ctx, "sess-1")
			require.NoError(t, err)
			require.Len(t, turns, 2)
			assert.Equal(t, chat.RoleUser, turns[0].Role)
			assert.Equal(t, "hi there", turns[1].Text)
		})
	}
}

func TestReportRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.SaveSession(ctx, record("sess-1")))

			_, err := b.LoadReport(ctx, "sess-1")
			assert.ErrorIs(t, err, ErrReportNotFound)

			rep := report.Build("sess-1", nil, risk.Snapshot{Score: 0.4, Level: risk.LevelModerate}, storeTime)
			require.NoError(t, b.SaveReport(ctx, rep))

			loaded, err := b.LoadReport(ctx, "sess-1")
			require.NoError(t, err)
			assert.Equal(t, rep.RiskScore, loaded.RiskScore)
			assert.Equal(t, rep.Summary, loaded.Summary)
		})
	}
}

func TestListSessionsOrdering(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			older := record("sess-old")
			newer := record("sess-new")
			newer.UpdatedAt = storeTime.Add(time.Hour)
			require.NoError(t, b.SaveSession(ctx, older))
			require.NoError(t, b.SaveSession(ctx, newer))

			records, err := b.ListSessions(ctx)
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "sess-new", records[0].ID)
		})
	}
}

func TestClosedBackendRejectsOperations(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.Close())

			err := b.SaveSession(ctx, record("sess-1"))
			assert.ErrorIs(t, err, ErrStoreClosed)
			_, err = b.LoadSession(ctx, "sess-1")
			assert.ErrorIs(t, err, ErrStoreClosed)
		})
	}
}

func TestFileBackendRejectsPathTraversal(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	ctx := context.Background()
	err = b.SaveSession(ctx, record("../escape"))
	assert.ErrorIs(t, err, ErrInvalidPathComponent)

	_, err = b.LoadSession(ctx, "a/b")
	assert.ErrorIs(t, err, ErrInvalidPathComponent)
}

func TestFileBackendSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, b.SaveSession(ctx, record("sess-1")))
	require.NoError(t, b.AppendTurn(ctx, "sess-1", chat.Turn{Role: chat.RoleUser, Text: "hello"}))
	require.NoError(t, b.Close())

	reopened, err := NewFileBackend(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	turns, err := reopened.LoadTurns(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].Text)
}
