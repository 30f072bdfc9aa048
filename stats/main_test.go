package stats

import (
	"context"
	"testing"

	"skazkabot/logger"
	"skazkabot/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStats(t *testing.T) *Stats {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	return Connect(context.Background(), StatsConnectProps{
		Logger: logger.Connect(logger.LoggerConnectProps{Production: false}),
	})
}

func taleFor(userID int64, genre string) TaleRecord {
	return TaleRecord{
		UserID: userID,
		Answers: map[string]string{
			session.AnswerAge:       "1",
			session.AnswerGenre:     genre,
			session.AnswerStyle:     "уютный",
			session.AnswerLocation:  "лес",
			session.AnswerHero:      "кот",
			session.AnswerEnemy:     "лев",
			session.AnswerChildName: "Катя",
			session.AnswerGender:    "мальчик",
		},
	}
}

func TestUpsertUserTracksFirstAndLastSeen(t *testing.T) {
	s := newTestStats(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, UserInfo{UserID: 1, Username: "kid", FirstName: "Катя"}))
	require.NoError(t, s.UpsertUser(ctx, UserInfo{UserID: 1, Username: "kid", FirstName: "Катя"}))
	require.NoError(t, s.UpsertUser(ctx, UserInfo{UserID: 2}))

	report, err := s.BuildReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalUsers)
	assert.Equal(t, 0, report.TotalTales)
}

func TestRecordTaleBumpsCumulativeCounter(t *testing.T) {
	s := newTestStats(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, UserInfo{UserID: 7, Username: "kid"}))
	require.NoError(t, s.RecordTale(ctx, taleFor(7, "комедия")))
	require.NoError(t, s.RecordTale(ctx, taleFor(7, "драма")))

	report, err := s.BuildReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalUsers)
	assert.Equal(t, 2, report.TotalTales)

	require.Len(t, report.AgeGroups, 1)
	assert.Equal(t, "1-2 года", report.AgeGroups[0].Name)
	assert.Equal(t, 2, report.AgeGroups[0].Count)
}

func TestRecordTaleStoresAudioFields(t *testing.T) {
	s := newTestStats(t)
	ctx := context.Background()

	rec := taleFor(3, "фантастика")
	rec.AudioRequested = true
	rec.VoiceType = session.VoiceMale
	require.NoError(t, s.RecordTale(ctx, rec))

	rows, err := readRows(s.talePath)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "true", rows[0][10])
	assert.Equal(t, "male", rows[0][11])
}

func TestTopGenresTieBrokenByFirstEncountered(t *testing.T) {
	s := newTestStats(t)
	ctx := context.Background()

	sequence := []string{"A", "B", "A", "B", "A", "B", "A", "B", "A", "B", "C", "C", "C"}
	for _, genre := range sequence {
		require.NoError(t, s.RecordTale(ctx, taleFor(1, genre)))
	}

	report, err := s.BuildReport(ctx)
	require.NoError(t, err)

	require.Len(t, report.TopGenres, 3)
	assert.Equal(t, GenreCount{Genre: "A", Count: 5}, report.TopGenres[0])
	assert.Equal(t, GenreCount{Genre: "B", Count: 5}, report.TopGenres[1])
	assert.Equal(t, GenreCount{Genre: "C", Count: 3}, report.TopGenres[2])
}

func TestTopGenresCappedAtFive(t *testing.T) {
	s := newTestStats(t)
	ctx := context.Background()

	for _, genre := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		require.NoError(t, s.RecordTale(ctx, taleFor(1, genre)))
	}

	report, err := s.BuildReport(ctx)
	require.NoError(t, err)
	assert.Len(t, report.TopGenres, 5)
}

func TestFormatReport(t *testing.T) {
	report := &Report{
		TotalUsers: 2,
		TotalTales: 3,
		AgeGroups:  []AgeCount{{Group: "1", Name: "1-2 года", Count: 3}},
		TopGenres:  []GenreCount{{Genre: "комедия", Count: 2}, {Genre: "драма", Count: 1}},
	}

	text := FormatReport(report)
	assert.Contains(t, text, "Всего пользователей: 2")
	assert.Contains(t, text, "Всего сгенерировано сказок: 3")
	assert.Contains(t, text, "1-2 года: 3")
	assert.Contains(t, text, "комедия: 2")
}
