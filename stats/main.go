// Package stats persists usage counters to CSV flat files: one row per user
// and one row per completed tale, plus an aggregate report for the admin
// command.
package stats

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"skazkabot/logger"
	"skazkabot/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	userStatsFile = "user_stats.csv"
	taleStatsFile = "tale_stats.csv"
)

var userHeader = []string{
	"user_id", "username", "first_name", "last_name",
	"first_seen", "last_seen", "tales_generated",
}

var taleHeader = []string{
	"timestamp", "user_id", "age_group", "genre", "style", "location",
	"hero", "enemy", "child_name", "gender", "audio_requested", "voice_type",
}

type StatsConnectProps struct {
	Logger *logger.LogMiddleware
}

type Stats struct {
	logger   *logger.LogMiddleware
	mu       sync.Mutex
	userPath string
	talePath string
}

func Connect(ctx context.Context, args StatsConnectProps) *Stats {
	tracer := otel.Tracer("stats/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	logger := args.Logger.Logger(ctx)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Fatal("[Stats] Could not create data directory", zap.Error(err), zap.String("dir", dataDir))
	}

	s := &Stats{
		logger:   args.Logger,
		userPath: filepath.Join(dataDir, userStatsFile),
		talePath: filepath.Join(dataDir, taleStatsFile),
	}

	if err := s.initFiles(); err != nil {
		logger.Fatal("[Stats] Could not initialize stats files", zap.Error(err))
	}

	span.SetAttributes(attribute.String("data.dir", dataDir))
	logger.Info("[Stats] Usage log started", zap.String("dir", dataDir))

	return s
}

func (s *Stats) initFiles() error {
	if err := ensureFile(s.userPath, userHeader); err != nil {
		return err
	}
	return ensureFile(s.talePath, taleHeader)
}

func ensureFile(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("could not write header to %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

type UserInfo struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// UpsertUser records a first-seen/last-seen pair for the user; called on
// every /start.
func (s *Stats) UpsertUser(ctx context.Context, user UserInfo) error {
	tracer := otel.Tracer("stats/UpsertUser")
	ctx, span := tracer.Start(ctx, "UpsertUser")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.updateUserRow(user, 0)
	if err != nil {
		span.RecordError(err)
		s.logger.Logger(ctx).Error("[Stats] Could not upsert user", zap.Error(err), zap.Int64("user_id", user.UserID))
	}
	return err
}

type TaleRecord struct {
	UserID         int64
	Answers        map[string]string
	AudioRequested bool
	VoiceType      session.VoiceType
}

// RecordTale appends exactly one event row per completed flow and bumps the
// user's cumulative tale counter.
func (s *Stats) RecordTale(ctx context.Context, rec TaleRecord) error {
	tracer := otel.Tracer("stats/RecordTale")
	ctx, span := tracer.Start(ctx, "RecordTale")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", rec.UserID),
		attribute.Bool("audio.requested", rec.AudioRequested),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	answer := func(key string) string {
		if v := rec.Answers[key]; v != "" {
			return v
		}
		return "N/A"
	}

	row := []string{
		time.Now().Format(time.RFC3339),
		strconv.FormatInt(rec.UserID, 10),
		answer(session.AnswerAge),
		answer(session.AnswerGenre),
		answer(session.AnswerStyle),
		answer(session.AnswerLocation),
		answer(session.AnswerHero),
		answer(session.AnswerEnemy),
		answer(session.AnswerChildName),
		answer(session.AnswerGender),
		strconv.FormatBool(rec.AudioRequested),
		string(rec.VoiceType),
	}

	if err := appendRow(s.talePath, row); err != nil {
		span.RecordError(err)
		s.logger.Logger(ctx).Error("[Stats] Could not record tale", zap.Error(err), zap.Int64("user_id", rec.UserID))
		return err
	}

	if err := s.updateUserRow(UserInfo{UserID: rec.UserID}, 1); err != nil {
		span.RecordError(err)
		s.logger.Logger(ctx).Error("[Stats] Could not bump tale counter", zap.Error(err), zap.Int64("user_id", rec.UserID))
		return err
	}

	return nil
}

func appendRow(path string, row []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// updateUserRow rewrites the user file with the row for user added or
// refreshed. Display fields are only overwritten when non-empty, so a
// counter bump does not blank them.
func (s *Stats) updateUserRow(user UserInfo, taleDelta int) error {
	rows, err := readRows(s.userPath)
	if err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	id := strconv.FormatInt(user.UserID, 10)
	found := false

	for i, row := range rows {
		if len(row) < len(userHeader) || row[0] != id {
			continue
		}
		found = true
		if user.Username != "" {
			row[1] = user.Username
		}
		if user.FirstName != "" {
			row[2] = user.FirstName
		}
		if user.LastName != "" {
			row[3] = user.LastName
		}
		row[5] = now
		count, _ := strconv.Atoi(row[6])
		row[6] = strconv.Itoa(count + taleDelta)
		rows[i] = row
	}

	if !found {
		rows = append(rows, []string{
			id,
			orNA(user.Username),
			orNA(user.FirstName),
			orNA(user.LastName),
			now,
			now,
			strconv.Itoa(taleDelta),
		})
	}

	return writeRows(s.userPath, userHeader, rows)
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) <= 1 {
		return nil, nil
	}
	return all[1:], nil
}

func writeRows(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
