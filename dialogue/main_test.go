package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"skazkabot/logger"
	"skazkabot/modelapi/speechkitapi"
	"skazkabot/session"
	"skazkabot/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	story string
	err   error
	calls int
}

func (f *fakeGenerator) GenerateStory(_ context.Context, _ map[string]string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.story, nil
}

type fakeSynthesizer struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ string, _ session.VoiceType, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type fakeUsageLog struct {
	records []stats.TaleRecord
}

func (f *fakeUsageLog) RecordTale(_ context.Context, rec stats.TaleRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type testEnv struct {
	engine *Engine
	store  *session.Store
	gen    *fakeGenerator
	synth  *fakeSynthesizer
	usage  *fakeUsageLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: session.NewStore(),
		gen:   &fakeGenerator{story: "Жила-была сказка."},
		synth: &fakeSynthesizer{audio: []byte("mp3-bytes")},
		usage: &fakeUsageLog{},
	}
	env.engine = Connect(context.Background(), EngineConnectProps{
		Logger:      logger.Connect(logger.LoggerConnectProps{Production: false}),
		Sessions:    env.store,
		Generator:   env.gen,
		Synthesizer: env.synth,
		Usage:       env.usage,
	})
	return env
}

// walkToGender answers every step up to and including gender.
func (env *testEnv) walkToGender(t *testing.T, userID int64) {
	t.Helper()
	ctx := context.Background()
	env.engine.HandleStart(ctx, userID)
	for _, input := range []string{"1-2 года", "комедия", "уютный", "сказочный лес", "котенок-плутишка", "дракон-лентяй", "Катя", "мальчик"} {
		env.engine.HandleMessage(ctx, userID, input)
	}
}

func TestStartResetsInFlightSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.engine.HandleStart(ctx, 7)
	env.engine.HandleMessage(ctx, 7, "1-2 года")
	env.engine.HandleMessage(ctx, 7, "комедия")

	env.engine.HandleStart(ctx, 7)

	sess, ok := env.store.Get(7)
	require.True(t, ok)
	assert.Equal(t, session.StepAge, sess.Step)
	assert.Empty(t, sess.Answers)
}

func TestMessageWithoutSessionNeverCreatesOne(t *testing.T) {
	env := newTestEnv(t)

	replies := env.engine.HandleMessage(context.Background(), 42, "привет")

	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "/start")
	assert.Equal(t, 0, env.store.ActiveCount())
}

func TestGatedStepValidInputAdvancesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.engine.HandleStart(ctx, 1)

	env.engine.HandleMessage(ctx, 1, "3-5 лет")

	sess, ok := env.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.StepGenre, sess.Step)
	assert.Equal(t, map[string]string{session.AnswerAge: "2"}, sess.Answers)
}

func TestGatedStepInvalidInputMutatesNothing(t *testing.T) {
	cases := []struct {
		name  string
		walk  []string
		input string
	}{
		{name: "age", walk: nil, input: "сто лет"},
		{name: "gender", walk: []string{"1-2 года", "комедия", "уютный", "лес", "кот", "лев", "Катя"}, input: "не скажу"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.engine.HandleStart(ctx, 5)
			for _, input := range tc.walk {
				env.engine.HandleMessage(ctx, 5, input)
			}
			before, ok := env.store.Get(5)
			require.True(t, ok)

			replies := env.engine.HandleMessage(ctx, 5, tc.input)

			after, ok := env.store.Get(5)
			require.True(t, ok)
			assert.Equal(t, before.Step, after.Step)
			assert.Equal(t, before.Answers, after.Answers)
			require.NotEmpty(t, replies)
			assert.NotEmpty(t, replies[0].Text)
		})
	}
}

func TestFreeTextStepsAcceptAnythingNonEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.engine.HandleStart(ctx, 9)
	env.engine.HandleMessage(ctx, 9, "6-8 лет")

	env.engine.HandleMessage(ctx, 9, "придумай сам")

	sess, ok := env.store.Get(9)
	require.True(t, ok)
	assert.Equal(t, session.StepStyle, sess.Step)
	assert.Equal(t, "придумай сам", sess.Answers[session.AnswerGenre])
}

func TestGenderAcceptedTriggersGenerationAndStoryReply(t *testing.T) {
	env := newTestEnv(t)
	env.walkToGender(t, 3)

	sess, ok := env.store.Get(3)
	require.True(t, ok)
	assert.Equal(t, session.StepAudioChoice, sess.Step)
	assert.Equal(t, "Жила-была сказка.", sess.GeneratedStory)
	assert.Equal(t, 1, env.gen.calls)
}

func TestGenerationFailureFallsBackToTemplate(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errors.New("backend down")

	env.walkToGender(t, 3)

	sess, ok := env.store.Get(3)
	require.True(t, ok)
	assert.Contains(t, sess.GeneratedStory, "котенок-плутишка")
	assert.Contains(t, sess.GeneratedStory, "дракон-лентяй")
	assert.Contains(t, sess.GeneratedStory, "Катя")
}

func TestTextOnlyFlowFinalizesWithSingleRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.walkToGender(t, 11)

	env.engine.HandleMessage(ctx, 11, LabelAudioTextOnly)

	assert.Equal(t, 0, env.store.ActiveCount())
	require.Len(t, env.usage.records, 1)
	rec := env.usage.records[0]
	assert.False(t, rec.AudioRequested)
	assert.Equal(t, int64(11), rec.UserID)
	assert.Equal(t, 0, env.synth.calls)
}

func TestVoiceFlowFinalizesEvenWhenSynthesisFails(t *testing.T) {
	failures := []error{
		&speechkitapi.SynthesisError{Cause: speechkitapi.CauseUnavailable},
		&speechkitapi.SynthesisError{Cause: speechkitapi.CauseEmptyText},
		&speechkitapi.SynthesisError{Cause: speechkitapi.CauseTransport},
		&speechkitapi.SynthesisError{Cause: speechkitapi.CauseBackend, StatusCode: 500},
		nil,
	}

	for i, failure := range failures {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			env := newTestEnv(t)
			env.synth.err = failure
			ctx := context.Background()
			env.walkToGender(t, 20)

			env.engine.HandleMessage(ctx, 20, LabelAudioVoice)
			replies := env.engine.HandleMessage(ctx, 20, LabelVoiceFemale)

			assert.Equal(t, 0, env.store.ActiveCount())
			require.Len(t, env.usage.records, 1)
			rec := env.usage.records[0]
			assert.True(t, rec.AudioRequested)
			assert.Equal(t, session.VoiceFemale, rec.VoiceType)
			assert.Equal(t, 1, env.synth.calls)

			if failure == nil {
				require.Len(t, replies, 2)
				assert.NotEmpty(t, replies[0].Audio)
				assert.True(t, strings.HasSuffix(replies[0].AudioName, ".mp3"))
			} else {
				require.NotEmpty(t, replies)
				assert.Empty(t, replies[0].Audio)
				assert.NotEmpty(t, replies[0].Text)
			}
		})
	}
}

func TestVoiceFailureNoticesAreDistinctPerCause(t *testing.T) {
	notices := map[speechkitapi.Cause]string{}
	for _, cause := range []speechkitapi.Cause{
		speechkitapi.CauseUnavailable,
		speechkitapi.CauseEmptyText,
		speechkitapi.CauseTransport,
		speechkitapi.CauseBackend,
	} {
		notices[cause] = synthesisNotice(&speechkitapi.SynthesisError{Cause: cause})
	}

	seen := map[string]speechkitapi.Cause{}
	for cause, notice := range notices {
		require.NotEmpty(t, notice)
		if prev, dup := seen[notice]; dup {
			t.Fatalf("causes %s and %s share the notice %q", prev, cause, notice)
		}
		seen[notice] = cause
	}
}

func TestOversizedAudioIsRejectedBeforeDelivery(t *testing.T) {
	env := newTestEnv(t)
	env.synth.audio = make([]byte, maxAudioBytes+1)
	ctx := context.Background()
	env.walkToGender(t, 30)

	env.engine.HandleMessage(ctx, 30, LabelAudioVoice)
	replies := env.engine.HandleMessage(ctx, 30, LabelVoiceMale)

	require.NotEmpty(t, replies)
	assert.Empty(t, replies[0].Audio)
	assert.Equal(t, synthTooLargeText, replies[0].Text)
	assert.Equal(t, 0, env.store.ActiveCount())
	require.Len(t, env.usage.records, 1)
	assert.Equal(t, session.VoiceMale, env.usage.records[0].VoiceType)
}

func TestInvalidVoiceLabelKeepsSessionOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.walkToGender(t, 31)
	env.engine.HandleMessage(ctx, 31, LabelAudioVoice)

	env.engine.HandleMessage(ctx, 31, "хриплый бас")

	sess, ok := env.store.Get(31)
	require.True(t, ok)
	assert.Equal(t, session.StepVoiceChoice, sess.Step)
	assert.Empty(t, env.usage.records)
	assert.Equal(t, 0, env.synth.calls)
}

func TestAnswersOnlyContainPassedSteps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.engine.HandleStart(ctx, 50)
	env.engine.HandleMessage(ctx, 50, "1-2 года")
	env.engine.HandleMessage(ctx, 50, "драма")

	sess, ok := env.store.Get(50)
	require.True(t, ok)
	assert.Equal(t, session.StepStyle, sess.Step)
	assert.Len(t, sess.Answers, 2)
	_, hasStyle := sess.Answers[session.AnswerStyle]
	assert.False(t, hasStyle)
}
