// Package dialogue is the conversation controller: it owns the questionnaire
// state machine and turns each incoming message into session mutations plus
// outbound replies. The transport delivers; the collaborators generate and
// synthesize.
package dialogue

import (
	"context"
	"errors"

	"skazkabot/logger"
	"skazkabot/modelapi/speechkitapi"
	"skazkabot/session"
	"skazkabot/stats"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Telegram rejects uploads above 50 MiB; oversized audio is dropped by the
// caller before delivery is attempted.
const maxAudioBytes = 50 << 20

type Keyboard string

const (
	KeyboardNone        Keyboard = ""
	KeyboardRemove      Keyboard = "remove"
	KeyboardAge         Keyboard = "age"
	KeyboardGenre       Keyboard = "genre"
	KeyboardStyle       Keyboard = "style"
	KeyboardGender      Keyboard = "gender"
	KeyboardAudioChoice Keyboard = "audio_choice"
	KeyboardVoiceChoice Keyboard = "voice_choice"
)

// Reply is one outbound action for the transport to render: a text message
// (optionally HTML-formatted, optionally with a keyboard) or an audio file.
type Reply struct {
	Text         string
	HTML         bool
	Keyboard     Keyboard
	Audio        []byte
	AudioName    string
	AudioTitle   string
	AudioCaption string
}

type StoryGenerator interface {
	GenerateStory(ctx context.Context, answers map[string]string) (string, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, voiceType session.VoiceType, emotionOverride string) ([]byte, error)
}

type UsageLog interface {
	RecordTale(ctx context.Context, rec stats.TaleRecord) error
}

type EngineConnectProps struct {
	Logger      *logger.LogMiddleware
	Sessions    *session.Store
	Generator   StoryGenerator
	Synthesizer SpeechSynthesizer
	Usage       UsageLog
}

type Engine struct {
	logger      *logger.LogMiddleware
	sessions    *session.Store
	generator   StoryGenerator
	synthesizer SpeechSynthesizer
	usage       UsageLog
}

func Connect(ctx context.Context, args EngineConnectProps) *Engine {
	tracer := otel.Tracer("dialogue/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	return &Engine{
		logger:      args.Logger,
		sessions:    args.Sessions,
		generator:   args.Generator,
		synthesizer: args.Synthesizer,
		usage:       args.Usage,
	}
}

// HandleStart resets the user's session unconditionally, discarding any
// in-flight flow.
func (e *Engine) HandleStart(ctx context.Context, userID int64) []Reply {
	tracer := otel.Tracer("dialogue/HandleStart")
	ctx, span := tracer.Start(ctx, "HandleStart")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", userID))

	unlock := e.sessions.Lock(userID)
	defer unlock()

	e.sessions.Put(session.New(userID))
	e.logger.Logger(ctx).Info("Session started", zap.Int64("user_id", userID))

	return []Reply{{Text: greetingText, HTML: true, Keyboard: KeyboardAge}}
}

// HandleMessage feeds one text message into the state machine. All handling
// for a user is serialized behind the store's per-user lock; a transition is
// committed only after its side effects completed.
func (e *Engine) HandleMessage(ctx context.Context, userID int64, text string) []Reply {
	tracer := otel.Tracer("dialogue/HandleMessage")
	ctx, span := tracer.Start(ctx, "HandleMessage")
	defer span.End()

	span.SetAttributes(attribute.Int64("user.id", userID))

	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess, ok := e.sessions.Get(userID)
	if !ok {
		// No open session: never create one from a plain message.
		return []Reply{{Text: restartText, HTML: true, Keyboard: KeyboardRemove}}
	}

	span.SetAttributes(attribute.String("session.step", string(sess.Step)))

	d := evaluate(sess.Step, text)
	if !d.valid {
		span.AddEvent("Input rejected, re-prompting")
		return repromptFor(sess.Step)
	}

	prevStep := sess.Step
	if d.answerKey != "" {
		sess.Answers[d.answerKey] = d.answerValue
	}

	switch {
	case prevStep == session.StepGender:
		sess.Step = d.next
		sess.GeneratedStory = e.generateStory(ctx, sess)
		e.sessions.Put(sess)
		return []Reply{
			{Text: generatingText, HTML: true, Keyboard: KeyboardRemove},
			{Text: sess.GeneratedStory},
			promptFor(session.StepAudioChoice),
		}

	case prevStep == session.StepAudioChoice && d.finalize:
		e.finalize(ctx, sess)
		return []Reply{{Text: textOnlyFarewellText, HTML: true, Keyboard: KeyboardRemove}}

	case prevStep == session.StepAudioChoice:
		sess.Step = d.next
		e.sessions.Put(sess)
		return []Reply{promptFor(session.StepVoiceChoice)}

	case prevStep == session.StepVoiceChoice:
		sess.VoiceType = d.voiceType
		sess.AudioRequested = true
		return e.synthesizeAndFinalize(ctx, sess)

	default:
		sess.Step = d.next
		e.sessions.Put(sess)
		return []Reply{promptFor(sess.Step)}
	}
}

// generateStory invokes the collaborator and falls back to the fixed tale
// template on any failure, so the flow never stalls on generation.
func (e *Engine) generateStory(ctx context.Context, sess *session.Session) string {
	tracer := otel.Tracer("dialogue/generateStory")
	ctx, span := tracer.Start(ctx, "generateStory")
	defer span.End()

	story, err := e.generator.GenerateStory(ctx, sess.Answers)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("Story generation failed, using fallback tale",
			zap.Error(err),
			zap.Int64("user_id", sess.UserID))
		return FallbackTale(sess.Answers)
	}
	return story
}

// synthesizeAndFinalize performs the single synthesis attempt. Finalization
// (usage record + session destruction) is deferred so it happens exactly
// once on every path, including an unexpected panic during synthesis.
func (e *Engine) synthesizeAndFinalize(ctx context.Context, sess *session.Session) []Reply {
	tracer := otel.Tracer("dialogue/synthesizeAndFinalize")
	ctx, span := tracer.Start(ctx, "synthesizeAndFinalize")
	defer span.End()

	defer e.finalize(ctx, sess)

	audio, err := e.synthesizer.Synthesize(ctx, sess.GeneratedStory, sess.VoiceType, "")
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("Speech synthesis failed",
			zap.Error(err),
			zap.Int64("user_id", sess.UserID),
			zap.String("voice_type", string(sess.VoiceType)))
		return []Reply{{Text: synthesisNotice(err), Keyboard: KeyboardRemove}}
	}

	if len(audio) > maxAudioBytes {
		span.AddEvent("Audio exceeds delivery limit")
		e.logger.Logger(ctx).Warn("Synthesized audio too large to deliver",
			zap.Int("size", len(audio)),
			zap.Int64("user_id", sess.UserID))
		return []Reply{{Text: synthTooLargeText, Keyboard: KeyboardRemove}}
	}

	childName := sess.Answers[session.AnswerChildName]
	return []Reply{
		{
			Audio:        audio,
			AudioName:    "skazka-" + uuid.NewString() + ".mp3",
			AudioTitle:   "Сказка для " + childName,
			AudioCaption: "🎧 Ваша сказка готова!",
		},
		{Text: audioFarewellText, Keyboard: KeyboardRemove},
	}
}

// finalize writes exactly one usage record and removes the session. A failed
// write is logged but never blocks session destruction.
func (e *Engine) finalize(ctx context.Context, sess *session.Session) {
	if err := e.usage.RecordTale(ctx, stats.TaleRecord{
		UserID:         sess.UserID,
		Answers:        sess.Answers,
		AudioRequested: sess.AudioRequested,
		VoiceType:      sess.VoiceType,
	}); err != nil {
		e.logger.Logger(ctx).Error("Could not record tale usage",
			zap.Error(err),
			zap.Int64("user_id", sess.UserID))
	}
	e.sessions.Delete(sess.UserID)
}

func synthesisNotice(err error) string {
	var synthErr *speechkitapi.SynthesisError
	if !errors.As(err, &synthErr) {
		return synthTransportText
	}
	switch synthErr.Cause {
	case speechkitapi.CauseUnavailable:
		return synthUnavailableText
	case speechkitapi.CauseEmptyText:
		return synthEmptyText
	case speechkitapi.CauseBackend:
		return synthBackendText
	default:
		return synthTransportText
	}
}

// promptFor is the message shown when entering a step.
func promptFor(step session.Step) Reply {
	switch step {
	case session.StepAge:
		return Reply{Text: greetingText, HTML: true, Keyboard: KeyboardAge}
	case session.StepGenre:
		return Reply{Text: genrePromptText, HTML: true, Keyboard: KeyboardGenre}
	case session.StepStyle:
		return Reply{Text: stylePromptText, HTML: true, Keyboard: KeyboardStyle}
	case session.StepLocation:
		return Reply{Text: locationPromptText, HTML: true, Keyboard: KeyboardRemove}
	case session.StepHero:
		return Reply{Text: heroPromptText, HTML: true}
	case session.StepEnemy:
		return Reply{Text: enemyPromptText, HTML: true}
	case session.StepChildName:
		return Reply{Text: childNamePromptText, HTML: true}
	case session.StepGender:
		return Reply{Text: genderPromptText, HTML: true, Keyboard: KeyboardGender}
	case session.StepAudioChoice:
		return Reply{Text: audioChoicePromptText, HTML: true, Keyboard: KeyboardAudioChoice}
	case session.StepVoiceChoice:
		return Reply{Text: voiceChoicePromptText, HTML: true, Keyboard: KeyboardVoiceChoice}
	}
	return Reply{Text: restartText, HTML: true, Keyboard: KeyboardRemove}
}

// repromptFor never mutates answers or step; gated steps get their specific
// nudge, free-text steps just repeat their prompt.
func repromptFor(step session.Step) []Reply {
	switch step {
	case session.StepAge:
		return []Reply{{Text: ageRepromptText, Keyboard: KeyboardAge}}
	case session.StepGender:
		return []Reply{{Text: genderRepromptText, HTML: true, Keyboard: KeyboardGender}}
	case session.StepAudioChoice:
		return []Reply{{Text: audioRepromptText, Keyboard: KeyboardAudioChoice}}
	case session.StepVoiceChoice:
		return []Reply{{Text: voiceRepromptText, Keyboard: KeyboardVoiceChoice}}
	default:
		return []Reply{promptFor(step)}
	}
}
