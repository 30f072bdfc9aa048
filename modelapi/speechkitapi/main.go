package speechkitapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"skazkabot/httpmiddleware"
	"skazkabot/logger"
	"skazkabot/session"
	"skazkabot/speechtext"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultAPIURL = "https://tts.api.cloud.yandex.net/speech/v1/tts:synthesize"
	languageTag   = "ru-RU"
	outputFormat  = "mp3"

	// The synthesis call is bounded; expiry is treated as a transport
	// failure and never retried.
	synthesisTimeout = 30 * time.Second
)

// Cause classifies a synthesis failure so the dialogue layer can show a
// distinct notice per cause.
type Cause string

const (
	CauseUnavailable Cause = "unavailable"
	CauseEmptyText   Cause = "empty_text"
	CauseTransport   Cause = "transport"
	CauseBackend     Cause = "backend"
)

type SynthesisError struct {
	Cause      Cause
	StatusCode int
	Message    string
}

func (e *SynthesisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("speech synthesis failed (%s, status %d): %s", e.Cause, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("speech synthesis failed (%s): %s", e.Cause, e.Message)
}

type SpeechKitConnectProps struct {
	Logger   *logger.LogMiddleware
	Pipeline *speechtext.Pipeline
}

type SpeechKit struct {
	logger    *logger.LogMiddleware
	pipeline  *speechtext.Pipeline
	semaphore *semaphore.Weighted
	apiKey    string
	folderID  string
	voices    map[session.VoiceType]VoiceProfile
}

// Connect builds the gateway even when credentials are missing; in that case
// every Synthesize call fails fast with CauseUnavailable instead of the
// process refusing to start. Audio is an optional capability of the bot.
func Connect(ctx context.Context, args SpeechKitConnectProps) *SpeechKit {
	tracer := otel.Tracer("speechkitapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	apiKey := os.Getenv("YANDEX_TTS_API_KEY")
	folderID := os.Getenv("YANDEX_FOLDER_ID")

	voices, err := loadVoiceProfiles()
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to load voice profiles", zap.Error(err))
	}

	available := apiKey != "" && folderID != ""
	span.SetAttributes(
		attribute.Int("maxWorkers", maxWorkers),
		attribute.Bool("tts.available", available),
	)

	if available {
		args.Logger.Logger(ctx).Info("[SpeechKit] Synthesis client started")
	} else {
		args.Logger.Logger(ctx).Warn("[SpeechKit] API keys not found - audio generation disabled")
	}

	return &SpeechKit{
		logger:    args.Logger,
		pipeline:  args.Pipeline,
		semaphore: sem,
		apiKey:    apiKey,
		folderID:  folderID,
		voices:    voices,
	}
}

func (s *SpeechKit) available() bool {
	return s.apiKey != "" && s.folderID != ""
}

// Synthesize prepares the text for speech and performs exactly one request
// against the SpeechKit REST API. The caller owns user-facing messaging and
// must not retry.
func (s *SpeechKit) Synthesize(ctx context.Context, text string, voiceType session.VoiceType, emotionOverride string) ([]byte, error) {
	tracer := otel.Tracer("speechkitapi/Synthesize")
	ctx, span := tracer.Start(ctx, "Synthesize")
	defer span.End()

	logger := s.logger.Logger(ctx)

	if !s.available() {
		span.AddEvent("Synthesis client unavailable")
		return nil, &SynthesisError{Cause: CauseUnavailable, Message: "synthesis backend is not configured"}
	}
	if strings.TrimSpace(text) == "" {
		span.AddEvent("Empty source text")
		return nil, &SynthesisError{Cause: CauseEmptyText, Message: "nothing to synthesize"}
	}

	profile := s.resolveProfile(voiceType)
	emotion := profile.Emotion
	if emotionOverride != "" {
		emotion = emotionOverride
	}

	ssml := s.pipeline.PrepareEnhanced(text)

	span.SetAttributes(
		attribute.String("tts.voice", profile.Voice),
		attribute.String("tts.emotion", emotion),
		attribute.Int("tts.ssml_length", len(ssml)),
	)

	if err := s.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return nil, &SynthesisError{Cause: CauseTransport, Message: err.Error()}
	}
	defer s.semaphore.Release(1)

	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	apiURL := os.Getenv("YANDEX_TTS_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	form := url.Values{}
	form.Set("ssml", ssml)
	form.Set("lang", languageTag)
	form.Set("voice", profile.Voice)
	form.Set("emotion", emotion)
	form.Set("speed", profile.Speed)
	form.Set("format", outputFormat)
	form.Set("folderId", s.folderID)

	audio, err := httpmiddleware.HttpRequest(ctx, httpmiddleware.HttpRequestStruct{
		Method: "POST",
		Url:    apiURL,
		Body:   strings.NewReader(form.Encode()),
		Headers: map[string]string{
			"Authorization": "Api-Key " + s.apiKey,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
	})
	if err != nil {
		span.RecordError(err)

		var statusErr *httpmiddleware.StatusError
		if errors.As(err, &statusErr) {
			logger.Error("[SpeechKit] Backend rejected synthesis request",
				zap.Int("status", statusErr.StatusCode),
				zap.String("body", statusErr.Body))
			return nil, &SynthesisError{Cause: CauseBackend, StatusCode: statusErr.StatusCode, Message: statusErr.Body}
		}

		logger.Error("[SpeechKit] Synthesis request failed", zap.Error(err))
		return nil, &SynthesisError{Cause: CauseTransport, Message: err.Error()}
	}

	logger.Info("[SpeechKit] Successfully generated speech", zap.Int("audioSize", len(audio)))
	return audio, nil
}

func (s *SpeechKit) resolveProfile(voiceType session.VoiceType) VoiceProfile {
	if profile, ok := s.voices[voiceType]; ok {
		return profile
	}
	return s.voices[session.VoiceFemale]
}
