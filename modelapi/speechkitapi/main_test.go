package speechkitapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"skazkabot/logger"
	"skazkabot/session"
	"skazkabot/speechtext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *SpeechKit {
	t.Helper()
	pipeline, err := speechtext.New(speechtext.SnowballAnalyzer{})
	require.NoError(t, err)
	return Connect(context.Background(), SpeechKitConnectProps{
		Logger:   logger.Connect(logger.LoggerConnectProps{Production: false}),
		Pipeline: pipeline,
	})
}

func TestSynthesizeUnavailableWithoutCredentials(t *testing.T) {
	t.Setenv("YANDEX_TTS_API_KEY", "")
	t.Setenv("YANDEX_FOLDER_ID", "")
	client := newTestClient(t)

	_, err := client.Synthesize(context.Background(), "Жил-был кот.", session.VoiceFemale, "")

	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, CauseUnavailable, synthErr.Cause)
}

func TestSynthesizeEmptyTextFailsWithoutNetworkCall(t *testing.T) {
	t.Setenv("YANDEX_TTS_API_KEY", "key")
	t.Setenv("YANDEX_FOLDER_ID", "folder")
	client := newTestClient(t)

	_, err := client.Synthesize(context.Background(), "   ", session.VoiceMale, "")

	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, CauseEmptyText, synthErr.Cause)
}

func TestSynthesizeSendsResolvedParameters(t *testing.T) {
	t.Setenv("YANDEX_TTS_API_KEY", "secret-key")
	t.Setenv("YANDEX_FOLDER_ID", "folder-1")

	var gotForm map[string]string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for key := range r.PostForm {
			gotForm[key] = r.PostForm.Get(key)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()
	t.Setenv("YANDEX_TTS_API_URL", server.URL)

	client := newTestClient(t)
	audio, err := client.Synthesize(context.Background(), "Жил-был кот. Он был храбрый!", session.VoiceMale, "")

	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
	assert.Equal(t, "Api-Key secret-key", gotAuth)
	assert.Equal(t, "filipp", gotForm["voice"])
	assert.Equal(t, "good", gotForm["emotion"])
	assert.Equal(t, "1.0", gotForm["speed"])
	assert.Equal(t, "ru-RU", gotForm["lang"])
	assert.Equal(t, "mp3", gotForm["format"])
	assert.Equal(t, "folder-1", gotForm["folderId"])
	assert.Contains(t, gotForm["ssml"], "<speak>")
	assert.Contains(t, gotForm["ssml"], "<break")
}

func TestSynthesizeEmotionOverride(t *testing.T) {
	t.Setenv("YANDEX_TTS_API_KEY", "key")
	t.Setenv("YANDEX_FOLDER_ID", "folder")

	var gotEmotion, gotVoice string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotEmotion = r.PostForm.Get("emotion")
		gotVoice = r.PostForm.Get("voice")
		w.Write([]byte("ok"))
	}))
	defer server.Close()
	t.Setenv("YANDEX_TTS_API_URL", server.URL)

	client := newTestClient(t)
	_, err := client.Synthesize(context.Background(), "Сказка.", session.VoiceType("robot"), "evil")

	require.NoError(t, err)
	assert.Equal(t, "evil", gotEmotion)
	// Unrecognized voice tags resolve to the default female profile.
	assert.Equal(t, "alena", gotVoice)
}

func TestSynthesizeBackendRejection(t *testing.T) {
	t.Setenv("YANDEX_TTS_API_KEY", "key")
	t.Setenv("YANDEX_FOLDER_ID", "folder")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()
	t.Setenv("YANDEX_TTS_API_URL", server.URL)

	client := newTestClient(t)
	_, err := client.Synthesize(context.Background(), "Сказка.", session.VoiceFemale, "")

	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, CauseBackend, synthErr.Cause)
	assert.Equal(t, http.StatusTooManyRequests, synthErr.StatusCode)
}

func TestSynthesizeTransportFailure(t *testing.T) {
	t.Setenv("YANDEX_TTS_API_KEY", "key")
	t.Setenv("YANDEX_FOLDER_ID", "folder")
	// A closed server port forces a connection error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	t.Setenv("YANDEX_TTS_API_URL", server.URL)

	client := newTestClient(t)
	_, err := client.Synthesize(context.Background(), "Сказка.", session.VoiceFemale, "")

	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, CauseTransport, synthErr.Cause)
}

func TestLoadVoiceProfiles(t *testing.T) {
	voices, err := loadVoiceProfiles()
	require.NoError(t, err)
	assert.Equal(t, "alena", voices[session.VoiceFemale].Voice)
	assert.Equal(t, "filipp", voices[session.VoiceMale].Voice)
}
