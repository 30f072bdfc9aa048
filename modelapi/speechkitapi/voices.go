package speechkitapi

import (
	_ "embed"
	"fmt"
	"skazkabot/session"

	"github.com/pelletier/go-toml/v2"
)

//go:embed voices.toml
var voicesTOML []byte

// VoiceProfile is the static synthesis configuration for one voice-type tag.
type VoiceProfile struct {
	Voice       string `toml:"voice"`
	Description string `toml:"description"`
	Emotion     string `toml:"emotion"`
	Speed       string `toml:"speed"`
}

type voicesFile struct {
	Voices map[string]VoiceProfile `toml:"voices"`
}

func loadVoiceProfiles() (map[session.VoiceType]VoiceProfile, error) {
	var file voicesFile
	if err := toml.Unmarshal(voicesTOML, &file); err != nil {
		return nil, fmt.Errorf("could not parse voice profiles: %w", err)
	}

	voices := make(map[session.VoiceType]VoiceProfile, len(file.Voices))
	for tag, profile := range file.Voices {
		voices[session.VoiceType(tag)] = profile
	}

	if _, ok := voices[session.VoiceFemale]; !ok {
		return nil, fmt.Errorf("voice profiles must include the default %q profile", session.VoiceFemale)
	}

	return voices, nil
}
