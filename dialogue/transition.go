package dialogue

import (
	"strings"

	"skazkabot/session"
)

// decision is the pure outcome of feeding one input into the current step.
// Effects (generation, synthesis, logging) are executed by the engine after
// the decision is made; this function never touches I/O.
type decision struct {
	valid       bool
	answerKey   string
	answerValue string
	next        session.Step
	finalize    bool
	voiceType   session.VoiceType
}

// evaluate implements the strict forward-only walk over the questionnaire.
// Invalid input at a gated step yields valid=false and no mutation.
func evaluate(step session.Step, input string) decision {
	input = strings.TrimSpace(input)

	switch step {
	case session.StepAge:
		code, ok := ageLabelCodes[input]
		if !ok {
			return decision{}
		}
		return decision{valid: true, answerKey: session.AnswerAge, answerValue: code, next: session.StepGenre}

	case session.StepGenre:
		return freeText(input, session.AnswerGenre, session.StepStyle)
	case session.StepStyle:
		return freeText(input, session.AnswerStyle, session.StepLocation)
	case session.StepLocation:
		return freeText(input, session.AnswerLocation, session.StepHero)
	case session.StepHero:
		return freeText(input, session.AnswerHero, session.StepEnemy)
	case session.StepEnemy:
		return freeText(input, session.AnswerEnemy, session.StepChildName)
	case session.StepChildName:
		return freeText(input, session.AnswerChildName, session.StepGender)

	case session.StepGender:
		if !genderLabels[input] {
			return decision{}
		}
		return decision{valid: true, answerKey: session.AnswerGender, answerValue: input, next: session.StepAudioChoice}

	case session.StepAudioChoice:
		switch input {
		case LabelAudioTextOnly:
			return decision{valid: true, finalize: true}
		case LabelAudioVoice:
			return decision{valid: true, next: session.StepVoiceChoice}
		}
		return decision{}

	case session.StepVoiceChoice:
		voiceType, ok := voiceLabelTypes[input]
		if !ok {
			return decision{}
		}
		return decision{valid: true, finalize: true, voiceType: voiceType}
	}

	return decision{}
}

// Free-text steps accept any non-empty input verbatim, including the literal
// request for an automatic choice.
func freeText(input, key string, next session.Step) decision {
	if input == "" {
		return decision{}
	}
	return decision{valid: true, answerKey: key, answerValue: input, next: next}
}
