// Package session holds the per-user conversation record for the
// questionnaire flow. A session exists only between /start and flow
// completion; the store is the single owner of that lifecycle.
package session

import "sync"

type Step string

const (
	StepAge         Step = "age"
	StepGenre       Step = "genre"
	StepStyle       Step = "style"
	StepLocation    Step = "location"
	StepHero        Step = "hero"
	StepEnemy       Step = "enemy"
	StepChildName   Step = "child_name"
	StepGender      Step = "gender"
	StepAudioChoice Step = "audio_choice"
	StepVoiceChoice Step = "voice_choice"
)

// Answer keys, also used as CSV column names by the stats log.
const (
	AnswerAge       = "age"
	AnswerGenre     = "genre"
	AnswerStyle     = "style"
	AnswerLocation  = "location"
	AnswerHero      = "hero"
	AnswerEnemy     = "enemy"
	AnswerChildName = "child_name"
	AnswerGender    = "gender"
)

type VoiceType string

const (
	VoiceFemale VoiceType = "female"
	VoiceMale   VoiceType = "male"
)

type Session struct {
	UserID         int64
	Step           Step
	Answers        map[string]string
	GeneratedStory string
	AudioRequested bool
	VoiceType      VoiceType
}

func New(userID int64) *Session {
	return &Session{
		UserID:  userID,
		Step:    StepAge,
		Answers: make(map[string]string),
	}
}

func (s *Session) clone() *Session {
	c := *s
	c.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	return &c
}

// Store keeps one session per user. Reads and writes exchange clones, so a
// half-applied transition is never observable: callers mutate a private copy
// and commit it with Put.
type Store struct {
	mu        sync.Mutex
	sessions  map[int64]*Session
	userLocks map[int64]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		sessions:  make(map[int64]*Session),
		userLocks: make(map[int64]*sync.Mutex),
	}
}

// Lock serializes all handling for one user and returns the unlock func.
// Different users proceed concurrently.
func (s *Store) Lock(userID int64) func() {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *Store) Get(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess.clone()
}

func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
