package speech

import "sync"

// Engine is the platform speech backend. Speak must invoke done exactly
// once when the utterance finishes, fails, or is cancelled.
type Engine interface {
	Speak(text string, volume float64, done func(error))
	Pause()
	Resume()
	Cancel()
}

// Speaker narrates long text by driving chunks through an Engine one at
// a time. At most one job is active; starting a new one cancels the
// current job first.
type Speaker struct {
	mu     sync.Mutex
	engine Engine
	volume float64
	job    *job
	paused bool
}

type job struct {
	chunks []string
	next   int
}

// NewSpeaker returns a Speaker at full volume.
func NewSpeaker(engine Engine) *Speaker {
	return &Speaker{engine: engine, volume: 1}
}

// Speak cancels any active narration and starts reading text.
func (s *Speaker) Speak(text string) {
	chunks := Chunk(text, DefaultMaxLen)

	s.mu.Lock()
	if s.job != nil {
		s.job = nil
		s.engine.Cancel()
	}
	s.paused = false
	if len(chunks) == 0 {
		s.mu.Unlock()
		return
	}
	j := &job{chunks: chunks}
	s.job = j
	s.mu.Unlock()

	s.speakNext(j)
}

func (s *Speaker) speakNext(j *job) {
	s.mu.Lock()
	if j != s.job || j.next >= len(j.chunks) {
		s.mu.Unlock()
		return
	}
	text := j.chunks[j.next]
	j.next++
	vol := s.volume
	s.mu.Unlock()

	s.engine.Speak(text, vol, func(err error) {
		s.mu.Lock()
		if j != s.job {
			s.mu.Unlock()
			return
		}
		if err != nil || j.next >= len(j.chunks) {
			s.job = nil
			s.paused = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		s.speakNext(j)
	})
}

// Pause suspends the current utterance. No-op when idle.
func (s *Speaker) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil || s.paused {
		return
	}
	s.paused = true
	s.engine.Pause()
}

// Resume continues a paused narration.
func (s *Speaker) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil || !s.paused {
		return
	}
	s.paused = false
	s.engine.Resume()
}

// Stop cancels the active narration, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return
	}
	s.job = nil
	s.paused = false
	s.engine.Cancel()
}

// SetVolume clamps v into [0,1] and applies it to subsequent chunks.
func (s *Speaker) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}

// Speaking reports whether a narration job is active.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil
}

// Paused reports whether the active narration is paused.
func (s *Speaker) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
