package speech

import (
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func TestChunkShortTextSinglePiece(t *testing.T) {
	got := Chunk("All values within normal range.", 0)
	if len(got) != 1 || got[0] != "All values within normal range." {
		t.Fatalf("got %v", got)
	}
}

func TestChunkPrefersSentenceBoundary(t *testing.T) {
	first := strings.Repeat("a", 100) + ". "
	second := strings.Repeat("b", 150)
	got := Chunk(first+second, 200)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if got[0] != first {
		t.Fatalf("chunk not cut after sentence: %q", got[0])
	}
}

func TestChunkHindiDanda(t *testing.T) {
	first := strings.Repeat("क", 50) + "। "
	second := strings.Repeat("ख", 180)
	got := Chunk(first+second, 200)
	if len(got) != 2 || got[0] != first {
		t.Fatalf("danda boundary not used: %v", got)
	}
}

func TestChunkFallsBackToSpace(t *testing.T) {
	text := strings.Repeat("word ", 50) // 250 chars, no sentence delimiters
	got := Chunk(text, 200)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %v", got)
	}
	if !strings.HasSuffix(got[0], " ") {
		t.Fatalf("expected space-aligned cut, got %q tail", got[0][len(got[0])-5:])
	}
}

func TestChunkHardSplit(t *testing.T) {
	text := strings.Repeat("x", 450)
	got := Chunk(text, 200)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[0]) != 200 || len(got[1]) != 200 || len(got[2]) != 50 {
		t.Fatalf("unexpected sizes %d/%d/%d", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestChunkReconstructsInput(t *testing.T) {
	inputs := []string{
		"",
		"short",
		strings.Repeat("The kidney function is normal. ", 30),
		strings.Repeat("रक्त परीक्षण सामान्य है। ", 40),
		strings.Repeat("nospacesorstops", 40),
		"line one\n" + strings.Repeat("line two ", 40) + "\nline three! Done? Yes.",
	}
	for _, in := range inputs {
		chunks := Chunk(in, 200)
		if joined := strings.Join(chunks, ""); joined != in {
			t.Fatalf("rejoin mismatch for %.40q...", in)
		}
		for _, c := range chunks {
			if utf8.RuneCountInString(c) > 200 {
				t.Fatalf("chunk exceeds cap: %d runes", utf8.RuneCountInString(c))
			}
		}
	}
}

// fakeEngine completes utterances on demand so tests control pacing.
type fakeEngine struct {
	mu      sync.Mutex
	spoken  []string
	volumes []float64
	pending []func(error)
	cancels int
	pauses  int
	resumes int
}

func (f *fakeEngine) Speak(text string, volume float64, done func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	f.volumes = append(f.volumes, volume)
	f.pending = append(f.pending, done)
}

func (f *fakeEngine) Pause()  { f.mu.Lock(); f.pauses++; f.mu.Unlock() }
func (f *fakeEngine) Resume() { f.mu.Lock(); f.resumes++; f.mu.Unlock() }
func (f *fakeEngine) Cancel() { f.mu.Lock(); f.cancels++; f.mu.Unlock() }

func (f *fakeEngine) finishNext(err error) {
	f.mu.Lock()
	done := f.pending[0]
	f.pending = f.pending[1:]
	f.mu.Unlock()
	done(err)
}

func TestSpeakerSequentialChunks(t *testing.T) {
	eng := &fakeEngine{}
	s := NewSpeaker(eng)
	text := strings.Repeat("a", 150) + ". " + strings.Repeat("b", 150) + ". " + "tail."
	s.Speak(text)

	if len(eng.spoken) != 1 {
		t.Fatalf("expected one utterance in flight, got %d", len(eng.spoken))
	}
	eng.finishNext(nil)
	eng.finishNext(nil)
	if !s.Speaking() {
		t.Fatalf("speaker idle before last chunk finished")
	}
	eng.finishNext(nil)

	if s.Speaking() {
		t.Fatalf("speaker still active after final chunk")
	}
	if joined := strings.Join(eng.spoken, ""); joined != text {
		t.Fatalf("spoken text mismatch: %q", joined)
	}
}

func TestSpeakerNewJobCancelsActive(t *testing.T) {
	eng := &fakeEngine{}
	s := NewSpeaker(eng)
	s.Speak(strings.Repeat("a", 150) + ". " + strings.Repeat("b", 150))
	s.Speak("replacement")

	if eng.cancels != 1 {
		t.Fatalf("expected 1 cancel, got %d", eng.cancels)
	}
	// Completing the cancelled utterance must not advance the old job.
	eng.finishNext(nil)
	if len(eng.spoken) != 2 || eng.spoken[1] != "replacement" {
		t.Fatalf("spoken = %v", eng.spoken)
	}
	eng.finishNext(nil)
	if s.Speaking() {
		t.Fatalf("replacement job did not finish")
	}
}

func TestSpeakerPauseResumeStop(t *testing.T) {
	eng := &fakeEngine{}
	s := NewSpeaker(eng)

	s.Pause() // idle, no-op
	if eng.pauses != 0 {
		t.Fatalf("pause while idle reached engine")
	}

	s.Speak("hello there")
	s.Pause()
	s.Pause() // already paused, no-op
	if eng.pauses != 1 || !s.Paused() {
		t.Fatalf("pauses=%d paused=%v", eng.pauses, s.Paused())
	}
	s.Resume()
	if eng.resumes != 1 || s.Paused() {
		t.Fatalf("resumes=%d paused=%v", eng.resumes, s.Paused())
	}
	s.Stop()
	if eng.cancels != 1 || s.Speaking() {
		t.Fatalf("cancels=%d speaking=%v", eng.cancels, s.Speaking())
	}
}

func TestSpeakerVolumeClampedAndApplied(t *testing.T) {
	eng := &fakeEngine{}
	s := NewSpeaker(eng)
	s.SetVolume(1.7)
	s.Speak("loud")
	eng.finishNext(nil)
	s.SetVolume(-0.3)
	s.Speak("silent")

	if eng.volumes[0] != 1 || eng.volumes[1] != 0 {
		t.Fatalf("volumes = %v", eng.volumes)
	}
}

func TestSpeakerEngineErrorEndsJob(t *testing.T) {
	eng := &fakeEngine{}
	s := NewSpeaker(eng)
	s.Speak(strings.Repeat("a", 150) + ". " + strings.Repeat("b", 150))
	eng.finishNext(errSpeak)

	if s.Speaking() {
		t.Fatalf("job survived engine error")
	}
	if len(eng.spoken) != 1 {
		t.Fatalf("spoke past a failed chunk: %v", eng.spoken)
	}
}

var errSpeak = errTest("utterance failed")

type errTest string

func (e errTest) Error() string { return string(e) }
