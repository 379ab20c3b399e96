package sse

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// Reader incrementally decodes an OpenAI-style SSE chat stream into
// content deltas. Chunks are buffered at the byte level, so reads may
// split lines, JSON payloads, or multi-byte characters at any offset.
type Reader struct {
	src     io.Reader
	buf     []byte
	pending []string
	chunk   [4096]byte
	sawEOF  bool
	done    bool
}

type chatEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// NewReader wraps the response body of a streaming chat request.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

// Next returns the next content delta. It returns io.EOF once the
// stream terminates, either via the [DONE] sentinel or the underlying
// reader ending. Any other error is a transport error.
func (r *Reader) Next() (string, error) {
	for {
		if len(r.pending) > 0 {
			delta := r.pending[0]
			r.pending = r.pending[1:]
			return delta, nil
		}
		if r.done {
			return "", io.EOF
		}
		if r.sawEOF {
			r.flush()
			r.done = true
			continue
		}

		r.decodeBuffered()
		if len(r.pending) > 0 || r.done {
			continue
		}

		n, err := r.src.Read(r.chunk[:])
		if n > 0 {
			r.buf = append(r.buf, r.chunk[:n]...)
		}
		if err == io.EOF {
			r.sawEOF = true
			continue
		}
		if err != nil {
			return "", err
		}
	}
}

// Drain consumes the remainder of the stream, invoking onDelta for each
// content delta. It returns nil on normal termination.
func (r *Reader) Drain(onDelta func(string)) error {
	for {
		delta, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if onDelta != nil {
			onDelta(delta)
		}
	}
}

// decodeBuffered extracts complete lines from the buffer. A data line
// whose JSON does not parse yet is pushed back to wait for more bytes;
// the payload may have been split mid-line by the transport.
func (r *Reader) decodeBuffered() {
	for !r.done {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			return
		}
		line := string(r.buf[:idx])
		rest := r.buf[idx+1:]

		delta, ok, parseErr := decodeLine(line, &r.done)
		if parseErr {
			// Rejoin with the bytes still in flight.
			return
		}
		r.buf = rest
		if ok {
			r.pending = append(r.pending, delta)
		}
	}
}

// flush is the end-of-stream pass: whatever remains in the buffer is
// decoded on a best-effort basis, ignoring parse failures.
func (r *Reader) flush() {
	for _, line := range strings.Split(string(r.buf), "\n") {
		if r.done {
			break
		}
		delta, ok, _ := decodeLine(line, &r.done)
		if ok {
			r.pending = append(r.pending, delta)
		}
	}
	r.buf = nil
}

func decodeLine(line string, done *bool) (delta string, ok bool, parseErr bool) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false, false
	}
	payload, found := strings.CutPrefix(line, "data:")
	if !found {
		return "", false, false
	}
	payload = strings.TrimLeft(payload, " ")
	if payload == "[DONE]" {
		*done = true
		return "", false, false
	}

	var ev chatEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return "", false, true
	}
	if len(ev.Choices) == 0 || ev.Choices[0].Delta.Content == "" {
		return "", false, false
	}
	return ev.Choices[0].Delta.Content, true, false
}
