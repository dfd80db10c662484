package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrMalformed is returned by Decoder.Decode for a line that is not a valid
// envelope. The stream is still usable afterwards.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is the unit written to the wire.
type Envelope struct {
	Channel Channel         `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope for channel. A nil payload
// produces an envelope without one.
func NewEnvelope(channel Channel, payload any) (Envelope, error) {
	env := Envelope{Channel: channel}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", channel, err)
	}
	env.Payload = data
	return env, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", e.Channel)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Channel, err)
	}
	return nil
}

// Encoder writes newline-delimited envelopes. It is safe for concurrent use;
// each envelope is written with a single call so messages never interleave.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one envelope followed by a newline.
func (e *Encoder) Encode(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s message: %w", env.Channel, err)
	}
	return nil
}

// Send builds an envelope for channel and payload and writes it.
func (e *Encoder) Send(channel Channel, payload any) error {
	env, err := NewEnvelope(channel, payload)
	if err != nil {
		return err
	}
	return e.Encode(env)
}

// Decoder reads newline-delimited envelopes. Lines have no length limit:
// a single file result can run to tens of megabytes.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Decode reads the next envelope. It returns io.EOF once the stream ends.
// Blank lines are skipped.
func (d *Decoder) Decode() (Envelope, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var env Envelope
			if jerr := json.Unmarshal(line, &env); jerr != nil {
				return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, jerr)
			}
			return env, nil
		}
		if err != nil {
			return Envelope{}, err
		}
	}
}
