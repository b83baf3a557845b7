package transcript

import (
	"time"
)

type Kind string

const (
	KindChat    Kind = "chat"
	KindCommand Kind = "command"
	KindEvent   Kind = "event"
	KindOutput  Kind = "output"
)

// Record is one transcript line.
type Record struct {
	At     time.Time `json:"at"`
	Kind   Kind      `json:"kind"`
	From   string    `json:"from,omitempty"`
	Origin string    `json:"origin,omitempty"`
	Event  string    `json:"event,omitempty"`
	Level  string    `json:"level,omitempty"`
	Text   string    `json:"text"`
}

// Transcript writes typed records to hourly files. A nil *Transcript discards everything.
type Transcript struct {
	w   *hourlyWriter
	now func() time.Time
}

func New(dir string) *Transcript {
	return &Transcript{w: newHourlyWriter(dir, "session"), now: time.Now}
}

func (t *Transcript) Chat(from, text string) error {
	return t.write(Record{Kind: KindChat, From: from, Text: text})
}

func (t *Transcript) Command(line, origin string) error {
	return t.write(Record{Kind: KindCommand, Origin: origin, Text: line})
}

func (t *Transcript) Event(kind, text string) error {
	return t.write(Record{Kind: KindEvent, Event: kind, Text: text})
}

func (t *Transcript) Output(level, text string) error {
	return t.write(Record{Kind: KindOutput, Level: level, Text: text})
}

func (t *Transcript) Path() string {
	if t == nil {
		return ""
	}
	return t.w.path()
}

func (t *Transcript) Close() error {
	if t == nil {
		return nil
	}
	return t.w.close()
}

func (t *Transcript) write(r Record) error {
	if t == nil {
		return nil
	}
	r.At = t.now().UTC()
	return t.w.append(r)
}
