package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/kailas-cloud/agentdex/internal/domain/agent"
	"github.com/kailas-cloud/agentdex/internal/domain/search/stream"
)

// Event names sent by the backend.
const (
	EventResult   = "result"
	EventMetadata = "metadata"
	EventError    = "error"
	EventComplete = "complete"
)

const defaultMaxEventSize = 4 << 20

var errStop = errors.New("sse: stop")

// readEvents scans r and calls onEvent for every dispatched event. An event
// is dispatched on a blank line when it has a name or data. Comments and
// unknown fields are skipped. Returns nil on EOF or when onEvent returns errStop.
func readEvents(r io.Reader, maxEventSize int, onEvent func(name, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var (
		name string
		data strings.Builder
		seen bool
	)
	flush := func() error {
		if !seen {
			return nil
		}
		n, d := name, data.String()
		name, seen = "", false
		data.Reset()
		return onEvent(n, d)
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			if err := flush(); err != nil {
				if errors.Is(err, errStop) {
					return nil
				}
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
			seen = true
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			seen = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("sse: read: %w", err)
	}
	if err := flush(); err != nil && !errors.Is(err, errStop) {
		return err
	}
	return nil
}

// dispatcher decodes events into callbacks. After a terminal event it
// delivers nothing more.
type dispatcher struct {
	closed *atomic.Bool
	cb     stream.Callbacks
	done   bool
}

func (d *dispatcher) handle(name, data string) error {
	if d.done || d.closed.Load() {
		return errStop
	}

	switch name {
	case EventResult:
		var a agent.Agent
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			d.fail(stream.CodeInvalidEvent, "result: "+err.Error())
			return errStop
		}
		if a.ID == "" {
			d.fail(stream.CodeInvalidEvent, "result: missing id")
			return errStop
		}
		if d.cb.OnResult != nil {
			d.cb.OnResult(a)
		}
	case EventMetadata:
		var m stream.Metadata
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			d.fail(stream.CodeInvalidEvent, "metadata: "+err.Error())
			return errStop
		}
		if d.cb.OnMetadata != nil {
			d.cb.OnMetadata(m)
		}
	case EventError:
		var e stream.Error
		if data != "" {
			if err := json.Unmarshal([]byte(data), &e); err != nil {
				d.fail(stream.CodeInvalidEvent, "error: "+err.Error())
				return errStop
			}
		}
		if e.Code == "" {
			e.Code = stream.CodeServer
		}
		d.fail(e.Code, e.Message)
		return errStop
	case EventComplete:
		d.done = true
		if d.cb.OnComplete != nil {
			d.cb.OnComplete()
		}
		return errStop
	}
	return nil
}

// fail delivers a terminal error unless the stream already ended or was closed.
func (d *dispatcher) fail(code, message string) {
	if d.done || d.closed.Load() {
		d.done = true
		return
	}
	d.done = true
	if d.cb.OnError != nil {
		d.cb.OnError(stream.Error{Code: code, Message: message})
	}
}
