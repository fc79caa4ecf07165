package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultStreamURL is the Wikimedia recent changes stream.
const DefaultStreamURL = "https://stream.wikimedia.org/v2/stream/recentchange"

const userAgent = "editgroups (https://github.com/editgroups/editgroups)"

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("event stream closed")

// EventStream reads a Server-Sent Events stream and yields the data of
// each event. After a read error the next call to Next reconnects and
// resumes from the last event seen, using the Last-Event-ID header.
type EventStream struct {
	url    string
	wiki   string
	client *http.Client
	logger logrus.FieldLogger

	mu          sync.Mutex
	body        io.ReadCloser
	reader      *bufio.Reader
	lastEventID string
	closed      bool
}

// EventStreamOption configures an EventStream.
type EventStreamOption func(*EventStream)

// WithWiki keeps only the events of one wiki (e.g. "wikidatawiki").
func WithWiki(wiki string) EventStreamOption {
	return func(s *EventStream) {
		s.wiki = wiki
	}
}

// WithHTTPClient sets the client used to connect. It should have no
// overall timeout, as the response body is read for as long as the stream lives.
func WithHTTPClient(client *http.Client) EventStreamOption {
	return func(s *EventStream) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLastEventID resumes a stream from a known position.
func WithLastEventID(id string) EventStreamOption {
	return func(s *EventStream) {
		s.lastEventID = id
	}
}

// WithStreamLogger sets the logger.
func WithStreamLogger(logger logrus.FieldLogger) EventStreamOption {
	return func(s *EventStream) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewEventStream creates a stream client. No connection is made until Next.
func NewEventStream(url string, opts ...EventStreamOption) *EventStream {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &EventStream{
		url:    url,
		client: &http.Client{},
		logger: discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastEventID returns the id of the last event read.
func (s *EventStream) LastEventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventID
}

// Next returns the data of the next event of the configured wiki.
func (s *EventStream) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}

	for {
		if s.reader == nil {
			if err := s.connect(ctx); err != nil {
				return nil, err
			}
		}

		data, err := s.readEvent()
		if err != nil {
			s.disconnect()
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("failed to read event stream: %w", err)
		}
		if s.keep(data) {
			return data, nil
		}
	}
}

// Close ends the stream. It is safe to call more than once.
func (s *EventStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.disconnect()
	return nil
}

func (s *EventStream) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)
	if s.lastEventID != "" {
		req.Header.Set("Last-Event-ID", s.lastEventID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	s.logger.WithFields(logrus.Fields{
		"url":           s.url,
		"last_event_id": s.lastEventID,
	}).Info("Connected to event stream")

	s.body = resp.Body
	s.reader = bufio.NewReaderSize(resp.Body, 64*1024)
	return nil
}

func (s *EventStream) disconnect() {
	if s.body != nil {
		_ = s.body.Close()
	}
	s.body = nil
	s.reader = nil
}

// readEvent reads lines up to the next blank line and returns the event data.
// Events without data are skipped.
func (s *EventStream) readEvent() ([]byte, error) {
	var data bytes.Buffer
	var id string
	hasID := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasID {
				s.lastEventID = id
			}
			if data.Len() > 0 {
				return data.Bytes(), nil
			}
			hasID = false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		case "id":
			id = value
			hasID = true
		}
	}
}

// keep applies the wiki filter.
func (s *EventStream) keep(data []byte) bool {
	if s.wiki == "" {
		return true
	}
	var header struct {
		Wiki string `json:"wiki"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		// Let the pipeline count it as malformed
		return true
	}
	return header.Wiki == s.wiki
}
