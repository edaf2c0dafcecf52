package glucose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/glucoview/glucoview/internal/libre"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/glucoview/glucoview/pkg/logger"
)

var log = logger.For("glucose")

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	Unauthorized      ErrorKind = "unauthorized"
	RemoteError       ErrorKind = "remote_error"
	MalformedResponse ErrorKind = "malformed_response"
	Network           ErrorKind = "network"
)

// FetchError is returned for every failed fetch.
type FetchError struct {
	Kind   ErrorKind
	Status int
	Body   []byte
	Err    error
}

func (e *FetchError) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err means the session must be re-established.
func IsUnauthorized(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Unauthorized
}

// GraphSource is the remote read the fetcher depends on.
type GraphSource interface {
	Graph(ctx context.Context, token, userID, accountID string) (*libre.Response, error)
}

// Fetcher reads the glucose graph for an already validated session. It does not
// check expiry and never retries.
type Fetcher struct {
	src GraphSource
	loc *time.Location
}

// NewFetcher parses remote timestamps in loc; nil means time.Local.
func NewFetcher(src GraphSource, loc *time.Location) *Fetcher {
	if loc == nil {
		loc = time.Local
	}
	return &Fetcher{src: src, loc: loc}
}

type graphReply struct {
	Data *struct {
		Connection *struct {
			TargetLow  *float64 `json:"targetLow"`
			TargetHigh *float64 `json:"targetHigh"`
		} `json:"connection"`
		GraphData []rawReading `json:"graphData"`
	} `json:"data"`
}

type rawReading struct {
	Timestamp string   `json:"Timestamp"`
	Value     *float64 `json:"Value"`
	IsHigh    bool     `json:"isHigh"`
	IsLow     bool     `json:"isLow"`
}

// layouts the remote service has been seen to use for Timestamp
var timestampLayouts = []string{
	"1/2/2006 3:04:05 PM",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func (f *Fetcher) parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, f.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Fetch issues one authenticated graph read.
func (f *Fetcher) Fetch(ctx context.Context, s *sessions.Session) (*Batch, error) {
	resp, err := f.src.Graph(ctx, s.Token, s.UserID, s.AccountID)
	if err != nil {
		return nil, &FetchError{Kind: Network, Err: err}
	}
	switch {
	case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		return nil, &FetchError{Kind: Unauthorized, Status: resp.Status, Body: resp.Body}
	case !resp.OK():
		log.Warnf("graph read failed: status=%d body=%s", resp.Status, string(resp.Body))
		return nil, &FetchError{Kind: RemoteError, Status: resp.Status, Body: resp.Body}
	}
	b, err := f.decode(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: MalformedResponse, Status: resp.Status, Body: resp.Body, Err: err}
	}
	return b, nil
}

// decode rejects the whole reply if any part of it is unusable.
func (f *Fetcher) decode(body []byte) (*Batch, error) {
	var reply graphReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decode graph reply: %w", err)
	}
	if reply.Data == nil {
		return nil, errors.New("missing data")
	}
	c := reply.Data.Connection
	if c == nil || c.TargetLow == nil || c.TargetHigh == nil {
		return nil, errors.New("missing target range")
	}
	if *c.TargetLow >= *c.TargetHigh {
		return nil, fmt.Errorf("invalid target range %v..%v", *c.TargetLow, *c.TargetHigh)
	}
	if reply.Data.GraphData == nil {
		return nil, errors.New("missing graphData")
	}

	readings := make([]Reading, 0, len(reply.Data.GraphData))
	for i, raw := range reply.Data.GraphData {
		if raw.Value == nil {
			return nil, fmt.Errorf("reading %d: missing Value", i)
		}
		ts, err := f.parseTimestamp(raw.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		readings = append(readings, Reading{Timestamp: ts, Value: *raw.Value, IsHigh: raw.IsHigh, IsLow: raw.IsLow})
	}
	return &Batch{Range: TargetRange{Low: *c.TargetLow, High: *c.TargetHigh}, Readings: readings}, nil
}
