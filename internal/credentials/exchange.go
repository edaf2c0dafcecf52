// Package credentials turns a LibreLinkUp username/password into a Session.
package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/glucoview/glucoview/internal/libre"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/glucoview/glucoview/pkg/logger"
)

var log = logger.For("credentials")

// Kind classifies an exchange failure.
type Kind string

const (
	MissingCredentials Kind = "missing_credentials"
	RemoteRejected     Kind = "remote_rejected"
	Network            Kind = "network"
	Unexpected         Kind = "unexpected"
)

// AuthError is returned for every failed exchange. Status and Details carry the
// remote reply for RemoteRejected.
type AuthError struct {
	Kind    Kind
	Status  int
	Details json.RawMessage
	Err     error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case MissingCredentials:
		return "username and password are required"
	case RemoteRejected:
		return fmt.Sprintf("remote rejected credentials (status %d)", e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// KindOf returns the AuthError kind of err, or Unexpected.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Unexpected
}

// LoginClient is the remote call the exchanger depends on.
type LoginClient interface {
	Login(ctx context.Context, email, password string) (*libre.Response, error)
}

// Exchanger performs the credential exchange. It never persists anything.
type Exchanger struct {
	client LoginClient
	now    func() time.Time
}

func NewExchanger(client LoginClient) *Exchanger {
	return &Exchanger{client: client, now: time.Now}
}

// WithClock returns a copy of e using now as its clock.
func (e *Exchanger) WithClock(now func() time.Time) *Exchanger {
	c := *e
	c.now = now
	return &c
}

type loginReply struct {
	Status int `json:"status"`
	Data   *struct {
		AuthTicket *struct {
			Token    string `json:"token"`
			Duration int64  `json:"duration"`
		} `json:"authTicket"`
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"data"`
}

// Exchange validates presence of both fields, logs in remotely and derives the account id.
func (e *Exchanger) Exchange(ctx context.Context, username, password string) (*sessions.Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, &AuthError{Kind: MissingCredentials}
	}

	resp, err := e.client.Login(ctx, username, password)
	if err != nil {
		log.Warnf("login request failed: %v", err)
		return nil, &AuthError{Kind: Network, Err: err}
	}
	if !resp.OK() {
		log.Warnf("login rejected: status=%d body=%s", resp.Status, truncate(resp.Body))
		return nil, &AuthError{Kind: RemoteRejected, Status: resp.Status, Details: jsonOrNil(resp.Body)}
	}

	var reply loginReply
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		return nil, &AuthError{Kind: Unexpected, Err: fmt.Errorf("decode login reply: %w", err)}
	}
	// LibreLinkUp answers bad credentials with HTTP 200 and a non-zero status field
	if reply.Status != 0 {
		log.Warnf("login rejected: llu status=%d body=%s", reply.Status, truncate(resp.Body))
		return nil, &AuthError{Kind: RemoteRejected, Status: http.StatusUnauthorized, Details: jsonOrNil(resp.Body)}
	}
	if reply.Data == nil || reply.Data.AuthTicket == nil || reply.Data.User == nil ||
		reply.Data.AuthTicket.Token == "" || reply.Data.User.ID == "" {
		return nil, &AuthError{Kind: Unexpected, Err: errors.New("login reply missing authTicket or user")}
	}

	userID := reply.Data.User.ID
	s := &sessions.Session{
		Token:      reply.Data.AuthTicket.Token,
		UserID:     userID,
		AccountID:  AccountID(userID),
		IssuedAtMs: e.now().UnixMilli(),
		DurationMs: reply.Data.AuthTicket.Duration,
	}
	log.Infof("exchanged credentials for user %s (token %s, duration %dms)", userID, logger.Redact(s.Token), s.DurationMs)
	return s, nil
}

// AccountID is the hex SHA-256 of the remote user id.
func AccountID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

func jsonOrNil(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
