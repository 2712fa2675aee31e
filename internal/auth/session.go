package auth

import (
	"context"
	"errors"

	"github.com/felipemacedo1/go-msg-wss-app/internal/models"
)

// Session carries the credential and identity of the logged-in user. It is
// passed explicitly into every component that needs it; there is no ambient
// session state.
type Session struct {
	Token    string
	Nickname string
	UserID   string
}

// LoginFunc produces a session from a nickname. Swap this out when a real
// identity service exists.
type LoginFunc func(ctx context.Context, nickname string) (Session, error)

var ErrEmptyNickname = errors.New("nickname is required")

// Login is the mocked login: it mints an opaque token from the nickname.
func Login(ctx context.Context, nickname string) (Session, error) {
	if nickname == "" {
		return Session{}, ErrEmptyNickname
	}
	return Session{
		Token:    "mocked-jwt-token-" + nickname,
		Nickname: nickname,
	}, nil
}

// Owns reports whether the message was authored by this session's user.
// The stable author id wins when both sides carry one; the nickname
// comparison remains only for payloads that predate author ids.
func (s Session) Owns(msg models.Message) bool {
	if s.UserID != "" && msg.AuthorID != "" {
		return s.UserID == msg.AuthorID
	}
	return s.Nickname != "" && s.Nickname == msg.AuthorName
}
