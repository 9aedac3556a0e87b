package doctor

import (
	"context"
	"time"

	"github.com/hay-kot/storefront/internal/core/session"
)

// SessionSource returns the current session.
type SessionSource interface {
	Current(ctx context.Context) (session.Session, bool)
}

// SessionCheck reports whether someone is signed in and whether the token is
// still valid.
type SessionCheck struct {
	sessions SessionSource
	now      func() time.Time
}

// NewSessionCheck creates a new session check.
func NewSessionCheck(sessions SessionSource) *SessionCheck {
	return &SessionCheck{sessions: sessions, now: time.Now}
}

func (c *SessionCheck) Name() string {
	return "Session"
}

func (c *SessionCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	sess, ok := c.sessions.Current(ctx)
	if !ok {
		result.add(CheckItem{Label: "Signed in", Status: StatusWarn, Detail: "not signed in, cart sync is off"})
		return result
	}

	detail := sess.User.Username
	if detail == "" {
		detail = "user details missing"
	}
	result.add(CheckItem{Label: "Signed in", Status: StatusPass, Detail: detail})

	exp, ok := sess.ExpiresAt()
	switch {
	case !ok:
		result.add(CheckItem{Label: "Token", Status: StatusPass, Detail: "no expiry"})
	case sess.Expired(c.now()):
		result.add(CheckItem{Label: "Token", Status: StatusFail, Detail: "expired " + exp.Local().Format(time.DateTime) + ", run 'storefront login'"})
	default:
		result.add(CheckItem{Label: "Token", Status: StatusPass, Detail: "expires " + exp.Local().Format(time.DateTime)})
	}

	return result
}
