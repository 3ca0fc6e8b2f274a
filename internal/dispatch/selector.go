package dispatch

import (
	"context"

	"github.com/KanishkKundu05/scrapeX/internal/store"
	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// SessionAccess is the slice of the session store dispatch needs.
type SessionAccess interface {
	Get(ctx context.Context, id string) (*models.TwitterSession, error)
	FirstActive(ctx context.Context) (*models.TwitterSession, error)
	Credential(ctx context.Context, id string) (*store.SessionCredential, error)
	TouchLastUsed(ctx context.Context, id string) error
}

// Selector picks the sending identity for a dispatch.
type Selector struct {
	sessions SessionAccess
}

// NewSelector creates a session selector
func NewSelector(sessions SessionAccess) *Selector {
	return &Selector{sessions: sessions}
}

// Select resolves the session to post with. A preferred id is an explicit
// operator override and is honored even if inactive; otherwise the oldest
// active session wins, deterministically.
func (s *Selector) Select(ctx context.Context, preferredID string) (*models.TwitterSession, error) {
	if preferredID != "" {
		sess, err := s.sessions.Get(ctx, preferredID)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, ErrSessionNotFound
		}
		return sess, nil
	}

	sess, err := s.sessions.FirstActive(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	return sess, nil
}
