package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	TypeLogin     = "login"
	TypeRefresh   = "refresh"
	TypeLogout    = "logout"
	TypeLogoutAll = "logout_all"
	TypeRegister  = "register"
)

// SessionEvent describes one completed session transition. It never carries token material.
type SessionEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PrincipalID string    `json:"principal_id"`
	Role        string    `json:"role,omitempty"`
	JTI         string    `json:"jti,omitempty"`
	Status      string    `json:"status,omitempty"`
	At          time.Time `json:"at"`
}

func New(typ, principalID, role string) SessionEvent {
	return SessionEvent{
		ID:          uuid.NewString(),
		Type:        typ,
		PrincipalID: principalID,
		Role:        role,
		At:          time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev SessionEvent) error
}

type Nop struct{}

func (Nop) Publish(context.Context, SessionEvent) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev SessionEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
