// Package session carries the identity of whoever is composing a booking.
package session

import (
	"context"
	"strings"
)

type ctxKey string

const actorKey ctxKey = "marketplace.actor"

// Actor is either an authenticated customer or a guest who supplies contact details.
type Actor struct {
	CustomerID string `json:"customer_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Guest builds an unauthenticated actor from contact details.
func Guest(name, email, phone string) Actor {
	return Actor{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Phone: strings.TrimSpace(phone),
	}
}

// Authenticated reports whether the actor has a customer id.
func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.CustomerID) != ""
}

// WithActor stores the actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the actor if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	val := ctx.Value(actorKey)
	if val == nil {
		return Actor{}, false
	}
	actor, ok := val.(Actor)
	return actor, ok
}
