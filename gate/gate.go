// Package gate is a registry of per-resource authorization policies.
// U is the subject type the application authenticates, e.g. a session principal.
package gate

import (
	"context"
	"sync"
)

// Gate is the central authorization checkpoint. Register policies by resource
// type, optionally add Before hooks, then call Authorize or Can.
type Gate[U comparable] struct {
	mu       sync.RWMutex
	policies map[string]Policy[U]
	before   []BeforeFunc[U]
}

// BeforeFunc runs ahead of every policy check. Returning a non-nil decision
// short-circuits the policy; nil defers to it.
type BeforeFunc[U any] func(ctx context.Context, user U, action Action, resourceType string) *bool

// NewGate creates an empty Gate ready to register policies.
func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds the policy for resourceType, replacing any earlier one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policies[resourceType] = p
}

// Before adds a hook consulted before any policy, in registration order.
func (g *Gate[U]) Before(fn BeforeFunc[U]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.before = append(g.before, fn)
}

// Authorize returns nil when user may perform action on resource.
// A zero user or a denial yields ErrUnauthorized; an unknown resource type
// yields ErrNoPolicyDefined.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	g.mu.RLock()
	p, ok := g.policies[resourceType]
	hooks := g.before
	g.mu.RUnlock()
	if !ok {
		return ErrNoPolicyDefined
	}
	for _, fn := range hooks {
		if decision := fn(ctx, user, action, resourceType); decision != nil {
			if *decision {
				return nil
			}
			return ErrUnauthorized
		}
	}
	if !p.Can(ctx, user, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can reports whether Authorize would succeed.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// Allow and Deny are convenience decisions for BeforeFunc.
func Allow() *bool { b := true; return &b }
func Deny() *bool  { b := false; return &b }
