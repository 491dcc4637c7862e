package llm

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Router tries providers in a fixed order, optionally starting from a preferred one.
type Router struct {
	providers map[string]Provider
	order     []string
	log       *log.Entry
}

// NewRouter keeps the order of names that have a registered provider; providers
// missing from order are appended after it.
func NewRouter(order []string, providers ...Provider) *Router {
	r := &Router{
		providers: map[string]Provider{},
		log:       log.WithField("component", "router"),
	}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	seen := map[string]bool{}
	for _, name := range order {
		if _, ok := r.providers[name]; ok && !seen[name] {
			r.order = append(r.order, name)
			seen[name] = true
		}
	}
	for _, p := range providers {
		if p != nil && !seen[p.Name()] {
			r.order = append(r.order, p.Name())
			seen[p.Name()] = true
		}
	}
	return r
}

func (r *Router) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Router) Has(name string) bool {
	_, ok := r.providers[name]
	return ok
}

func (r *Router) Provider(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Queue returns the attempt order for a chat whose active provider is preferred.
func (r *Router) Queue(preferred string) []string {
	if !r.Has(preferred) {
		return r.Names()
	}
	queue := []string{preferred}
	for _, name := range r.order {
		if name != preferred {
			queue = append(queue, name)
		}
	}
	return queue
}

func (r *Router) Generate(ctx context.Context, preferred string, req Request) (Result, error) {
	queue := r.Queue(preferred)
	if len(queue) == 0 {
		return Result{}, ErrNoProviders
	}

	var lastErr error
	for _, name := range queue {
		text, err := r.providers[name].Generate(ctx, req)
		if err == nil {
			if text = CleanReply(text); text != "" {
				return Result{Text: text, Provider: name}, nil
			}
			err = ErrEmptyResponse
		}
		lastErr = err
		r.log.WithError(err).WithField("provider", name).Warnln("provider failed")
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, ctx.Err())
		}
	}
	return Result{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}
