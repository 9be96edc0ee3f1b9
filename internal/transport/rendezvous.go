package transport

import (
	"context"
	"errors"
)

// MultiAnnouncer registers a room with every announcer that will take it.
// One success is enough for the room to count as open.
type MultiAnnouncer []Announcer

func (m MultiAnnouncer) Announce(ctx context.Context, code, addr string) (func(), error) {
	var withdraws []func()
	var errs []error
	for _, a := range m {
		w, err := a.Announce(ctx, code, addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		withdraws = append(withdraws, w)
	}
	if len(withdraws) == 0 {
		return nil, errors.Join(errs...)
	}
	return func() {
		for _, w := range withdraws {
			w()
		}
	}, nil
}

// FallbackResolver tries each resolver in order and returns the first hit.
// Typical chain: LAN discovery first (fast, no broker round trip), then the
// rendezvous broker.
type FallbackResolver []Resolver

func (f FallbackResolver) Resolve(ctx context.Context, code string) (string, error) {
	var errs []error
	for _, r := range f {
		addr, err := r.Resolve(ctx, code)
		if err == nil {
			return addr, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}
