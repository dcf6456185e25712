// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package geo resolves connection source addresses to country codes for the
// join pipeline's country restriction check. Dataset acquisition and
// freshness are owned entirely by the resolver implementation; the core
// needs only CountryCode and a bounded-latency contract.
package geo

import (
	"context"
	"net/netip"
	"time"

	"github.com/samber/oops"
)

// CodeUnknown is returned when an address cannot be attributed to a
// country. The pipeline treats it as admitted (fail-open).
const CodeUnknown = "--"

// Resolver maps an IP address to a two-letter ISO 3166-1 country code.
type Resolver interface {
	CountryCode(ctx context.Context, addr string) (string, error)
}

// StaticResolver resolves from a fixed prefix table, typically loaded from
// configuration. Loopback and unknown prefixes resolve to CodeUnknown.
type StaticResolver struct {
	prefixes []prefixEntry
}

type prefixEntry struct {
	prefix netip.Prefix
	code   string
}

// NewStaticResolver builds a resolver from CIDR→country entries. A
// malformed prefix is a configuration error.
func NewStaticResolver(entries map[string]string) (*StaticResolver, error) {
	r := &StaticResolver{prefixes: make([]prefixEntry, 0, len(entries))}
	for cidr, code := range entries {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, oops.Code("GEO_INVALID_PREFIX").
				With("prefix", cidr).
				Wrap(err)
		}
		r.prefixes = append(r.prefixes, prefixEntry{prefix: prefix, code: code})
	}
	return r, nil
}

// CountryCode resolves addr against the prefix table.
func (r *StaticResolver) CountryCode(_ context.Context, addr string) (string, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return CodeUnknown, oops.Code("GEO_INVALID_ADDR").
			With("addr", addr).
			Wrap(err)
	}
	if ip.IsLoopback() || ip.IsPrivate() {
		return CodeUnknown, nil
	}
	for _, e := range r.prefixes {
		if e.prefix.Contains(ip) {
			return e.code, nil
		}
	}
	return CodeUnknown, nil
}

var _ Resolver = (*StaticResolver)(nil)

// Bounded wraps a resolver with a hard lookup timeout so a slow dataset can
// never stall join verification. A timeout surfaces as an error with
// CodeUnknown; the pipeline fails open on it.
type Bounded struct {
	inner   Resolver
	timeout time.Duration
}

// DefaultLookupTimeout bounds a single country lookup.
const DefaultLookupTimeout = 250 * time.Millisecond

// NewBounded wraps inner with the given timeout (DefaultLookupTimeout when
// zero).
func NewBounded(inner Resolver, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Bounded{inner: inner, timeout: timeout}
}

// CountryCode runs the wrapped lookup under the timeout.
func (b *Bounded) CountryCode(ctx context.Context, addr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		code string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		code, err := b.inner.CountryCode(ctx, addr)
		ch <- result{code: code, err: err}
	}()

	select {
	case res := <-ch:
		return res.code, res.err
	case <-ctx.Done():
		return CodeUnknown, oops.Code("GEO_LOOKUP_TIMEOUT").
			With("addr", addr).
			Wrap(ctx.Err())
	}
}

var _ Resolver = (*Bounded)(nil)
