// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	idemCacheSize = 4096
	idemCacheTTL  = 15 * time.Minute
)

type IdemState int

const (
	IdemFresh IdemState = iota
	IdemReplay
	IdemConflict
)

type idemRecord struct {
	fingerprint string
	statusCode  int
	body        []byte
	createdAt   time.Time
}

// idemCache replays identical create retries and rejects conflicting reuse
// of an Idempotency-Key. In-memory only: a restart forgets it, which is an
// accepted LAN-scope tradeoff.
type idemCache struct {
	lru *expirable.LRU[string, *idemRecord]
}

func newIdemCache() *idemCache {
	return &idemCache{lru: expirable.NewLRU[string, *idemRecord](idemCacheSize, nil, idemCacheTTL)}
}

// Fingerprint hashes the idempotency-relevant request fields.
func Fingerprint(contentType, tag, name string, body []byte) string {
	h := sha256.New()
	for _, field := range []string{contentType, tag, name} {
		_, _ = h.Write([]byte(field))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func idemKeyOf(principal, key string) string {
	return principal + "\x00" + key
}

// Check resolves a (principal, key, fingerprint) triple against the cache.
func (c *idemCache) Check(principal, key, fingerprint string) (IdemState, *idemRecord) {
	rec, ok := c.lru.Get(idemKeyOf(principal, key))
	if !ok {
		return IdemFresh, nil
	}
	if rec.fingerprint != fingerprint {
		return IdemConflict, rec
	}
	return IdemReplay, rec
}

// Store freezes the response of a completed create for later replay.
func (c *idemCache) Store(principal, key, fingerprint string, statusCode int, body []byte) {
	c.lru.Add(idemKeyOf(principal, key), &idemRecord{
		fingerprint: fingerprint,
		statusCode:  statusCode,
		body:        body,
		createdAt:   time.Now(),
	})
}
