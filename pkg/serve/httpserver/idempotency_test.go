// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("text/plain", "t", "n", []byte("body"))
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint("text/plain", "t", "n", []byte("body")))
	assert.NotEqual(t, fp, Fingerprint("text/plain", "t", "n", []byte("other")))
	assert.NotEqual(t, fp, Fingerprint("", "t", "n", []byte("body")))
	// field boundaries must not be ambiguous
	assert.NotEqual(t, Fingerprint("ab", "", "", nil), Fingerprint("a", "b", "", nil))
}

func TestIdemCacheStates(t *testing.T) {
	c := newIdemCache()

	state, _ := c.Check("alice", "k1", "fp1")
	assert.Equal(t, IdemFresh, state)

	c.Store("alice", "k1", "fp1", 201, []byte(`{"id":"x"}`))

	state, rec := c.Check("alice", "k1", "fp1")
	assert.Equal(t, IdemReplay, state)
	assert.Equal(t, []byte(`{"id":"x"}`), rec.body)
	assert.Equal(t, 201, rec.statusCode)

	state, _ = c.Check("alice", "k1", "fp2")
	assert.Equal(t, IdemConflict, state)

	// records are scoped per principal
	state, _ = c.Check("bob", "k1", "fp1")
	assert.Equal(t, IdemFresh, state)
}

func TestLimiterUnknownKey(t *testing.T) {
	l := newLimiter(nil)
	assert.False(t, l.Allow("ghost"))
}
