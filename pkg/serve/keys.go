// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"encoding/json"
	"fmt"
	"os"
)

// Recognised scopes.
const (
	ScopePasteCreate = "paste:create"
	ScopePasteRead   = "paste:read"
	ScopeRecentRead  = "recent:read"
	ScopeAPIIndex    = "api:index"
)

var knownScopes = map[string]bool{
	ScopePasteCreate: true,
	ScopePasteRead:   true,
	ScopeRecentRead:  true,
	ScopeAPIIndex:    true,
}

type APIKey struct {
	Name                 string   `json:"name"`
	Key                  string   `json:"key"`
	Scopes               []string `json:"scopes"`
	MaxRequestsPerMinute int      `json:"max_requests_per_minute"`
}

func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type keysFile struct {
	Keys []*APIKey `json:"keys"`
}

// Keychain maps key strings to their records. A nil Keychain means API-key
// authentication is not configured.
type Keychain struct {
	byKey map[string]*APIKey
	keys  []*APIKey
}

// LoadKeychain reads and validates an API keys file. A malformed file is a
// startup error, not something to limp along with.
func LoadKeychain(file string) (*Keychain, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var kf keysFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse api keys file: %w", err)
	}
	kc := &Keychain{byKey: make(map[string]*APIKey, len(kf.Keys)), keys: kf.Keys}
	for i, k := range kf.Keys {
		if k.Name == "" || k.Key == "" {
			return nil, fmt.Errorf("api key #%d: name and key are required", i)
		}
		if k.MaxRequestsPerMinute <= 0 {
			return nil, fmt.Errorf("api key '%s': max_requests_per_minute must be positive", k.Name)
		}
		for _, s := range k.Scopes {
			if !knownScopes[s] {
				return nil, fmt.Errorf("api key '%s': unknown scope '%s'", k.Name, s)
			}
		}
		if _, exists := kc.byKey[k.Key]; exists {
			return nil, fmt.Errorf("api key '%s': duplicate key string", k.Name)
		}
		kc.byKey[k.Key] = k
	}
	return kc, nil
}

// Lookup resolves a presented key string.
func (kc *Keychain) Lookup(key string) (*APIKey, bool) {
	if kc == nil || key == "" {
		return nil, false
	}
	k, ok := kc.byKey[key]
	return k, ok
}

// Keys returns every configured key, in file order.
func (kc *Keychain) Keys() []*APIKey {
	if kc == nil {
		return nil
	}
	return kc.keys
}
