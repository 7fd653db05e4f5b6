// Package security provides credential management, log redaction,
// rate limiting, and audit logging.
package security

import (
	"slices"
	"sync"

	"github.com/parleyhq/parley/internal/core"
)

// CredentialStore is a thread-safe store for sensitive credentials.
// It is the single source of truth for secrets at runtime; every secret
// placed here is also registered with the log redactor.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		creds: make(map[string]string),
	}
}

// Set stores a credential. If a credential with the same name already exists,
// it is overwritten.
func (s *CredentialStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[name] = value
}

// Get returns the credential value and true, or "" and false if not found.
func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.creds[name]
	return v, ok
}

// Names returns a sorted list of all credential names.
func (s *CredentialStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.creds))
	for name := range s.creds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Values returns all non-empty credential values. Order is not guaranteed.
// This is intended for registering values with a Redactor.
func (s *CredentialStore) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.creds))
	for _, v := range s.creds {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Delete removes a credential by name. It is a no-op if the credential does not exist.
func (s *CredentialStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, name)
}

// SeedCredential stores a named secret into the shared credential store
// resolved from the service registry. Modules call this during Provision
// so their runtime secrets reach the log redactor. Empty values and a
// missing store are ignored.
func SeedCredential(appCtx *core.AppContext, name, value string) {
	if value == "" {
		return
	}
	svc, ok := appCtx.Service("security.credentials")
	if !ok {
		return
	}
	if store, ok := svc.(*CredentialStore); ok {
		store.Set(name, value)
	}
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
