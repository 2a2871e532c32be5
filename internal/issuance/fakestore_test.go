package issuance

import (
	"context"
	"sync"
)

// fakeSessionStore is an in-memory SessionStore enforcing the same
// uniqueness the Mongo-backed store's unique indexes enforce in production,
// so the session-state-machine tests can exercise real read-modify-write
// races without a database.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*IssuanceSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*IssuanceSession)}
}

func cloneSession(s *IssuanceSession) *IssuanceSession {
	c := *s
	c.OfferedCredentials = append([]string(nil), s.OfferedCredentials...)
	c.IssuedCredentials = append([]string(nil), s.IssuedCredentials...)
	return &c
}

func (f *fakeSessionStore) Create(_ context.Context, session *IssuanceSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		if s.IssuerID == session.IssuerID && s.CredentialOfferURI == session.CredentialOfferURI {
			return newError(ErrCodeInvalidOffer, errDuplicateOfferURI)
		}
		if session.CNonce != "" && s.IssuerID == session.IssuerID && s.CNonce == session.CNonce {
			return newError(ErrCodeInvalidOffer, errDuplicateCNonce)
		}
	}

	f.sessions[session.ID] = cloneSession(session)
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, issuerID, sessionID string) (*IssuanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[sessionID]
	if !ok || s.IssuerID != issuerID {
		return nil, newError(ErrCodeNotFound, errSessionNotFound)
	}
	return cloneSession(s), nil
}

func (f *fakeSessionStore) FindByOfferURI(_ context.Context, issuerID, offerURI string) (*IssuanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		if s.CredentialOfferURI == offerURI && (issuerID == "" || s.IssuerID == issuerID) {
			return cloneSession(s), nil
		}
	}
	return nil, newError(ErrCodeNotFound, errSessionNotFound)
}

func (f *fakeSessionStore) FindSingleByQuery(_ context.Context, query SessionQuery) (*IssuanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []*IssuanceSession
	for _, s := range f.sessions {
		if s.CNonce != query.CNonce {
			continue
		}
		if query.IssuerID != "" && s.IssuerID != query.IssuerID {
			continue
		}
		matches = append(matches, s)
	}

	if len(matches) == 0 {
		return nil, newError(ErrCodeNotFound, errSessionNotFound)
	}
	if len(matches) > 1 {
		return nil, newError(ErrCodeAmbiguousSession, errAmbiguousSession)
	}
	return cloneSession(matches[0]), nil
}

// Update performs a last-writer-wins replace, mirroring MongoSessionStore's
// ReplaceOne semantics (no compare-and-swap); the store serializes writes
// but is not transactional.
func (f *fakeSessionStore) Update(_ context.Context, session *IssuanceSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.sessions[session.ID]; !ok {
		return newError(ErrCodeNotFound, errSessionNotFound)
	}
	f.sessions[session.ID] = cloneSession(session)
	return nil
}
