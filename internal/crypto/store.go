package crypto

import (
	"context"

	"github.com/rs/zerolog"

	"astraconsole/internal/storage"
)

// SealedStore seals every value before it reaches the inner store. Values
// sealed under a retired key are resealed with the current key on read.
type SealedStore struct {
	inner  storage.Store
	sealer *Sealer
	logger zerolog.Logger
}

var _ storage.Store = (*SealedStore)(nil)

func NewSealedStore(inner storage.Store, sealer *Sealer, logger zerolog.Logger) *SealedStore {
	return &SealedStore{inner: inner, sealer: sealer, logger: logger}
}

func slot(sessionID, key string) string {
	return sessionID + "/" + key
}

func (s *SealedStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	raw, found, err := s.inner.Get(ctx, sessionID, key)
	if err != nil || !found {
		return "", found, err
	}
	plain, err := s.sealer.Open(raw, slot(sessionID, key))
	if err != nil {
		return "", false, err
	}
	if s.sealer.NeedsReseal(raw) {
		if err := s.Set(ctx, sessionID, key, plain); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to reseal stored value")
		}
	}
	return plain, true, nil
}

func (s *SealedStore) Set(ctx context.Context, sessionID, key, value string) error {
	sealed, err := s.sealer.Seal(value, slot(sessionID, key))
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, sessionID, key, sealed)
}

func (s *SealedStore) Delete(ctx context.Context, sessionID, key string) error {
	return s.inner.Delete(ctx, sessionID, key)
}

func (s *SealedStore) Close() error {
	return s.inner.Close()
}
