package hls

import (
	"context"
	"fmt"

	"ncd/util"

	"go.uber.org/zap"
)

const keySize = 16

// KeyStore fetches AES-128 keys, each distinct URI at most once.
// a store lives for a single download.
type KeyStore struct {
	transfer *util.Transfer
	keys     map[string][]byte
}

func NewKeyStore(transfer *util.Transfer) *KeyStore {
	return &KeyStore{
		transfer: transfer,
		keys:     make(map[string][]byte),
	}
}

func (s *KeyStore) FetchKey(ctx context.Context, uri string) ([]byte, error) {
	key, ok := s.keys[uri]
	if !ok {
		zap.S().Debugf("fetching key: %s", uri)
		body, err := s.transfer.FetchInMemory(ctx, uri)
		if err != nil {
			return nil, err
		}
		key = body[:min(len(body), keySize)]
		s.keys[uri] = key
	}
	if len(key) < keySize {
		return nil, fmt.Errorf("%w: %s returned %d bytes", util.ErrKeyTooShort, uri, len(key))
	}
	return key, nil
}
