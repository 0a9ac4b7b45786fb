// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// go-keyring cannot enumerate keys, so each service keeps a JSON index of
// its key names under this suffix.
const keysIndexSuffix = "::keys-index"

// KeyringStore implements Store on the OS keyring (Keychain, secret-service
// or the Windows Credential Manager).
type KeyringStore struct{}

var _ Store = (*KeyringStore)(nil)

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkInput(op, service, key string) error {
	if service == "" {
		return pgerr.New(pgerr.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	}
	if key == "" {
		return pgerr.New(pgerr.CodeSecretInvalidInput, "secret "+op+": key must not be empty")
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkInput("store", service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return pgerr.Wrapf(err, pgerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	return s.addToIndex(service, key)
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkInput("retrieve", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", pgerr.Errorf(pgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", pgerr.Wrapf(err, pgerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkInput("delete", service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return pgerr.Errorf(pgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return pgerr.Wrapf(err, pgerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	return s.removeFromIndex(service, key)
}

// List returns key names in sorted order.
func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, pgerr.New(pgerr.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	keys, err := s.loadIndex(service)
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	indexKey := service + keysIndexSuffix
	raw, err := keyring.Get(service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, pgerr.Wrapf(err, pgerr.CodeSecretListFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeSecretListFailure, "decoding key index for service %s", service)
	}

	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	indexKey := service + keysIndexSuffix

	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexKey); delErr != nil {
			slog.Debug("failed to clean up empty key index", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return pgerr.Wrapf(err, pgerr.CodeSecretListFailure, "encoding key index for service %s", service)
	}

	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return pgerr.Wrapf(err, pgerr.CodeSecretListFailure, "saving key index for service %s", service)
	}

	return nil
}

func (s *KeyringStore) addToIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.saveIndex(service, append(keys, key))
}

func (s *KeyringStore) removeFromIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	return s.saveIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}
