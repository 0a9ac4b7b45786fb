// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package secrets

import (
	stderrors "errors"
	"slices"
	"strings"

	"github.com/spf13/viper"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
// The key may itself contain slashes.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", pgerr.Errorf(pgerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", pgerr.Errorf(pgerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return service, key, nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value.
// Any other value is returned unchanged.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", pgerr.Wrapf(err, pgerr.CodeSecretResolveFailure, "resolving keyring URI %q", value)
	}

	return secret, nil
}

// ResolveViperSecrets replaces every keyring:// string value held by v
// with the secret it names. It runs after the config is read and before
// it is decoded. Every unresolved key is reported; keys that did resolve
// are still replaced.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	keys := v.AllKeys()
	slices.Sort(keys)

	var errs []error
	for _, key := range keys {
		val, ok := v.Get(key).(string)
		if !ok || !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			errs = append(errs, pgerr.Wrapf(err, pgerr.CodeSecretResolveFailure, "config key %s (%s)", key, val))
			continue
		}
		v.Set(key, resolved)
	}

	if len(errs) == 0 {
		return nil
	}
	return pgerr.Wrap(stderrors.Join(errs...), pgerr.CodeSecretResolveFailure, "resolving config secrets")
}
