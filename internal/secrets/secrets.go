// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package secrets keeps provider keys and the graph password out of the
// config file. Values are stored in the OS keyring and referenced from
// config as keyring://service/key.
package secrets

// Service is the keyring service pitchgraph stores its own secrets under.
const Service = "pitchgraph"

// Store provides secure secret storage operations.
type Store interface {
	Store(service, key, value string) error
	// Retrieve returns a CodeSecretNotFound error if the key does not exist.
	Retrieve(service, key string) (string, error)
	// Delete returns a CodeSecretNotFound error if the key does not exist.
	Delete(service, key string) error
	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

// ProviderKeyName is the keyring key holding a provider's API key.
func ProviderKeyName(provider string) string {
	return provider + "-api-key"
}

// GraphPasswordKey is the keyring key holding the graph password.
const GraphPasswordKey = "graph-password"

// URI builds the keyring:// reference written into the config file.
func URI(service, key string) string {
	return keyringScheme + service + "/" + key
}
