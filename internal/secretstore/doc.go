// Package secretstore provides storage abstractions for the password used to
// obtain API credentials.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Env: Read-only environment variable access (requires external secret management)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// Only file and keyring storage can be written by the login command.
package secretstore
