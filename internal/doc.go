// Package internal holds helpers shared by the onboarding engine that
// are not part of its public API: challenge identifier generation and
// email obfuscation.
package internal
