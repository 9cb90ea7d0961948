package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrAuthenticationFailed is returned when the user fails the local
// strong-authentication challenge.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Authenticator is the local strong-auth provider (device biometric or
// equivalent).
type Authenticator interface {
	// Available reports whether authentication hardware is present.
	Available() bool
	// Enrolled reports whether the user has enrolled with the hardware.
	Enrolled() bool
	// Authenticate runs the challenge and returns nil on success.
	Authenticate(ctx context.Context, reason string) error
}

// Require runs the strong-auth check with the policy the flow depends on:
// absent or un-enrolled hardware skips the check rather than blocking,
// while a failed challenge on working hardware blocks.
func Require(ctx context.Context, a Authenticator, reason string) error {
	log := logrus.WithField("component", "auth")

	if a == nil || !a.Available() {
		log.Info("no authentication hardware, skipping check")
		return nil
	}
	if !a.Enrolled() {
		log.Info("authentication hardware present but not enrolled, skipping check")
		return nil
	}

	if err := a.Authenticate(ctx, reason); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return nil
}

// None is an Authenticator for environments without any local auth
// hardware. Require treats it as a skip.
type None struct{}

func (None) Available() bool { return false }

func (None) Enrolled() bool { return false }

func (None) Authenticate(context.Context, string) error { return nil }
