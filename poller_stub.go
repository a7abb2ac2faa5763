//go:build !linux

package pioline

import "github.com/pkg/errors"

// Interrupt watching rides on epoll, which only exists on Linux. The rest of
// the package works on plain file I/O and stays portable.
func sharedNotifier() (notifier, error) {
	return nil, errors.Wrap(ErrResource, "interrupt watching requires Linux")
}
