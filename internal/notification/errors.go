package notification

import (
	"errors"
	"fmt"

	"github.com/dom/nutrition-practice/internal/domain"
)

var (
	// ErrChannelNotImplemented is returned for channels without a working sender
	ErrChannelNotImplemented = errors.New("channel not implemented")
	// ErrRecipientUnknown means the notification's user has no reachable address
	ErrRecipientUnknown = errors.New("recipient unknown")
)

// SendError wraps a transport failure of a channel sender
type SendError struct {
	Channel domain.Channel
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Channel, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// isPermanent reports whether retrying a failed send can never succeed
func isPermanent(err error) bool {
	return errors.Is(err, ErrChannelNotImplemented) ||
		errors.Is(err, ErrRecipientUnknown) ||
		errors.Is(err, ErrSecretUnreadable)
}
