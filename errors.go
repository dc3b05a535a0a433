package sqlrecall

import "errors"

// ErrChatNotConfigured is returned by Ask when no chat backend is available.
var ErrChatNotConfigured = errors.New("chat backend not configured")
