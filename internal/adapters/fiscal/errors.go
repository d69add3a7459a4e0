package fiscal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
)

// Normalized error messages reported in FiscalResult.Error
const (
	MsgNotInitialized = "fiscal printer not initialized"
	MsgUnreachable    = "fiscal printer is offline or unreachable"
)

// ConfigError reports an unusable fiscal configuration
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid fiscal config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid fiscal config: %s %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is a fiscal configuration error
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// normalizeError maps a transport failure to an operator-facing message
func normalizeError(err error) string {
	if err == nil {
		return ""
	}

	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("HTTP %d", httpErr.StatusCode)
	}

	if isUnreachable(err) {
		return MsgUnreachable
	}

	var reqErr *backend.RequestError
	if errors.As(err, &reqErr) && reqErr.Err != nil {
		return reqErr.Err.Error()
	}

	return err.Error()
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
