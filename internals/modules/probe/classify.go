package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"

	"healthmon/internals/domain"
)

func classifyError(err error) domain.ErrorClass {

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return domain.ErrTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return domain.ErrTimeout
		}
		return domain.ErrDNSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return domain.ErrConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrTimeout
	}

	// TLS failures, resets, malformed responses
	return domain.ErrProtocol
}
