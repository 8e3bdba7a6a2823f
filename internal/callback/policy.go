package callback

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Policy decides which failed deliveries are worth another attempt. The
// conditions follow Envoy's retry_on names.
type Policy struct {
	serverError    bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	statusCodes    []int
}

// DefaultPolicy retries gateway errors, 409 and connection failures.
func DefaultPolicy() *Policy {
	return &Policy{
		gatewayError:   true,
		connectFailure: true,
		retriable4xx:   true,
	}
}

// ParsePolicy reads a comma separated list of "5xx", "gateway-error",
// "connect-failure", "retriable-4xx" and plain status codes.
func ParsePolicy(s string) (*Policy, error) {
	p := &Policy{}
	for _, condition := range strings.Split(s, ",") {
		switch strings.TrimSpace(condition) {
		case "5xx":
			p.serverError = true
		case "gateway-error":
			p.gatewayError = true
		case "connect-failure":
			p.connectFailure = true
		case "retriable-4xx":
			p.retriable4xx = true
		default:
			statusCode, err := strconv.Atoi(strings.TrimSpace(condition))
			if err != nil {
				return nil, xerrors.Errorf("invalid retry condition: %s", condition)
			}
			p.statusCodes = append(p.statusCodes, statusCode)
		}
	}
	return p, nil
}

// https://github.com/envoyproxy/envoy/blob/70d6ec1df6384118cf2fa2f02c0041edb76b2377/source/common/router/retry_state_impl.cc#L387
func (p *Policy) RetryResponse(response *http.Response) bool {
	if (p.serverError && response.StatusCode >= 500 && response.StatusCode < 600) ||
		(p.gatewayError && response.StatusCode >= 502 && response.StatusCode < 505) ||
		(p.retriable4xx && response.StatusCode == http.StatusConflict) {
		return true
	}

	for _, statusCode := range p.statusCodes {
		if statusCode == response.StatusCode {
			return true
		}
	}

	return false
}

func (p *Policy) RetryError(err error) bool {
	type temporary interface{ Temporary() bool }
	var terr temporary
	if (errors.As(err, &terr) && terr.Temporary()) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return p.connectFailure || p.serverError
	}
	return false
}
