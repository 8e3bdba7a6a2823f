package callback

import (
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// Transport retries round trips according to Policy, waiting as Backoff
// says between attempts. Requests with a body are replayed through GetBody.
type Transport struct {
	Base    http.RoundTripper
	Backoff Backoff
	Policy  *Policy
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	for n := uint(0); ; n++ {
		if n > 0 && request.Body != nil && request.Body != http.NoBody {
			if request.GetBody == nil {
				return nil, xerrors.New("request body cannot be replayed")
			}
			body, err := request.GetBody()
			if err != nil {
				return nil, xerrors.Errorf("failed to replay request body: %w", err)
			}
			request = request.Clone(request.Context())
			request.Body = body
		}

		delay, retry := t.backoff().Delay(n)

		response, err := t.base().RoundTrip(request)
		if err != nil {
			if !retry || t.Policy == nil || !t.Policy.RetryError(err) {
				return nil, err
			}
		} else {
			if !retry || t.Policy == nil || !t.Policy.RetryResponse(response) {
				return response, nil
			}
			_, _ = io.Copy(io.Discard, response.Body)
			_ = response.Body.Close()
		}

		timer := time.NewTimer(delay)
		select {
		case <-request.Context().Done():
			timer.Stop()
			return nil, request.Context().Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) backoff() Backoff {
	if t.Backoff != nil {
		return t.Backoff
	}
	return NoRetry()
}
