package adminclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// RequestExecutor sends Calls and performs the single replay allowed after a
// CSRF rejection.
type RequestExecutor struct {
	client *Client
}

func NewRequestExecutor(client *Client) *RequestExecutor {
	return &RequestExecutor{client: client}
}

// Execute sends call. When the backend answers 403 to a call that is not a
// logout and has not been replayed yet, the CSRF cookie is refreshed and the
// call is sent exactly once more; the outcome of that replay is returned as is.
func (re *RequestExecutor) Execute(ctx context.Context, call *Call) (*Response, error) {
	c := re.client
	for {
		c.debugf("%s %s: sending (state=%s)", call.Method, call.Path, call.state)
		resp, err := re.send(ctx, call)
		if err == nil {
			call.state = stateTerminal
			return resp, nil
		}

		if !re.shouldRetry(call, err) {
			call.state = stateTerminal
			return nil, err
		}

		call.state = stateRetried
		c.debugf("%s %s: forbidden, refreshing CSRF token and retrying once", call.Method, call.Path)
		c.RefreshCSRFToken(ctx)
	}
}

func (re *RequestExecutor) shouldRetry(call *Call, err error) bool {
	return call.state == stateInitial &&
		call.Path != pathLogout &&
		IsForbidden(err)
}

func (re *RequestExecutor) send(ctx context.Context, call *Call) (*Response, error) {
	r := re.client.http.R().SetContext(ctx)
	for k, v := range call.Headers {
		r.SetHeader(k, v)
	}
	if call.Body != nil {
		r.SetBody(call.Body)
	}

	resp, err := r.Execute(call.Method, call.Path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", call.Method, call.Path, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &HTTPError{
			Method:     call.Method,
			Path:       call.Path,
			StatusCode: resp.StatusCode(),
			Body:       resp.Body(),
		}
	}

	headers := make(map[string]string, len(resp.Header()))
	for k, vals := range resp.Header() {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Headers:    headers,
		Data:       resp.Body(),
	}, nil
}

func (c *Client) do(ctx context.Context, call *Call) (*Response, error) {
	return c.executor.Execute(ctx, call)
}
