package adminclient

import (
	"context"
	"fmt"
	"net/http"
)

const (
	pathCSRFToken     = "/api/csrf-token/"
	pathLogin         = "/api/admin/login/"
	pathLogout        = "/api/admin/logout/"
	pathCheckAuth     = "/api/admin/check/"
	pathRegistrations = "/api/registrations/"
)

func registrationPath(id int) string {
	return fmt.Sprintf("%s%d/", pathRegistrations, id)
}

func verifyPath(id int) string {
	return fmt.Sprintf("%s%d/verify/", pathRegistrations, id)
}

// Login starts an admin session. The backend sets the session cookie.
func (c *Client) Login(ctx context.Context, email, password string) (*Response, error) {
	return c.do(ctx, &Call{
		Method: http.MethodPost,
		Path:   pathLogin,
		Body:   LoginRequest{Email: email, Password: password},
	})
}

// Logout ends the admin session. A CSRF cookie is fetched first when none is
// present. Logout is never replayed, even on 403.
func (c *Client) Logout(ctx context.Context) (*Response, error) {
	if _, ok := c.csrfToken(); !ok {
		c.debugf("no CSRF token before logout, fetching one")
		c.RefreshCSRFToken(ctx)
	}

	resp, err := c.do(ctx, &Call{Method: http.MethodPost, Path: pathLogout})
	if err != nil {
		if IsForbidden(err) {
			c.logger.Errorw("logout rejected with 403, CSRF token missing or invalid", "error", err)
		}
		return nil, err
	}
	return resp, nil
}

// CheckAuth reports the current session as seen by the backend.
func (c *Client) CheckAuth(ctx context.Context) (*Response, error) {
	return c.do(ctx, &Call{Method: http.MethodGet, Path: pathCheckAuth})
}

// GetRegistrations lists all registrations.
func (c *Client) GetRegistrations(ctx context.Context) (*Response, error) {
	return c.do(ctx, &Call{Method: http.MethodGet, Path: pathRegistrations})
}

// GetRegistration fetches one registration.
func (c *Client) GetRegistration(ctx context.Context, id int) (*Response, error) {
	return c.do(ctx, &Call{Method: http.MethodGet, Path: registrationPath(id)})
}

// VerifyPayment sets the payment flag of a registration. Notes are omitted
// from the body when nil.
func (c *Client) VerifyPayment(ctx context.Context, id int, paymentVerified bool, notes *string) (*Response, error) {
	return c.do(ctx, &Call{
		Method: http.MethodPatch,
		Path:   verifyPath(id),
		Body:   VerifyPaymentRequest{PaymentVerified: paymentVerified, Notes: notes},
	})
}

// DeleteRegistration removes a registration.
func (c *Client) DeleteRegistration(ctx context.Context, id int) (*Response, error) {
	return c.do(ctx, &Call{Method: http.MethodDelete, Path: registrationPath(id)})
}
