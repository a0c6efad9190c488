// Package checkout resolves the hosted payment page a checkout session is
// completed on.
package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dmitrymomot/fundkit/pkg/qrcode"
)

// SessionPlaceholder is replaced with the session id in URL templates.
const SessionPlaceholder = "{CHECKOUT_SESSION_ID}"

var (
	ErrEmptySessionID  = errors.New("checkout: empty session id")
	ErrInvalidTemplate = errors.New("checkout: invalid url template")
	ErrNoCheckoutURL   = errors.New("checkout: provider returned no checkout url")
	ErrProvider        = errors.New("checkout: provider request failed")
)

// Redirector returns the URL the user completes payment on.
type Redirector interface {
	CheckoutURL(ctx context.Context, sessionID string) (string, error)
}

// TemplateRedirector fills SessionPlaceholder in a fixed hosted-page URL.
type TemplateRedirector struct {
	template string
}

func NewTemplateRedirector(template string) (*TemplateRedirector, error) {
	if !strings.Contains(template, SessionPlaceholder) {
		return nil, ErrInvalidTemplate
	}
	u, err := url.Parse(strings.ReplaceAll(template, SessionPlaceholder, "x"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidTemplate
	}
	return &TemplateRedirector{template: template}, nil
}

func (r *TemplateRedirector) CheckoutURL(_ context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrEmptySessionID
	}
	return strings.ReplaceAll(r.template, SessionPlaceholder, url.PathEscape(sessionID)), nil
}

// RenderQR draws checkoutURL as a QR code for a dark terminal.
func RenderQR(checkoutURL string) (string, error) {
	return qrcode.Terminal(checkoutURL, false)
}
