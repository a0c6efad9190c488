package backer

import (
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/handler"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/pkg/qrcode"
	"github.com/dmitrymomot/fundkit/svc/donation"
)

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// donate starts a hosted checkout. Browsers get a 303 to the payment page;
// clients that accept JSON get the handoff with a QR code of the same URL.
func (s *service) donate(ctx handler.Context, req amountRequest) handler.Response {
	intent := donation.NewIntent(chi.URLParam(ctx.Request(), "id"), req.Amount)
	h, err := s.donations.Initiate(ctx, intent)
	if err != nil {
		return s.fail(ctx, err)
	}
	if !acceptsJSON(ctx.Request()) {
		return handler.Redirect(h.RedirectURL)
	}

	qr, err := qrcode.DataURI(h.RedirectURL, s.qrSize)
	if err != nil {
		s.log.WarnContext(ctx, "failed to render checkout qr code", logger.Error(err))
	}
	return handler.JSON(handoffView{
		SessionID:   h.Session.ID,
		RedirectURL: h.RedirectURL,
		Status:      h.Session.Status.String(),
		QRCode:      qr,
	})
}

func (s *service) addDonation(ctx handler.Context, req amountRequest) handler.Response {
	p, err := s.donations.AddDonation(ctx, chi.URLParam(ctx.Request(), "id"), req.Amount)
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(newProjectView(p, s.now()))
}

// success is where the payment processor sends the user back.
func (s *service) success(ctx handler.Context, _ struct{}) handler.Response {
	rc, err := donation.ParseReturnContext(ctx.Request().URL.Query())
	if err != nil {
		return s.fail(ctx, err)
	}
	res, err := s.donations.Reconcile(ctx, rc)
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(newReconcileView(res, s.now()))
}

func (s *service) cancel(_ handler.Context, _ struct{}) handler.Response {
	return handler.JSON(map[string]string{
		"status":  "cancelled",
		"message": "Your payment was cancelled. You can try again anytime.",
	})
}

func acceptsJSON(r *http.Request) bool {
	for part := range strings.SplitSeq(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}
