package checkout

import (
	"context"

	pkgerrors "github.com/laglue/storefront/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRCode renders the WhatsApp link of a logged order as a PNG so the
// order can be re-sent from another phone.
func (s *service) QRCode(ctx context.Context, code string) ([]byte, error) {
	order, err := s.FindOrder(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.renderQRCode(*order)
}

// CustomerQRCode is QRCode for the shopper who placed the order. Orders
// placed under another number read as not found.
func (s *service) CustomerQRCode(ctx context.Context, code, phone string) ([]byte, error) {
	order, err := s.FindOrder(ctx, code)
	if err != nil {
		return nil, err
	}
	if phone == "" || order.Customer.WhatsApp != phone {
		return nil, orderNotFound(code)
	}
	return s.renderQRCode(*order)
}

func (s *service) renderQRCode(order Order) ([]byte, error) {
	message := ComposeMessage(order, MessageStyle{
		StoreName: s.cfg.Name,
		Tagline:   s.cfg.Tagline,
		Currency:  s.cfg.Currency,
	})
	png, err := qrcode.Encode(WhatsAppURL(s.cfg.WhatsAppNumber, message), qrcode.Medium, qrSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode qr code")
	}
	return png, nil
}
