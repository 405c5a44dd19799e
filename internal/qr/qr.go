// Package qr renders referral deep links as QR code images.
package qr

import (
	qrcode "github.com/skip2/go-qrcode"

	apperrors "github.com/adworks/leadbot/internal/errors"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 512

// Encode renders the given URL as a PNG QR code.
func Encode(url string) ([]byte, error) {
	if url == "" {
		return nil, apperrors.MissingField("url")
	}
	png, err := qrcode.Encode(url, qrcode.Medium, DefaultSize)
	if err != nil {
		return nil, apperrors.InternalError("qr.Encode", err)
	}
	return png, nil
}
