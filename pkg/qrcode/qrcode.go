package qrcode

import (
	"encoding/base64"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

// DefaultSize is the rendered PNG edge length in pixels.
const DefaultSize = 256

// RenderPNG encodes the payload into a QR code PNG.
func RenderPNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr payload must not be empty")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qr.Encode(payload, qr.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// RenderDataURI renders the payload as an inline image data URI suitable
// for embedding in notification bodies.
func RenderDataURI(payload string, size int) (string, error) {
	png, err := RenderPNG(payload, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
