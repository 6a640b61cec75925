package qrscan

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

var errNoCode = errors.New("no qr code in image")

var decodeHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// Decode returns the text of the QR code found in img.
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("qrscan: binarize: %w", err)
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, decodeHints)
	if err != nil {
		return "", fmt.Errorf("qrscan: %w: %v", errNoCode, err)
	}
	return res.GetText(), nil
}

// Encode renders payload as a square QR code of size pixels, the way the
// receive page shares an account as "<account>" or "<account>|<amount>".
func Encode(payload string, size int) (image.Image, error) {
	if size <= 0 {
		size = 192
	}
	m, err := qrcode.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, fmt.Errorf("qrscan: encode: %w", err)
	}
	return m, nil
}

// Payload builds the text Encode expects for an account and optional amount.
func Payload(account, amount string) string {
	if amount == "" {
		return account
	}
	return account + "|" + amount
}
