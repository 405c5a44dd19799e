package qr

import (
	"bytes"
	"testing"

	apperrors "github.com/adworks/leadbot/internal/errors"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestEncode(t *testing.T) {
	png, err := Encode("https://t.me/adworks_bot?start=42")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("expected non-empty PNG")
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Error("output does not start with PNG magic bytes")
	}
}

func TestEncode_EmptyURL(t *testing.T) {
	_, err := Encode("")
	if err == nil {
		t.Fatal("expected error for empty url")
	}
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
