package logoprocessor

import (
	"strings"
	"testing"
)

var pngHead = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestValidateLogoBySniffAcceptsPNG(t *testing.T) {
	t.Parallel()

	mime, err := ValidateLogoBySniff("logo.png", pngHead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("expected image/png, got %q", mime)
	}
}

func TestValidateLogoBySniffRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	if _, err := ValidateLogoBySniff("logo.svg", pngHead); err == nil {
		t.Fatalf("expected svg extension to be rejected")
	}
	if _, err := ValidateLogoBySniff("logo.exe", pngHead); err == nil {
		t.Fatalf("expected exe extension to be rejected")
	}
}

func TestValidateLogoBySniffRejectsScriptableContent(t *testing.T) {
	t.Parallel()

	html := []byte("<!DOCTYPE html><html><body>hi</body></html>")
	if _, err := ValidateLogoBySniff("logo.png", html); err == nil {
		t.Fatalf("expected HTML content behind an image extension to be rejected")
	}

	svg := []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	if _, err := ValidateLogoBySniff("logo.png", svg); err == nil {
		t.Fatalf("expected XML content behind an image extension to be rejected")
	}
}

func TestValidateLogoBySniffRejectsMismatchedContent(t *testing.T) {
	t.Parallel()

	if _, err := ValidateLogoBySniff("logo.png", []byte(strings.Repeat("a", 32))); err == nil {
		t.Fatalf("expected plain text behind an image extension to be rejected")
	}
}
