package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os/exec"
	"strings"

	"budget/internal/receipt"
)

// ErrDisabled is returned by Unavailable.
var ErrDisabled = errors.New("text recognition is disabled")

// ErrUnsupportedImage is returned for bytes that are not a PNG or JPEG image.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Tesseract recognizes text by running the tesseract CLI with the image
// on stdin and the text on stdout.
type Tesseract struct {
	command   string
	languages string
}

func NewTesseract(command, languages string) *Tesseract {
	if command == "" {
		command = "tesseract"
	}
	if languages == "" {
		languages = "fra+eng"
	}
	return &Tesseract{command: command, languages: languages}
}

func (t *Tesseract) Recognize(ctx context.Context, img []byte) (string, error) {
	if err := ValidateImage(img); err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.command, "stdin", "stdout", "-l", t.languages)
	cmd.Stdin = bytes.NewReader(img)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("run %s: %w: %s", t.command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// ValidateImage checks that img decodes as a PNG or JPEG image.
func ValidateImage(img []byte) error {
	if len(img) == 0 {
		return receipt.ErrEmptyImage
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return nil
}

// Unavailable is the recognizer used when OCR is turned off.
type Unavailable struct{}

func (Unavailable) Recognize(context.Context, []byte) (string, error) {
	return "", ErrDisabled
}

var (
	_ receipt.Recognizer = (*Tesseract)(nil)
	_ receipt.Recognizer = Unavailable{}
)
