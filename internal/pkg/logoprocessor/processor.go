package logoprocessor

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Logos are display assets, not originals: anything wider than this gets
// scaled down before serving.
const maxLogoWidth = 512

const webpQuality = 85

// Result names the stored logo variants, relative to the uploads directory.
type Result struct {
	LogoPath     string
	LogoWebpPath string
}

// ProcessLogo loads the uploaded file, scales it down to the display width
// and writes a PNG plus a WebP variant under uploadsDir/logos. The source
// file is left untouched; callers remove their temp file themselves.
func ProcessLogo(sourcePath, uploadsDir, slug string) (*Result, error) {
	img, err := imaging.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening logo image: %w", err)
	}

	if img.Bounds().Dx() > maxLogoWidth {
		img = imaging.Resize(img, maxLogoWidth, 0, imaging.Lanczos)
	}

	logoDir := filepath.Join(uploadsDir, "logos")
	if err := os.MkdirAll(logoDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logo directory: %w", err)
	}

	pngName := slug + ".png"
	if err := imaging.Save(img, filepath.Join(logoDir, pngName)); err != nil {
		return nil, fmt.Errorf("saving PNG logo: %w", err)
	}

	webpName := slug + ".webp"
	if err := saveWebP(img, filepath.Join(logoDir, webpName)); err != nil {
		return nil, fmt.Errorf("saving WebP logo: %w", err)
	}

	return &Result{
		LogoPath:     filepath.ToSlash(filepath.Join("logos", pngName)),
		LogoWebpPath: filepath.ToSlash(filepath.Join("logos", webpName)),
	}, nil
}

// saveWebP saves an image in WebP format.
func saveWebP(img image.Image, outputPath string) error {
	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating WebP file: %w", err)
	}
	defer output.Close()

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality)
	if err != nil {
		return fmt.Errorf("error creating encoder options: %w", err)
	}

	if err := webp.Encode(output, img, options); err != nil {
		return fmt.Errorf("error encoding WebP image: %w", err)
	}

	return nil
}
