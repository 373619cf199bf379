package ingest

import (
	"bytes"
	"image"
	"slices"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/evanoberholster/imagemeta"
	_ "golang.org/x/image/webp"

	"phototag/internal/textutil"
)

// allowedExtensions lists the accepted upload extensions.
var allowedExtensions = []string{"png", "jpg", "jpeg", "webp"}

// dateLayout is the calendar-date form used for capture dates and library folders.
const dateLayout = "2006-01-02"

// AllowedExtension reports whether filename carries an accepted extension.
func AllowedExtension(filename string) bool {
	return slices.Contains(allowedExtensions, textutil.Extension(filename))
}

// Validate checks the extension and that data decodes as an image header.
// It returns the detected image format ("jpeg", "png" or "webp").
func Validate(filename string, data []byte) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", invalidFormat("no file selected", nil)
	}
	if !AllowedExtension(filename) {
		return "", invalidFormat("file type not allowed", nil)
	}
	if len(data) == 0 {
		return "", invalidFormat("empty upload", nil)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", invalidFormat("not a decodable image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", invalidFormat("image has no pixels", nil)
	}
	return format, nil
}

// ParseCaptureDate validates an explicit YYYY-MM-DD capture date.
func ParseCaptureDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return "", invalidFormat("capture date must be YYYY-MM-DD", err)
	}
	return parsed.Format(dateLayout), nil
}

// CaptureDate reads the EXIF capture time, preferring DateTimeOriginal,
// then CreateDate, then ModifyDate. ok is false when none is present or
// the metadata cannot be parsed.
func CaptureDate(data []byte) (taken time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			taken, ok = time.Time{}, false
		}
	}()
	exif, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return time.Time{}, false
	}
	for _, candidate := range []time.Time{exif.DateTimeOriginal(), exif.CreateDate(), exif.ModifyDate()} {
		if !candidate.IsZero() && candidate.Year() > 1 {
			return candidate, true
		}
	}
	return time.Time{}, false
}
