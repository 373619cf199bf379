package testsupport

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// JPEGBytes encodes a small solid-colour JPEG image.
func JPEGBytes(t testing.TB) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sampleImage(), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// PNGBytes encodes a small solid-colour PNG image.
func PNGBytes(t testing.TB) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, sampleImage()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEGWithDateTimeOriginal returns a sample JPEG carrying an EXIF APP1
// segment whose only date is DateTimeOriginal.
func JPEGWithDateTimeOriginal(t testing.TB, taken time.Time) []byte {
	t.Helper()
	base := JPEGBytes(t)

	le := binary.LittleEndian
	tiff := make([]byte, 0, 64)
	tiff = append(tiff, 'I', 'I')
	tiff = le.AppendUint16(tiff, 42)
	tiff = le.AppendUint32(tiff, 8)
	// IFD0: one entry pointing at the Exif sub-IFD.
	tiff = le.AppendUint16(tiff, 1)
	tiff = le.AppendUint16(tiff, 0x8769)
	tiff = le.AppendUint16(tiff, 4)
	tiff = le.AppendUint32(tiff, 1)
	tiff = le.AppendUint32(tiff, 26)
	tiff = le.AppendUint32(tiff, 0)
	// Exif IFD: DateTimeOriginal as a 20 byte ASCII value.
	tiff = le.AppendUint16(tiff, 1)
	tiff = le.AppendUint16(tiff, 0x9003)
	tiff = le.AppendUint16(tiff, 2)
	tiff = le.AppendUint32(tiff, 20)
	tiff = le.AppendUint32(tiff, 44)
	tiff = le.AppendUint32(tiff, 0)
	tiff = append(tiff, taken.Format("2006:01:02 15:04:05")...)
	tiff = append(tiff, 0)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	out := make([]byte, 0, len(base)+len(payload)+4)
	out = append(out, 0xFF, 0xD8, 0xFF, 0xE1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	out = append(out, base[2:]...)
	return out
}

// WriteJPEG writes a sample JPEG to path, creating parent directories.
func WriteJPEG(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, JPEGBytes(t), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	return img
}
