package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageSize is the upload limit for banners and profile pictures (5MB).
	MaxImageSize = 5 * 1024 * 1024
	// MaxImageDimension bounds the longest edge of stored images.
	MaxImageDimension = 1600
)

var (
	ErrUnsupportedImage = errors.New("only image files are allowed")
	ErrImageTooLarge    = errors.New("image exceeds 5MB")
)

// Allowed image MIME types and extensions.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
	AllowedImageExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
	}
)

// ValidateImageType returns true if the content type or extension is an accepted image.
func ValidateImageType(contentType, filename string) bool {
	if contentType != "" {
		if _, ok := AllowedImageTypes[strings.ToLower(contentType)]; ok {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(filename))
	if ext != "" {
		if _, ok := AllowedImageExtensions[ext]; ok {
			return true
		}
	}
	return false
}

// NormalizeImage decodes r, applies EXIF orientation, shrinks it to fit maxDim and re-encodes.
// PNG input stays PNG to keep transparency; everything else becomes JPEG.
func NormalizeImage(r io.Reader, maxDim int) (data []byte, contentType, ext string, err error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("read image: %w", err)
	}
	if len(raw) > MaxImageSize {
		return nil, "", "", ErrImageTooLarge
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", ErrUnsupportedImage
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", "", ErrUnsupportedImage
	}
	b := img.Bounds()
	if b.Dx() > maxDim || b.Dy() > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if format == "png" {
		err = imaging.Encode(&buf, img, imaging.PNG)
		contentType, ext = "image/png", ".png"
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85))
		contentType, ext = "image/jpeg", ".jpg"
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), contentType, ext, nil
}
