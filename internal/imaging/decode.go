// Package imaging decodes client-supplied image payloads into pixel matrices.
package imaging

import (
	"encoding/base64"
	"errors"
	"strings"

	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned when image bytes cannot be decoded.
var ErrInvalidImage = errors.New("invalid image data")

// Decode converts encoded image bytes (JPEG, PNG, ...) into a color Mat.
// The caller owns the returned Mat and must Close it.
func Decode(data []byte) (*gocv.Mat, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, ErrInvalidImage
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrInvalidImage
	}

	return &mat, nil
}

// DecodeBase64 decodes a base64 image string, with or without a data
// URI prefix ("data:image/jpeg;base64,..."), into raw image bytes.
func DecodeBase64(s string) ([]byte, error) {
	// Strip data URI prefix if present
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		s = s[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidImage
	}
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	return data, nil
}
