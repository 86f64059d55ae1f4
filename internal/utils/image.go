package utils

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DetectImageMIMEType detects the MIME type of an image based on magic bytes
func DetectImageMIMEType(data []byte) string {
	if len(data) < 8 {
		return "image/jpeg"
	}

	switch {
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38:
		return "image/gif"
	case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		len(data) > 11 && data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50:
		return "image/webp"
	case data[0] == 0x42 && data[1] == 0x4D:
		return "image/bmp"
	}

	// camera uploads are overwhelmingly JPEG
	return "image/jpeg"
}

func ImageExtension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	default:
		return "jpg"
	}
}

// DecodeImageBase64 accepts plain base64 or a data URL. The MIME type comes from
// the data URL header when present, otherwise it is left empty.
func DecodeImageBase64(encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	mimeType := ""
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("unsupported data URL")
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, mimeType, nil
}
