package inference

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

var dataURIPattern = regexp.MustCompile(`^data:([\w.+-]+/[\w.+-]+);base64,(.+)$`)

// SplitDataURI decomposes data:<mime>;base64,<payload> into its MIME type and
// base64 payload.
func SplitDataURI(uri string) (mimeType, payload string, err error) {
	matches := dataURIPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if len(matches) != 3 {
		return "", "", fmt.Errorf("invalid image data uri: expected data:<mime>;base64,<payload>")
	}
	mimeType = strings.ToLower(matches[1])
	if !strings.HasPrefix(mimeType, "image/") {
		return "", "", fmt.Errorf("invalid image data uri: %s is not an image type", mimeType)
	}
	return mimeType, matches[2], nil
}

// EncodeDataURI is the inverse of SplitDataURI for raw image bytes.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
