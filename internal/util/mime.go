package util

import (
	"mime"
	"sort"
	"strings"
)

// outputMIMETypes is the strict set of output formats the engine is asked to
// produce. Anything outside it is rejected before a plan is built.
var outputMIMETypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"avif": "image/avif",
	"heic": "image/heic",
}

// MIMEForFormat returns the MIME type for an output format
func MIMEForFormat(format string) (string, bool) {
	contentType, ok := outputMIMETypes[format]
	return contentType, ok
}

// IsSupportedFormat reports whether format is a known output format
func IsSupportedFormat(format string) bool {
	_, ok := outputMIMETypes[format]
	return ok
}

// SupportedFormats lists output formats in a stable order
func SupportedFormats() []string {
	formats := make([]string, 0, len(outputMIMETypes))
	for format := range outputMIMETypes {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// CanonicalExtension folds format aliases into the extension used for keys.
func CanonicalExtension(format string) string {
	return strings.ReplaceAll(format, "jpeg", "jpg")
}

// ContentDisposition builds an attachment header value for filename
func ContentDisposition(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
