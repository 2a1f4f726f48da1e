package imageproc

import (
	"fmt"
	"strconv"
)

const (
	DefaultAVIFSpeed = 6
	webpMethod       = 6
)

// EncoderOptions are the caller-tunable encoder settings.
type EncoderOptions struct {
	Quality   int
	AVIFSpeed int
}

// EncoderDirectives maps an output format to engine arguments. Formats are
// validated before a plan is built, so an unknown format here is a bug.
func EncoderDirectives(format string, opts EncoderOptions) ([]string, error) {
	quality := strconv.Itoa(opts.Quality)

	switch format {
	case "jpg", "jpeg":
		return []string{"-quality", quality, "-interlace", "Plane"}, nil
	case "avif":
		return []string{"-quality", quality, "-define", fmt.Sprintf("heic:speed=%d", opts.AVIFSpeed)}, nil
	case "webp":
		return []string{"-quality", quality, "-define", fmt.Sprintf("webp:method=%d", webpMethod)}, nil
	case "png", "heic":
		return nil, nil
	default:
		return nil, fmt.Errorf("no encoder directives for format %q", format)
	}
}
