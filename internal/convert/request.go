package convert

import (
	"crypto/subtle"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pixload/darkroom/internal/imageproc"
	"github.com/pixload/darkroom/internal/util"
)

// Defaults for optional form fields.
const (
	DefaultFormat         = "jpg"
	DefaultQuality        = 80
	DefaultOverlayScale   = 15
	DefaultOverlayOpacity = 100
)

// Form holds the raw string fields of a conversion request.
type Form struct {
	Token           string
	SourceURL       string
	Format          string
	Quality         string
	Size            string
	Square          string
	StripEXIF       string
	OverlayURL      string
	OverlayScale    string
	OverlaySafeZone string
	OverlayOpacity  string
	UploadS3        string
	KeyName         string
	KeyPrefix       string
	ReturnBinary    string
	AVIFSpeed       string
}

// Request is a validated conversion request.
type Request struct {
	// Upload is the uploaded file; nil when SourceURL is used.
	Upload    io.Reader
	SourceURL string

	Format    string
	Quality   int
	Size      int // 0 keeps the original size
	Square    bool
	StripEXIF bool

	OverlayURL string
	Overlay    imageproc.OverlayOptions

	UploadToStorage bool
	KeyName         string
	KeyPrefix       string
	ReturnBinary    bool

	AVIFSpeed int
}

// Validator turns forms into requests.
type Validator struct {
	token string
}

func NewValidator(token string) *Validator {
	return &Validator{token: token}
}

// Validate checks the token before anything else so an unauthenticated
// caller never causes a fetch or a scratch directory.
func (v *Validator) Validate(f Form, upload io.Reader) (*Request, error) {
	if v.token == "" || subtle.ConstantTimeCompare([]byte(f.Token), []byte(v.token)) != 1 {
		return nil, newError(KindUnauthorized, "validate", "Unauthorized", nil)
	}

	hasURL := strings.TrimSpace(f.SourceURL) != ""
	switch {
	case upload == nil && !hasURL:
		return nil, invalid("validate", "Provide 'file' or 'src_url'")
	case upload != nil && hasURL:
		return nil, invalid("validate", "Provide only one of 'file' or 'src_url'")
	}

	format := strings.TrimSpace(f.Format)
	if format == "" {
		format = DefaultFormat
	}
	if !util.IsSupportedFormat(format) {
		return nil, newError(KindUnsupportedFormat, "validate",
			fmt.Sprintf("Format unsupported: %s", format), nil)
	}

	p := &fieldParser{}
	req := &Request{
		Upload:          upload,
		SourceURL:       strings.TrimSpace(f.SourceURL),
		Format:          format,
		Quality:         p.intField("q", f.Quality, DefaultQuality),
		Size:            p.intField("size", f.Size, 0),
		Square:          p.boolField("square", f.Square, false),
		StripEXIF:       p.boolField("strip_exif", f.StripEXIF, false),
		OverlayURL:      strings.TrimSpace(f.OverlayURL),
		UploadToStorage: p.boolField("upload_s3", f.UploadS3, false),
		KeyName:         strings.TrimSpace(f.KeyName),
		KeyPrefix:       strings.TrimSpace(f.KeyPrefix),
		ReturnBinary:    p.boolField("return_binary", f.ReturnBinary, false),
		AVIFSpeed:       p.intField("avif_speed", f.AVIFSpeed, imageproc.DefaultAVIFSpeed),
		Overlay: imageproc.OverlayOptions{
			ScalePercent:   p.intField("overlay_scale", f.OverlayScale, DefaultOverlayScale),
			SafeZone:       p.boolField("overlay_safe_zone", f.OverlaySafeZone, true),
			OpacityPercent: p.intField("overlay_opacity", f.OverlayOpacity, DefaultOverlayOpacity),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	switch {
	case req.Quality < 1 || req.Quality > 100:
		return nil, invalid("validate", "'q' must be between 1 and 100")
	case strings.TrimSpace(f.Size) != "" && req.Size <= 0:
		return nil, invalid("validate", "'size' must be a positive integer")
	case req.Overlay.ScalePercent < 0:
		return nil, invalid("validate", "'overlay_scale' must not be negative")
	case req.Overlay.OpacityPercent < 0:
		return nil, invalid("validate", "'overlay_opacity' must not be negative")
	case req.AVIFSpeed < 0 || req.AVIFSpeed > 9:
		return nil, invalid("validate", "'avif_speed' must be between 0 and 9")
	}

	if hasURL {
		if err := util.ValidateFetchURL(req.SourceURL); err != nil {
			return nil, invalid("validate", fmt.Sprintf("Invalid 'src_url': %v", err))
		}
	}
	if req.OverlayURL != "" {
		if err := util.ValidateFetchURL(req.OverlayURL); err != nil {
			return nil, invalid("validate", fmt.Sprintf("Invalid 'overlay_url': %v", err))
		}
	}

	return req, nil
}

// fieldParser keeps the first parse error so fields can be read in one pass.
type fieldParser struct {
	err error
}

func (p *fieldParser) intField(name, raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" || p.err != nil {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = invalid("validate", fmt.Sprintf("'%s' must be an integer", name))
		return def
	}
	return v
}

func (p *fieldParser) boolField(name, raw string, def bool) bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || p.err != nil {
		return def
	}
	switch raw {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.err = invalid("validate", fmt.Sprintf("'%s' must be a boolean", name))
		return def
	}
	return v
}
