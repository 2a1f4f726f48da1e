// Package vips reads image metadata through libvips.
package vips

import (
	"fmt"

	"github.com/h2non/bimg"
)

// Prober reports output dimensions for the JSON descriptor.
type Prober struct{}

func NewProber() *Prober {
	return &Prober{}
}

// Dimensions returns width and height of an encoded image. Formats libvips
// was built without (often HEIC/AVIF) return an error.
func (p *Prober) Dimensions(data []byte) (int, int, error) {
	size, err := bimg.NewImage(data).Size()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image metadata: %w", err)
	}
	return size.Width, size.Height, nil
}

// Version reports the linked libvips version.
func Version() string {
	return bimg.VipsVersion
}
