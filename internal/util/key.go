package util

import (
	"fmt"
	"strconv"
	"strings"
)

// OriginalSizeTag marks keys for outputs that were not resized.
const OriginalSizeTag = "orig"

// KeyInput carries everything that determines a storage key.
type KeyInput struct {
	ExplicitKey  string
	Prefix       string
	InputDigest  string
	OutputDigest string
	Size         int // 0 when no resize was requested
	Format       string
}

// StorageKey resolves the object key for an output. An explicit key wins and
// is used verbatim; the prefix only applies to generated names.
func StorageKey(in KeyInput) string {
	if in.ExplicitKey != "" {
		return in.ExplicitKey
	}

	name := ContentKey(in.InputDigest, in.OutputDigest, in.Size, in.Format)
	if prefix := strings.Trim(in.Prefix, "/"); prefix != "" {
		return prefix + "/" + name
	}
	return name
}

// ContentKey builds the content-addressed name
// {input[:32]}_{size|orig}_{output[:8]}.{ext}
func ContentKey(inputDigest, outputDigest string, size int, format string) string {
	sizeTag := OriginalSizeTag
	if size > 0 {
		sizeTag = strconv.Itoa(size)
	}
	return fmt.Sprintf("%s_%s_%s.%s",
		truncate(inputDigest, 32),
		sizeTag,
		truncate(outputDigest, 8),
		CanonicalExtension(format),
	)
}

// KeyFilename returns the last path segment of a key.
func KeyFilename(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
