package avatar

import (
	"bytes"
)

// Format is the sniffed image format of a photo blob.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatGIF
	FormatSVG
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	gif87     = []byte("GIF87a")
	gif89     = []byte("GIF89a")
)

// Sniff detects the photo format by magic bytes (JPEG/PNG/GIF) or XML
// prefix (SVG). Shared by avatar generation and photo upload
// validation so both agree on what counts as an image.
func Sniff(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG
	case bytes.HasPrefix(data, gif87), bytes.HasPrefix(data, gif89):
		return FormatGIF
	case looksLikeSVG(data):
		return FormatSVG
	default:
		return FormatUnknown
	}
}

func looksLikeSVG(data []byte) bool {
	head := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(head, []byte("<?xml")) {
		// skip the declaration and whatever whitespace follows
		if i := bytes.IndexByte(head, '>'); i >= 0 {
			head = bytes.TrimLeft(head[i+1:], " \t\r\n")
		}
	}
	return bytes.HasPrefix(head, []byte("<svg"))
}
