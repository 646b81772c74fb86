// Package avatar generates placeholder profile images and sniffs the
// binary formats the photo column may hold.
package avatar

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// palette for the deterministic background circle.
var palette = []string{
	"#1abc9c", "#2ecc71", "#3498db", "#9b59b6", "#34495e",
	"#16a085", "#27ae60", "#2980b9", "#8e44ad", "#2c3e50",
	"#f39c12", "#e67e22", "#e74c3c", "#d35400", "#c0392b",
}

// Generate renders a deterministic initials-on-circle SVG for accounts
// registered without a photo. The same name always yields the same
// bytes.
func Generate(name string) []byte {
	initials := Initials(name)

	h := fnv.New32a()
	h.Write([]byte(name))
	fill := palette[h.Sum32()%uint32(len(palette))]

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="128" height="128" viewBox="0 0 128 128">`+
		`<circle cx="64" cy="64" r="64" fill="%s"/>`+
		`<text x="64" y="64" dy="0.35em" text-anchor="middle" font-family="Arial, sans-serif" font-size="48" fill="#ffffff">%s</text>`+
		`</svg>`, fill, initials)

	return []byte(svg)
}

// Initials extracts up to two uppercase initials from a display name.
func Initials(name string) string {
	var b strings.Builder
	count := 0
	for _, part := range strings.Fields(name) {
		for _, r := range part {
			b.WriteString(strings.ToUpper(string(r)))
			count++
			break
		}
		if count >= 2 {
			break
		}
	}
	if count == 0 {
		return "?"
	}
	return b.String()
}
