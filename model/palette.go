// Package model contains the domain models of the topicscope client: topic
// sessions and their log entries, the color palette, and the shapes that are
// persisted between runs.
package model

// tablePrefix is the default prefix of every table backing a persisted model.
const tablePrefix = "topicscope_"

// Color is a palette entry used to tell topic sessions apart.
type Color struct {
	Name  string `json:"name" yaml:"name"`   // Human-readable name
	Value string `json:"value" yaml:"value"` // Foreground color (#rrggbb)
	Bg    string `json:"bg" yaml:"bg"`       // Translucent background (rgba)
}

// Palette is the fixed rotation of session colors.
var Palette = []Color{
	{Name: "blue", Value: "#3b82f6", Bg: "rgba(59, 130, 246, 0.1)"},
	{Name: "green", Value: "#10b981", Bg: "rgba(16, 185, 129, 0.1)"},
	{Name: "orange", Value: "#f59e0b", Bg: "rgba(245, 158, 11, 0.1)"},
	{Name: "purple", Value: "#8b5cf6", Bg: "rgba(139, 92, 246, 0.1)"},
	{Name: "pink", Value: "#ec4899", Bg: "rgba(236, 72, 153, 0.1)"},
	{Name: "cyan", Value: "#06b6d4", Bg: "rgba(6, 182, 212, 0.1)"},
}

// ColorAt returns the palette entry for a rotation cursor. The cursor wraps
// modulo the palette size; negative cursors map to the first color.
func ColorAt(cursor int) Color {
	if cursor < 0 {
		return Palette[0]
	}
	return Palette[cursor%len(Palette)]
}
