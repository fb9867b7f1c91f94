// Package style resolves utility class strings, like "bg-blue-500 p-4", to
// backend props, against a design token table with themes and responsive
// breakpoints.
//
// The resolver plugs into the engine as both the differ's and the patcher's
// Resolver, so two class strings resolving to the same props never touch the
// backend.
package style

import (
	"strconv"
	"strings"
)

// Tokens is a design token table.
type Tokens struct {
	// Colors maps color name to shade to hex value.
	Colors map[string]map[int]string
	// Spacing maps spacing scale names to pixel values.
	Spacing map[string]int
	// FontSize maps size names to point values.
	FontSize map[string]int
	// FontWeight maps weight names to backend weight names.
	FontWeight map[string]string
	// BorderRadius maps radius names to pixel values.
	BorderRadius map[string]int
	// Breakpoints maps breakpoint names to minimum widths in pixels.
	Breakpoints map[string]int
}

// DefaultTokens returns the built-in token table.
func DefaultTokens() *Tokens {
	return &Tokens{
		Colors: map[string]map[int]string{
			"slate":  {50: "#f8fafc", 100: "#f1f5f9", 200: "#e2e8f0", 300: "#cbd5e1", 400: "#94a3b8", 500: "#64748b", 600: "#475569", 700: "#334155", 800: "#1e293b", 900: "#0f172a"},
			"gray":   {50: "#f9fafb", 100: "#f3f4f6", 200: "#e5e7eb", 300: "#d1d5db", 400: "#9ca3af", 500: "#6b7280", 600: "#4b5563", 700: "#374151", 800: "#1f2937", 900: "#111827"},
			"blue":   {50: "#eff6ff", 100: "#dbeafe", 200: "#bfdbfe", 300: "#93c5fd", 400: "#60a5fa", 500: "#3b82f6", 600: "#2563eb", 700: "#1d4ed8", 800: "#1e40af", 900: "#1e3a8a"},
			"red":    {50: "#fef2f2", 100: "#fee2e2", 200: "#fecaca", 300: "#fca5a5", 400: "#f87171", 500: "#ef4444", 600: "#dc2626", 700: "#b91c1c", 800: "#991b1b", 900: "#7f1d1d"},
			"green":  {50: "#f0fdf4", 100: "#dcfce7", 200: "#bbf7d0", 300: "#86efac", 400: "#4ade80", 500: "#22c55e", 600: "#16a34a", 700: "#15803d", 800: "#166534", 900: "#14532d"},
			"yellow": {50: "#fefce8", 100: "#fef9c3", 200: "#fef08a", 300: "#fde047", 400: "#facc15", 500: "#eab308", 600: "#ca8a04", 700: "#a16207", 800: "#854d0e", 900: "#713f12"},
			"purple": {50: "#faf5ff", 100: "#f3e8ff", 200: "#e9d5ff", 300: "#d8b4fe", 400: "#c084fc", 500: "#a855f7", 600: "#9333ea", 700: "#7e22ce", 800: "#6b21a8", 900: "#581c87"},
		},
		Spacing: map[string]int{
			"0": 0, "1": 4, "2": 8, "3": 12, "4": 16, "5": 20, "6": 24, "8": 32,
			"10": 40, "12": 48, "16": 64, "20": 80, "24": 96, "32": 128, "40": 160, "48": 192,
		},
		FontSize: map[string]int{
			"xs": 10, "sm": 12, "base": 14, "lg": 16, "xl": 18,
			"2xl": 20, "3xl": 24, "4xl": 28, "5xl": 32,
		},
		FontWeight: map[string]string{
			"normal": "normal", "medium": "normal", "semibold": "bold", "bold": "bold",
		},
		BorderRadius: map[string]int{
			"none": 0, "sm": 2, "default": 4, "md": 6, "lg": 8, "xl": 12, "2xl": 16, "full": 9999,
		},
		Breakpoints: map[string]int{
			"sm": 640, "md": 768, "lg": 1024, "xl": 1280, "2xl": 1536,
		},
	}
}

// Color resolves a color reference like "blue-500" or "red" (shade 500
// implied) to a hex value. Unknown colors resolve to black.
func (t *Tokens) Color(name string) string {
	shade := 500
	if i := strings.LastIndexByte(name, '-'); i >= 0 {
		if s, err := strconv.Atoi(name[i+1:]); err == nil {
			shade = s
			name = name[:i]
		}
	}
	if v, ok := t.Colors[name][shade]; ok {
		return v
	}
	return "#000000"
}

// BreakpointFor returns the widest breakpoint whose minimum width the given
// window width reaches, defaulting to "sm".
func (t *Tokens) BreakpointFor(width int) string {
	best, bestMin := "sm", -1
	for name, min := range t.Breakpoints {
		if width >= min && min > bestMin {
			best, bestMin = name, min
		}
	}
	return best
}

// breakpointOrder is the responsive prefix order, narrowest first.
var breakpointOrder = []string{"sm", "md", "lg", "xl", "2xl"}

func breakpointIndex(name string) int {
	for i, bp := range breakpointOrder {
		if bp == name {
			return i
		}
	}
	// Unknown breakpoints behave like md.
	return 1
}
