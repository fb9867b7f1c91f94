package style

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Theme is a named skin: a dark-mode flag plus token overrides, loadable
// from a YAML file like
//
//	name: midnight
//	dark: true
//	colors:
//	  blue-500: "#1e40af"
//	spacing:
//	  "4": 18
//	fontSize:
//	  base: 15
type Theme struct {
	Name string `yaml:"name"`
	Dark bool   `yaml:"dark"`
	// Colors overrides single color shades, keyed like "blue-500".
	Colors map[string]string `yaml:"colors"`
	// Spacing and FontSize override single scale entries.
	Spacing  map[string]int `yaml:"spacing"`
	FontSize map[string]int `yaml:"fontSize"`
}

// Built-in themes: Light has no overrides and dark mode off, Dark only
// flips dark mode on.
var (
	Light = &Theme{Name: "light"}
	Dark  = &Theme{Name: "dark", Dark: true}
)

// LoadTheme reads a theme from a YAML file.
func LoadTheme(fname string) (*Theme, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var theme Theme
	if err := yaml.Unmarshal(data, &theme); err != nil {
		return nil, fmt.Errorf("parse theme %s: %w", fname, err)
	}
	if theme.Name == "" {
		theme.Name = fname
	}
	return &theme, nil
}

// tokens applies the theme's overrides to a copy of base.
func (th *Theme) tokens(base *Tokens) *Tokens {
	if len(th.Colors) == 0 && len(th.Spacing) == 0 && len(th.FontSize) == 0 {
		return base
	}
	t := &Tokens{
		Colors:       make(map[string]map[int]string, len(base.Colors)),
		Spacing:      make(map[string]int, len(base.Spacing)),
		FontSize:     make(map[string]int, len(base.FontSize)),
		FontWeight:   base.FontWeight,
		BorderRadius: base.BorderRadius,
		Breakpoints:  base.Breakpoints,
	}
	for name, shades := range base.Colors {
		copied := make(map[int]string, len(shades))
		for shade, v := range shades {
			copied[shade] = v
		}
		t.Colors[name] = copied
	}
	for k, v := range base.Spacing {
		t.Spacing[k] = v
	}
	for k, v := range base.FontSize {
		t.FontSize[k] = v
	}
	for ref, v := range th.Colors {
		name, shade := ref, 500
		if i := strings.LastIndexByte(ref, '-'); i >= 0 {
			if s, err := strconv.Atoi(ref[i+1:]); err == nil {
				name, shade = ref[:i], s
			}
		}
		if t.Colors[name] == nil {
			t.Colors[name] = make(map[int]string)
		}
		t.Colors[name][shade] = v
	}
	for k, v := range th.Spacing {
		t.Spacing[k] = v
	}
	for k, v := range th.FontSize {
		t.FontSize[k] = v
	}
	return t
}
