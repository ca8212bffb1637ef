// Package palette maps finding class names to display colors.
package palette

import (
	"fmt"
	"image/color"
	"strings"

	"annotator/internal/model"

	"github.com/lucasb-eyer/go-colorful"
)

// classColors covers the pathology, anatomy and tooth-number classes the
// detection models emit.
var classColors = map[string]string{
	"Attrited Enamel":         "#00CED1",
	"Bone":                    "#AFEEEE",
	"Bone level":              "#ADD8E6",
	"BoneLoss-InterRadicular": "#800020",
	"Boneloss-Interdental":    "#800020",
	"CEJ":                     "#FFC0CB",
	"Calculus":                "#4B0082",
	"Caries":                  "#008080",
	"ConeCut":                 "#AFEEEE",
	"Crown Prosthesis":        "#C0C0C0",
	"Enamel":                  "#FFB6C1",
	"Impacted Incisors":       "#90EE90",
	"Impacted Molar":          "#FFC0CB",
	"Implant":                 "#FFD700",
	"Incisor":                 "#FFFFE0",
	"Inf Alv Nrv":             "#87CEEB",
	"InfAlvNrv":               "#4169E1",
	"Mandibular Canine":       "#90EE90",
	"Mandibular Fracture":     "#4169E1",
	"Mandibular Molar":        "#90EE90",
	"Mandibular Premolar":     "#E6E6FA",
	"Mandibular Tooth":        "#CCFF99",
	"Maxilary Canine":         "#ADD8E6",
	"Maxilary Premolar":       "#FFDAB9",
	"Maxillary Molar":         "#87CEEB",
	"Maxillary Tooth":         "#FFC0CB",
	"Missing Tooth":           "#4169E1",
	"Obturated Canal":         "#FF8C00",
	"Open Margin":             "#8B4513",
	"OverHanging Restoration": "#191970",
	"Periapical Pathology":    "#DC143C",
	"Pulp":                    "#FFA07A",
	"Restoration":             "#FFBF00",
	"Root Stump":              "#FF8C00",
	"Sinus":                   "#AFEEEE",
	"cone cut":                "#4B0082",
	"cr":                      "#008080",
	"crown length":            "#8B4513",
	"im":                      "#FFD700",
	"nrv":                     "#FF8C00",
	"pathology":               "#8B4513",
	"4":                       "#CCFF99",
	"5":                       "#8622FF",
	"6":                       "#FE0056",
	"7":                       "#DC143C",
	"8":                       "#FF8C00",
	"9":                       "#008080",
	"10":                      "#FFA07A",
	"11":                      "#FFB6C1",
	"12":                      "#87CEEB",
	"13":                      "#FFC0CB",
	"14":                      "#4169E1",
	"15":                      "#8B4513",
	"16":                      "#90EE90",
	"17":                      "#4B0082",
	"18":                      "#800020",
	"19":                      "#FF8C00",
	"20":                      "#DC143C",
	"21":                      "#00CED1",
	"22":                      "#AFEEEE",
	"23":                      "#800020",
	"24":                      "#FFDAB9",
	"25":                      "#DB7093",
	"26":                      "#FFD700",
	"27":                      "#E6E6FA",
	"28":                      "#CCFF99",
	"29":                      "#8622FF",
	"30":                      "#FE0056",
	"31":                      "#DC143C",
	"32":                      "#FF8C00",
}

// Palette resolves class colors from the static table. It is safe for
// concurrent use because the table is never written after construction.
type Palette struct {
	table    map[string]string
	fallback string
}

// Default returns the palette backed by the built-in class table.
func Default() *Palette {
	return &Palette{table: classColors, fallback: model.DefaultColorHex}
}

// HexFor returns the hex color for class. An entry in overrides wins over the
// table; unknown classes get white.
func (p *Palette) HexFor(class string, overrides map[string]string) string {
	if hex, ok := overrides[class]; ok && hex != "" {
		return hex
	}
	if hex, ok := p.table[class]; ok {
		return hex
	}
	return p.fallback
}

// ColorFor returns the color for class as RGBA. Malformed override values
// fall back to the table color.
func (p *Palette) ColorFor(class string, overrides map[string]string) color.RGBA {
	c, err := ParseHex(p.HexFor(class, overrides))
	if err != nil {
		c, _ = ParseHex(p.HexFor(class, nil))
	}
	return c
}

// ParseHex parses "#RGB" or "#RRGGBB" into an opaque color.
func ParseHex(hex string) (color.RGBA, error) {
	if (len(hex) != 4 && len(hex) != 7) || hex[0] != '#' || strings.Trim(hex[1:], "0123456789abcdefABCDEF") != "" {
		return color.RGBA{}, fmt.Errorf("%w: color %q must be #RGB or #RRGGBB", model.ErrInvalidInput, hex)
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: color %q: %v", model.ErrInvalidInput, hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Normalize validates hex and returns it as upper-case "#RRGGBB".
func Normalize(hex string) (string, error) {
	if _, err := ParseHex(hex); err != nil {
		return "", err
	}
	c, _ := colorful.Hex(hex)
	return strings.ToUpper(c.Hex()), nil
}
