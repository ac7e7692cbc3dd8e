package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme represents a predefined color scheme for signal strength
// visualization. Each theme is optimized for different needs:
// - ClassicTheme: Traditional spectrum display (blue to red)
// - GrayscaleTheme: Monochrome visualization
// - JungleTheme: Nature-inspired colors for better contrast
// - ThermalTheme: Heat map visualization
// - MarineTheme: Water-depth inspired colors
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	DefaultColorMapSize = 256 // Default number of colors in the map
)

var validColorThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	JungleTheme:    {},
	ThermalTheme:   {},
	MarineTheme:    {},
}

// noCoverageColor marks grid cells without nearby measurements.
var noCoverageColor = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}

// ColorMapper provides efficient signal-to-color mapping with support for
// different color themes and dynamic signal range adjustment
type ColorMapper struct {
	colorMap       []color.Color // Pre-computed colors
	theme          func(float64) color.Color
	themeName      ColorTheme
	size           int     // Cache size
	signalPerIndex float64 // Signal range per index step
	boundsMin      float64 // Cached bounds.Min
	boundsRange    float64 // Cached bounds.Max - bounds.Min
}

// NewColorMapper creates a new color mapper with specified theme and
// bounds. Uses default size (256) for the color map.
func NewColorMapper(theme ColorTheme, bounds SignalBounds) *ColorMapper {
	return NewColorMapperWithSize(theme, bounds, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a new color mapper with specified size.
// Size determines the number of pre-computed colors in the map.
func NewColorMapperWithSize(theme ColorTheme, bounds SignalBounds, size int) *ColorMapper {
	if size <= 0 {
		size = DefaultColorMapSize
	}

	cm := &ColorMapper{
		colorMap:  make([]color.Color, size),
		theme:     getColorTheme(theme),
		themeName: theme,
		size:      size,
	}
	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds updates the signal bounds and recomputes the color map
func (cm *ColorMapper) UpdateBounds(bounds SignalBounds) {
	cm.boundsMin = bounds.Min
	cm.boundsRange = bounds.Max - bounds.Min
	cm.signalPerIndex = cm.boundsRange / float64(cm.size-1)

	// Rebuild color map
	for i := 0; i < cm.size; i++ {
		normalized := float64(i) / float64(cm.size-1)
		cm.colorMap[i] = cm.theme(normalized)
	}
}

// GetColor returns a color for the given signal strength value. NaN marks
// a cell without coverage.
func (cm *ColorMapper) GetColor(signal float64) color.Color {
	if math.IsNaN(signal) {
		return noCoverageColor
	}

	// Convert signal strength to index
	index := int((signal - cm.boundsMin) / cm.signalPerIndex)

	// Clamp index to valid range
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= cm.size {
		return cm.colorMap[cm.size-1]
	}
	return cm.colorMap[index]
}

// ThemeName returns the current color theme name
func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

// Size returns the color map size
func (cm *ColorMapper) Size() int {
	return cm.size
}

// Color theme implementations
func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case GrayscaleTheme:
		return func(signal float64) color.Color {
			v := uint8(math.Pow(signal, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}

	case JungleTheme:
		return func(signal float64) color.Color {
			return colorful.Hsv(
				120-(signal*60),
				1.0,
				0.3+(math.Pow(signal, 0.6)*0.7),
			)
		}

	case ThermalTheme:
		return func(signal float64) color.Color {
			if signal < 0.33 {
				return color.RGBA{
					R: uint8((signal * 3) * 255),
					A: 255,
				}
			}
			if signal < 0.66 {
				return color.RGBA{
					R: 255,
					G: uint8(((signal - 0.33) * 3) * 255),
					A: 255,
				}
			}
			return color.RGBA{
				R: 255,
				G: 255,
				B: uint8(((signal - 0.66) * 3) * 255),
				A: 255,
			}
		}

	case MarineTheme:
		return func(signal float64) color.Color {
			return colorful.Hsv(
				240-(signal*60),
				1.0-(signal*0.8),
				0.3+(math.Pow(signal, 0.6)*0.7),
			)
		}

	default: // ClassicTheme
		return func(signal float64) color.Color {
			return colorful.Hsv(
				240-(signal*240),
				math.Min(0.9+(signal*0.1), 1.0),
				math.Pow(signal, 0.7),
			)
		}
	}
}
