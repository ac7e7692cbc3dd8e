package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/rfrecon/wardrive-df/internal/df/sigmap"
)

const (
	dpi            = 120.0
	fontSize       = 12.0
	tickMarkLength = 5
	pixelsPerLabel = 170

	// Pixel size of one grid cell, scaled so small surveys still produce
	// a readable image.
	minMapWidth  = 640
	maxCellScale = 24

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 90
	defaultBottomBorder = 40
	defaultRightBorder  = 40
)

// BorderConfig defines the sizes of white space around the map
type BorderConfig struct {
	Top    int // Space for longitude scale
	Left   int // Space for latitude scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for coverage visualization
type RenderConfig struct {
	ColorTheme   ColorTheme // Color scheme for signal values
	ColorMapSize int        // Number of colors in gradient (0 for default)
	FontFile     string     // TTF font used for annotations
	FontSize     float64    // Font size in points
	Annotate     bool       // Draw coordinate scales and the info bar

	BorderConfig BorderConfig
}

// MapInfo carries the context printed on the info bar.
type MapInfo struct {
	BSSID   string
	Samples int64
}

// MapRenderer handles the visualization of coverage grids
type MapRenderer struct {
	colorMap *ColorMapper
	config   RenderConfig
}

// NewMapRenderer creates a new coverage map renderer with the given
// configuration
func NewMapRenderer(config RenderConfig) (*MapRenderer, error) {
	// Set defaults for zero values
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}
	if !config.Annotate {
		config.BorderConfig = BorderConfig{}
	}

	return &MapRenderer{config: config}, nil
}

// Render creates an image of the coverage grid with annotations
func (r *MapRenderer) Render(grid *sigmap.Grid, bounds SignalBounds, info MapInfo) (*image.RGBA, error) {
	scale := cellScale(grid.Width)
	mapWidth := grid.Width * scale
	mapHeight := grid.Height * scale

	fullWidth := mapWidth + r.config.BorderConfig.Left + r.config.BorderConfig.Right
	fullHeight := mapHeight + r.config.BorderConfig.Top + r.config.BorderConfig.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	mapArea := image.Rect(
		r.config.BorderConfig.Left,
		r.config.BorderConfig.Top,
		r.config.BorderConfig.Left+mapWidth,
		r.config.BorderConfig.Top+mapHeight,
	)

	if r.colorMap == nil {
		r.colorMap = NewColorMapperWithSize(r.config.ColorTheme, bounds, r.config.ColorMapSize)
	} else {
		r.colorMap.UpdateBounds(bounds)
	}

	r.renderGrid(img, mapArea, grid, scale)

	if !r.config.Annotate {
		return img, nil
	}

	ann, err := newAnnotator(annotatorConfig{
		FontFile: r.config.FontFile,
		FontSize: r.config.FontSize,
		Borders:  r.config.BorderConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, grid, mapArea, bounds, info); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// renderGrid draws the coverage cells using the color map. Grid rows grow
// northward while image rows grow down, so the vertical axis is flipped.
func (r *MapRenderer) renderGrid(img *image.RGBA, area image.Rectangle, grid *sigmap.Grid, scale int) {
	for y := 0; y < grid.Height; y++ {
		imgY := area.Min.Y + (grid.Height-1-y)*scale
		for x := 0; x < grid.Width; x++ {
			imgX := area.Min.X + x*scale

			c := r.colorMap.GetColor(grid.At(x, y))
			cell := image.Rect(imgX, imgY, imgX+scale, imgY+scale)
			draw.Draw(img, cell, &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}
}

func cellScale(gridWidth int) int {
	if gridWidth <= 0 {
		return 1
	}
	scale := minMapWidth / gridWidth
	if scale < 1 {
		return 1
	}
	if scale > maxCellScale {
		return maxCellScale
	}
	return scale
}

// Internal annotator implementation
type annotatorConfig struct {
	FontFile string
	FontSize float64
	Borders  BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	fontBytes, err := os.ReadFile(config.FontFile)
	if err != nil {
		return nil, fmt.Errorf("reading font file: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, grid *sigmap.Grid, area image.Rectangle, bounds SignalBounds, info MapInfo) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawLongitudeScale(img, grid, area); err != nil {
		return fmt.Errorf("drawing longitude scale: %w", err)
	}
	if err := a.drawLatitudeScale(img, grid, area); err != nil {
		return fmt.Errorf("drawing latitude scale: %w", err)
	}
	if err := a.drawInfoBar(img, grid, bounds, info); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawLongitudeScale(img *image.RGBA, grid *sigmap.Grid, area image.Rectangle) error {
	count := area.Dx() / pixelsPerLabel
	if count < 2 {
		count = 2
	}

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := a.config.Borders.Top - fontHeight/2

	lonStep := (grid.MaxLon - grid.MinLon) / float64(count)
	pxStep := area.Dx() / count

	for i := 0; i <= count; i++ {
		x := area.Min.X + i*pxStep
		lon := grid.MinLon + float64(i)*lonStep

		// Draw tick mark
		for y := a.config.Borders.Top - tickMarkLength; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%.5f°", lon)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-(width.Round()/2), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing longitude label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawLatitudeScale(img *image.RGBA, grid *sigmap.Grid, area image.Rectangle) error {
	count := area.Dy() / pixelsPerLabel
	if count < 2 {
		count = 2
	}

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	latStep := (grid.MaxLat - grid.MinLat) / float64(count)
	pxStep := area.Dy() / count

	for i := 0; i <= count; i++ {
		// The top of the map is the northern edge.
		y := area.Min.Y + i*pxStep
		lat := grid.MaxLat - float64(i)*latStep

		// Draw tick mark
		for x := a.config.Borders.Left - tickMarkLength; x < a.config.Borders.Left; x++ {
			img.Set(x, y, color.Black)
		}

		textY := y + fontHeight/2 - metrics.Descent.Round()
		label := fmt.Sprintf("%.5f°", lat)
		pt := freetype.Pt(10, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing latitude label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, grid *sigmap.Grid, bounds SignalBounds, info MapInfo) error {
	var sb strings.Builder

	if info.BSSID != "" {
		sb.WriteString("Target: " + info.BSSID)
		sb.WriteString("; ")
	}
	sb.WriteString(fmt.Sprintf("Signal: %.1f to %.1f dBm", bounds.Min, bounds.Max))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Cell: %s", humanize.SI(grid.CellSize, "m")))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Samples: %s", humanize.Comma(info.Samples)))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Center text vertically in bottom border
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}
