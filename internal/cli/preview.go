package cli

import (
	"fmt"
	"image/color"

	"github.com/hyperjump/egaku/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	rawColor       = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	resampledColor = color.RGBA{R: 220, G: 60, B: 40, A: 255}
)

// Projection selects the two coordinates drawn by RenderPreview.
type Projection string

// Supported projections.
const (
	ProjectionXY Projection = "xy"
	ProjectionXZ Projection = "xz"
	ProjectionYZ Projection = "yz"
)

func (p Projection) axes() (func(models.Point) float64, func(models.Point) float64, string, string, error) {
	x := func(pt models.Point) float64 { return pt.X }
	y := func(pt models.Point) float64 { return pt.Y }
	z := func(pt models.Point) float64 { return pt.Z }
	switch p {
	case ProjectionXY, "":
		return x, y, "x", "y", nil
	case ProjectionXZ:
		return x, z, "x", "z", nil
	case ProjectionYZ:
		return y, z, "y", "z", nil
	default:
		return nil, nil, "", "", fmt.Errorf("unknown projection %q", p)
	}
}

func toXYs(seq models.Sequence, fx, fy func(models.Point) float64) plotter.XYs {
	pts := make(plotter.XYs, len(seq))
	for i, p := range seq {
		pts[i] = plotter.XY{X: fx(p), Y: fy(p)}
	}
	return pts
}

// RenderPreview saves an image of a drawing to path; the format follows the file extension.
// The raw stroke is drawn as a line and the resampled points, when given, as red dots.
func RenderPreview(path, title string, raw, resampled models.Sequence, proj Projection) error {
	if len(raw) == 0 {
		return fmt.Errorf("preview %q: %w", title, models.ErrEmptySequence)
	}
	fx, fy, xLabel, yLabel, err := proj.axes()
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	rawLine, err := plotter.NewLine(toXYs(raw, fx, fy))
	if err != nil {
		return err
	}
	rawLine.Color = rawColor
	rawLine.Width = vg.Points(1)
	p.Add(rawLine)
	p.Legend.Add(fmt.Sprintf("raw (%d)", len(raw)), rawLine)

	if len(resampled) > 0 {
		dots, err := plotter.NewScatter(toXYs(resampled, fx, fy))
		if err != nil {
			return err
		}
		dots.GlyphStyle.Color = resampledColor
		dots.GlyphStyle.Shape = draw.CircleGlyph{}
		dots.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(dots)
		p.Legend.Add(fmt.Sprintf("resampled (%d)", len(resampled)), dots)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}
