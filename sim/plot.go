package sim

import (
	"fmt"
	"image/color"

	lateral "github.com/milosgajdos/go-lateral"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NewTrackingPlot creates new plot of the reference trajectory and the driven path.
// driven holds [x, y] positions in its rows.
// It returns error if the plot fails to be created. This can be due to either of the following conditions:
// * ref is empty or driven is nil
// * driven does not have at least 2 columns
// * gonum plot fails to be created
func NewTrackingPlot(ref lateral.Trajectory, driven *mat.Dense) (*plot.Plot, error) {
	if len(ref) == 0 || driven == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	if _, c := driven.Dims(); c < 2 {
		return nil, fmt.Errorf("invalid data dimensions")
	}

	p := plot.New()

	p.Title.Text = "Path tracking"
	p.X.Label.Text = "X [m]"
	p.Y.Label.Text = "Y [m]"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	refPts := make(plotter.XYs, len(ref))
	for i, pt := range ref {
		refPts[i].X, refPts[i].Y = pt.X, pt.Y
	}
	refLine, err := plotter.NewLine(refPts)
	if err != nil {
		return nil, err
	}
	refLine.LineStyle.Color = color.RGBA{R: 169, G: 169, B: 169, A: 255}
	refLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	refLine.LineStyle.Width = vg.Points(2)

	p.Add(refLine)
	p.Legend.Add("reference", refLine)

	drivenScatter, err := plotter.NewScatter(makePoints(driven, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %v", err)
	}
	drivenScatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	drivenScatter.Shape = draw.CircleGlyph{}
	drivenScatter.GlyphStyle.Radius = vg.Points(1)

	p.Add(drivenScatter)
	p.Legend.Add("vehicle", drivenScatter)

	return p, nil
}

// NewSteeringPlot creates new plot of the steering command and tire angle over time.
// steering holds [time, command, tire angle] in its rows.
// It returns error if steering is nil or has fewer than 3 columns.
func NewSteeringPlot(steering *mat.Dense) (*plot.Plot, error) {
	if steering == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	if _, c := steering.Dims(); c < 3 {
		return nil, fmt.Errorf("invalid data dimensions")
	}

	p := plot.New()

	p.Title.Text = "Steering"
	p.X.Label.Text = "t [s]"
	p.Y.Label.Text = "angle [rad]"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	cmdLine, err := plotter.NewLine(makePoints(steering, 0, 1))
	if err != nil {
		return nil, err
	}
	cmdLine.LineStyle.Color = color.RGBA{G: 128, A: 255}
	cmdLine.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}

	p.Add(cmdLine)
	p.Legend.Add("command", cmdLine)

	tireLine, err := plotter.NewLine(makePoints(steering, 0, 2))
	if err != nil {
		return nil, err
	}
	tireLine.LineStyle.Color = color.RGBA{R: 255, B: 128, A: 255}

	p.Add(tireLine)
	p.Legend.Add("tire angle", tireLine)

	return p, nil
}

func makePoints(m *mat.Dense, xc, yc int) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, xc)
		pts[i].Y = m.At(i, yc)
	}

	return pts
}
