package readfiles

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var profileColors = []color.RGBA{
	{R: 200, A: 255},
	{B: 200, A: 255},
	{G: 150, A: 255},
	{R: 150, G: 100, B: 0, A: 255},
	{R: 120, B: 160, A: 255},
}

// PlotProfile draws T, U and the named species against x, each normalised
// to its own maximum, and saves the figure. The file type follows the
// extension of fileName.
func PlotProfile(p *Profile, species []string, fileName string) (err error) {
	var (
		pl     = plot.New()
		fields = []struct {
			name string
			f    []float64
		}{{"T", p.T}, {"U", p.U}}
	)
	for _, name := range species {
		k := -1
		for i, s := range p.Species {
			if s == name {
				k = i
			}
		}
		if k < 0 {
			return fmt.Errorf("species %q is not in the profile", name)
		}
		fields = append(fields, struct {
			name string
			f    []float64
		}{"Y_" + name, p.Y[k]})
	}
	pl.Title.Text = fmt.Sprintf("%s t = %8.5g", p.Title, p.Time)
	pl.X.Label.Text = "x [m]"
	pl.Y.Label.Text = "f / max|f|"
	for i, fld := range fields {
		var (
			xys   = make(plotter.XYs, len(p.X))
			scale float64
			line  *plotter.Line
		)
		for _, v := range fld.f {
			scale = math.Max(scale, math.Abs(v))
		}
		if scale == 0 {
			scale = 1
		}
		for j := range p.X {
			xys[j].X, xys[j].Y = p.X[j], fld.f[j]/scale
		}
		if line, err = plotter.NewLine(xys); err != nil {
			return
		}
		line.Color = profileColors[i%len(profileColors)]
		pl.Add(line)
		pl.Legend.Add(fmt.Sprintf("%s (max %.3g)", fld.name, scale), line)
	}
	return pl.Save(6*vg.Inch, 4*vg.Inch, fileName)
}
