/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package render draws circuit diagrams as PNG images. Gates are placed
// on the same layers the depth calculation assigns, one column per layer.
package render

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
	"github.com/amirewontmiss/eigenos/pkg/quantum/circuit"
	"github.com/amirewontmiss/eigenos/pkg/quantum/gate"
)

const (
	cellWidth  = 64.0
	cellHeight = 48.0
	margin     = 40.0
	boxSize    = 32.0
	dotRadius  = 4.0
)

// PNG renders the circuit onto w.
func PNG(c *circuit.Circuit, w io.Writer) error {
	if err := c.Validate(); err != nil {
		return err
	}

	layers := layout(c)
	columns := 0
	for _, l := range layers {
		if l+1 > columns {
			columns = l + 1
		}
	}
	if len(c.Measurements()) > 0 {
		columns++
	}
	if columns == 0 {
		columns = 1
	}

	width := int(2*margin + float64(columns)*cellWidth)
	height := int(2*margin + float64(c.Qubits())*cellHeight)
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Wires and labels.
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1.5)
	for q := 0; q < c.Qubits(); q++ {
		y := wireY(q)
		dc.DrawLine(margin, y, float64(width)-margin, y)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprintf("q%d", q), margin/2, y, 0.5, 0.35)
	}

	for i, g := range c.Gates() {
		x := columnX(layers[i])
		switch g.Name {
		case "CNOT":
			drawControl(dc, x, wireY(g.Qubits[0]))
			drawTargetPlus(dc, x, wireY(g.Qubits[1]))
			connect(dc, x, wireY(g.Qubits[0]), wireY(g.Qubits[1]))
		case "CZ":
			drawControl(dc, x, wireY(g.Qubits[0]))
			drawControl(dc, x, wireY(g.Qubits[1]))
			connect(dc, x, wireY(g.Qubits[0]), wireY(g.Qubits[1]))
		case "SWAP":
			drawCross(dc, x, wireY(g.Qubits[0]))
			drawCross(dc, x, wireY(g.Qubits[1]))
			connect(dc, x, wireY(g.Qubits[0]), wireY(g.Qubits[1]))
		case "TOFFOLI":
			drawControl(dc, x, wireY(g.Qubits[0]))
			drawControl(dc, x, wireY(g.Qubits[1]))
			drawTargetPlus(dc, x, wireY(g.Qubits[2]))
			connect(dc, x, wireY(g.Qubits[0]), wireY(g.Qubits[2]))
		default:
			drawBox(dc, x, wireY(g.Qubits[0]), label(g))
			for _, q := range g.Qubits[1:] {
				drawBox(dc, x, wireY(q), label(g))
			}
			if len(g.Qubits) > 1 {
				connect(dc, x, wireY(g.Qubits[0]), wireY(g.Qubits[len(g.Qubits)-1]))
			}
		}
	}

	measureX := columnX(columns - 1)
	for _, m := range c.Measurements() {
		drawBox(dc, measureX, wireY(m.Qubit), "M")
	}

	if err := dc.EncodePNG(w); err != nil {
		return qerrors.Wrap(qerrors.KindInvalidCircuit, err)
	}
	return nil
}

// layout assigns each gate its layer using the same scan the depth
// derivation uses.
func layout(c *circuit.Circuit) []int {
	layers := make([]int, c.GateCount())
	wire := make([]int, c.Qubits())
	for i, g := range c.Gates() {
		layer := 0
		for _, q := range g.Qubits {
			if wire[q] > layer {
				layer = wire[q]
			}
		}
		layers[i] = layer
		for _, q := range g.Qubits {
			wire[q] = layer + 1
		}
	}
	return layers
}

func wireY(q int) float64   { return margin + (float64(q)+0.5)*cellHeight }
func columnX(l int) float64 { return margin + (float64(l)+0.5)*cellWidth }

func label(g gate.Gate) string {
	if len(g.Params) == 1 {
		return fmt.Sprintf("%s(%.2f)", g.Name, g.Params[0])
	}
	return g.Name
}

func drawBox(dc *gg.Context, x, y float64, text string) {
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(x-boxSize/2, y-boxSize/2, boxSize, boxSize)
	dc.FillPreserve()
	dc.SetRGB(0, 0, 0)
	dc.Stroke()
	dc.DrawStringAnchored(text, x, y, 0.5, 0.35)
}

func drawControl(dc *gg.Context, x, y float64) {
	dc.SetRGB(0, 0, 0)
	dc.DrawCircle(x, y, dotRadius)
	dc.Fill()
}

func drawTargetPlus(dc *gg.Context, x, y float64) {
	r := boxSize / 2.5
	dc.SetRGB(1, 1, 1)
	dc.DrawCircle(x, y, r)
	dc.FillPreserve()
	dc.SetRGB(0, 0, 0)
	dc.Stroke()
	dc.DrawLine(x-r, y, x+r, y)
	dc.DrawLine(x, y-r, x, y+r)
	dc.Stroke()
}

func drawCross(dc *gg.Context, x, y float64) {
	r := dotRadius * 2
	dc.SetRGB(0, 0, 0)
	dc.DrawLine(x-r, y-r, x+r, y+r)
	dc.DrawLine(x-r, y+r, x+r, y-r)
	dc.Stroke()
}

func connect(dc *gg.Context, x, y1, y2 float64) {
	dc.SetRGB(0, 0, 0)
	dc.DrawLine(x, y1, x, y2)
	dc.Stroke()
}
