package canvas

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

// ExportResult packages a rendered node for wire transfer.
type ExportResult struct {
	NodeID   string `json:"nodeId"`
	Format   string `json:"format"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ExportNode renders a node subtree and base64-encodes the PNG bytes.
func (d *Document) ExportNode(nodeID string, scale float64) (ExportResult, error) {
	data, err := d.Render(nodeID, scale)
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{
		NodeID:   nodeID,
		Format:   "png",
		MimeType: "image/png",
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Render rasterizes a node subtree to PNG. Scale must be within (0,4]; zero
// means 1. Fills and strokes are painted bottom-up; text nodes contribute
// their box fill, glyphs are not rasterized.
func (d *Document) Render(nodeID string, scale float64) ([]byte, error) {
	if scale == 0 {
		scale = 1
	}
	if scale < 0 || scale > 4 {
		return nil, fmt.Errorf("scale must be within (0,4], got %v", scale)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	node, ok := d.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	minX, minY, maxX, maxY := treeBounds(node)
	width := int(math.Ceil((maxX - minX) * scale))
	height := int(math.Ceil((maxY - minY) * scale))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	drawTree(img, node, minX, minY, scale)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// treeBounds returns the union bounding box of a node and its subtree in
// document coordinates. The root contributes no box of its own.
func treeBounds(node *Node) (minX, minY, maxX, maxY float64) {
	if node.Type == TypeDocument {
		first := true
		for _, child := range node.Children {
			cx0, cy0, cx1, cy1 := treeBounds(child)
			if first {
				minX, minY, maxX, maxY = cx0, cy0, cx1, cy1
				first = false
				continue
			}
			minX = math.Min(minX, cx0)
			minY = math.Min(minY, cy0)
			maxX = math.Max(maxX, cx1)
			maxY = math.Max(maxY, cy1)
		}
		if first {
			return 0, 0, 1, 1
		}
		return minX, minY, maxX, maxY
	}

	minX, minY = node.X, node.Y
	maxX, maxY = node.X+node.Width, node.Y+node.Height
	for _, child := range node.Children {
		cx0, cy0, cx1, cy1 := treeBounds(child)
		minX = math.Min(minX, cx0)
		minY = math.Min(minY, cy0)
		maxX = math.Max(maxX, cx1)
		maxY = math.Max(maxY, cy1)
	}
	return minX, minY, maxX, maxY
}

// drawTree paints a node then its children, painter's order.
func drawTree(img *image.NRGBA, node *Node, originX, originY, scale float64) {
	if node.Type != TypeDocument {
		rasterize(img, node, originX, originY, scale)
	}
	for _, child := range node.Children {
		drawTree(img, child, originX, originY, scale)
	}
}

// rasterize paints one node's fill and stroke by sampling pixel centers
// against the node's shape.
func rasterize(img *image.NRGBA, node *Node, originX, originY, scale float64) {
	if node.Fill == nil && (node.Stroke == nil || node.StrokeWeight <= 0) {
		return
	}

	x0 := int(math.Floor((node.X - originX) * scale))
	y0 := int(math.Floor((node.Y - originY) * scale))
	x1 := int(math.Ceil((node.X + node.Width - originX) * scale))
	y1 := int(math.Ceil((node.Y + node.Height - originY) * scale))

	w := node.Width * scale
	h := node.Height * scale
	radius := node.CornerRadius * scale
	strokeW := node.StrokeWeight * scale

	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			lx := float64(px) + 0.5 - float64(x0)
			ly := float64(py) + 0.5 - float64(y0)

			if node.Fill != nil && covers(node.Type, lx, ly, w, h, radius) {
				img.SetNRGBA(px, py, toNRGBA(*node.Fill))
			}
			if node.Stroke != nil && strokeW > 0 && onBorder(node.Type, lx, ly, w, h, radius, strokeW) {
				img.SetNRGBA(px, py, toNRGBA(*node.Stroke))
			}
		}
	}
}

// covers reports whether the local point is inside the node's shape.
func covers(t NodeType, lx, ly, w, h, radius float64) bool {
	if t == TypeEllipse {
		return coversEllipse(lx, ly, w, h)
	}
	return coversRect(lx, ly, w, h, radius)
}

// onBorder reports whether the point is inside the shape but outside the
// same shape inset by the stroke weight.
func onBorder(t NodeType, lx, ly, w, h, radius, strokeW float64) bool {
	if !covers(t, lx, ly, w, h, radius) {
		return false
	}
	innerW := w - 2*strokeW
	innerH := h - 2*strokeW
	if innerW <= 0 || innerH <= 0 {
		return true
	}
	innerR := math.Max(radius-strokeW, 0)
	return !covers(t, lx-strokeW, ly-strokeW, innerW, innerH, innerR)
}

func coversRect(lx, ly, w, h, radius float64) bool {
	if lx < 0 || ly < 0 || lx > w || ly > h {
		return false
	}
	if radius <= 0 {
		return true
	}
	r := math.Min(radius, math.Min(w, h)/2)
	cx := clamp(lx, r, w-r)
	cy := clamp(ly, r, h-r)
	dx := lx - cx
	dy := ly - cy
	return dx*dx+dy*dy <= r*r
}

func coversEllipse(lx, ly, w, h float64) bool {
	rx := w / 2
	ry := h / 2
	if rx <= 0 || ry <= 0 {
		return false
	}
	dx := (lx - rx) / rx
	dy := (ly - ry) / ry
	return dx*dx+dy*dy <= 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toNRGBA(c Color) color.NRGBA {
	return color.NRGBA{
		R: channelByte(c.R),
		G: channelByte(c.G),
		B: channelByte(c.B),
		A: channelByte(c.A),
	}
}

func channelByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
