package canvas

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies what a node draws.
type NodeType string

const (
	TypeDocument  NodeType = "document"
	TypeFrame     NodeType = "frame"
	TypeRectangle NodeType = "rectangle"
	TypeEllipse   NodeType = "ellipse"
	TypeText      NodeType = "text"
)

// Color is an RGBA paint. Channel components are constrained to [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// UnmarshalJSON defaults the alpha channel to 1 when absent, so callers can
// pass {r,g,b} for opaque paints.
func (c *Color) UnmarshalJSON(data []byte) error {
	var raw struct {
		R float64  `json:"r"`
		G float64  `json:"g"`
		B float64  `json:"b"`
		A *float64 `json:"a"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.R, c.G, c.B = raw.R, raw.G, raw.B
	if raw.A != nil {
		c.A = *raw.A
	} else {
		c.A = 1
	}
	return nil
}

// Validate checks every channel is within [0,1].
func (c Color) Validate() error {
	channels := []struct {
		name  string
		value float64
	}{
		{"r", c.R}, {"g", c.G}, {"b", c.B}, {"a", c.A},
	}
	for _, ch := range channels {
		if ch.value < 0 || ch.value > 1 {
			return fmt.Errorf("color channel %s must be within [0,1], got %v", ch.name, ch.value)
		}
	}
	return nil
}

// Node is one element of the document tree. Geometry is in absolute
// document coordinates.
type Node struct {
	ID           string
	Type         NodeType
	Name         string
	X            float64
	Y            float64
	Width        float64
	Height       float64
	Fill         *Color
	Stroke       *Color
	StrokeWeight float64
	CornerRadius float64
	Text         string
	FontSize     float64
	Children     []*Node

	parent *Node
}

// Summary is the compact node description returned by mutating commands.
type Summary struct {
	NodeID string  `json:"nodeId"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Info is the full node description, including paints, text, and structure.
type Info struct {
	Summary
	ParentID     string   `json:"parentId,omitempty"`
	Fill         *Color   `json:"fillColor,omitempty"`
	Stroke       *Color   `json:"strokeColor,omitempty"`
	StrokeWeight float64  `json:"strokeWeight,omitempty"`
	CornerRadius float64  `json:"cornerRadius,omitempty"`
	Text         string   `json:"text,omitempty"`
	FontSize     float64  `json:"fontSize,omitempty"`
	ChildIDs     []string `json:"childIds,omitempty"`
}

// DocumentInfo summarizes the whole document.
type DocumentInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeCount int       `json:"nodeCount"`
	Children  []Summary `json:"children"`
}

// FrameSpec holds the creation parameters for a frame node.
type FrameSpec struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Name   string  `json:"name,omitempty"`
	Fill   *Color  `json:"fillColor,omitempty"`
}

// RectangleSpec holds the creation parameters for a rectangle node.
type RectangleSpec struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	Name         string  `json:"name,omitempty"`
	ParentID     string  `json:"parentId,omitempty"`
	Fill         *Color  `json:"fillColor,omitempty"`
	CornerRadius float64 `json:"cornerRadius,omitempty"`
}

// EllipseSpec holds the creation parameters for an ellipse node.
type EllipseSpec struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Name     string  `json:"name,omitempty"`
	ParentID string  `json:"parentId,omitempty"`
	Fill     *Color  `json:"fillColor,omitempty"`
}

// TextSpec holds the creation parameters for a text node.
type TextSpec struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text"`
	FontSize float64 `json:"fontSize,omitempty"`
	Name     string  `json:"name,omitempty"`
	ParentID string  `json:"parentId,omitempty"`
	Fill     *Color  `json:"fillColor,omitempty"`
}

// isContainer reports whether a node type may hold children.
func isContainer(t NodeType) bool {
	return t == TypeDocument || t == TypeFrame
}
