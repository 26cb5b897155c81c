package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Invoker sends a named command over the relay and returns the raw reply
// result. bridge.CommandBridge and the root client both satisfy it.
type Invoker interface {
	Invoke(ctx context.Context, command string, params any) (json.RawMessage, error)
}

// invokeAs relays a command and decodes the reply result into T. Remote
// errors surface verbatim so the assistant sees what the design tool said.
func invokeAs[T any](ctx context.Context, invoker Invoker, command string, params any) (T, error) {
	var out T
	raw, err := invoker.Invoke(ctx, command, params)
	if err != nil {
		return out, fmt.Errorf("%s failed: %w", command, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, fmt.Errorf("decode %s result: %w", command, err)
		}
	}
	return out, nil
}

// ColorArg is an RGBA paint argument. Channels are constrained to [0,1].
type ColorArg struct {
	R float64  `json:"r" jsonschema:"red channel in [0,1]"`
	G float64  `json:"g" jsonschema:"green channel in [0,1]"`
	B float64  `json:"b" jsonschema:"blue channel in [0,1]"`
	A *float64 `json:"a,omitempty" jsonschema:"alpha channel in [0,1], defaults to 1 when omitted"`
}

// NodeSummary is the compact node description returned by mutating tools.
type NodeSummary struct {
	NodeID string  `json:"nodeId" jsonschema:"node identifier"`
	Name   string  `json:"name" jsonschema:"node display name"`
	Type   string  `json:"type" jsonschema:"node type (frame, rectangle, ellipse, text)"`
	X      float64 `json:"x" jsonschema:"left edge in document coordinates"`
	Y      float64 `json:"y" jsonschema:"top edge in document coordinates"`
	Width  float64 `json:"width" jsonschema:"node width"`
	Height float64 `json:"height" jsonschema:"node height"`
}

// NodeDetail is the full node description returned by get_node_info.
type NodeDetail struct {
	NodeID       string    `json:"nodeId" jsonschema:"node identifier"`
	Name         string    `json:"name" jsonschema:"node display name"`
	Type         string    `json:"type" jsonschema:"node type (document, frame, rectangle, ellipse, text)"`
	X            float64   `json:"x" jsonschema:"left edge in document coordinates"`
	Y            float64   `json:"y" jsonschema:"top edge in document coordinates"`
	Width        float64   `json:"width" jsonschema:"node width"`
	Height       float64   `json:"height" jsonschema:"node height"`
	ParentID     string    `json:"parentId,omitempty" jsonschema:"identifier of the containing node"`
	FillColor    *ColorArg `json:"fillColor,omitempty" jsonschema:"fill paint, if any"`
	StrokeColor  *ColorArg `json:"strokeColor,omitempty" jsonschema:"stroke paint, if any"`
	StrokeWeight float64   `json:"strokeWeight,omitempty" jsonschema:"stroke weight in document units"`
	CornerRadius float64   `json:"cornerRadius,omitempty" jsonschema:"corner radius in document units"`
	Text         string    `json:"text,omitempty" jsonschema:"text content for text nodes"`
	FontSize     float64   `json:"fontSize,omitempty" jsonschema:"font size for text nodes"`
	ChildIDs     []string  `json:"childIds,omitempty" jsonschema:"identifiers of direct children"`
}

// DocumentOverview summarizes the connected document.
type DocumentOverview struct {
	ID        string        `json:"id" jsonschema:"document identifier"`
	Name      string        `json:"name" jsonschema:"document name"`
	NodeCount int           `json:"nodeCount" jsonschema:"total node count including the root"`
	Children  []NodeSummary `json:"children" jsonschema:"top-level nodes"`
}

// DeleteNodeResult confirms a node removal.
type DeleteNodeResult struct {
	Deleted bool   `json:"deleted" jsonschema:"true when the node was removed"`
	NodeID  string `json:"nodeId" jsonschema:"identifier of the removed node"`
}

// ExportNodeResult carries a rendered node image.
type ExportNodeResult struct {
	NodeID   string `json:"nodeId" jsonschema:"identifier of the exported node"`
	Format   string `json:"format" jsonschema:"image format, always png"`
	MimeType string `json:"mimeType" jsonschema:"image MIME type"`
	Data     string `json:"data" jsonschema:"base64-encoded image bytes"`
}
