package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MoveNodeInput represents the MCP tool input for repositioning a node.
type MoveNodeInput struct {
	NodeID string  `json:"nodeId" jsonschema:"identifier of the node to move"`
	X      float64 `json:"x" jsonschema:"new left edge in document coordinates"`
	Y      float64 `json:"y" jsonschema:"new top edge in document coordinates"`
}

// MoveNodeTool defines the MCP tool schema for moving a node.
func MoveNodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "move_node",
		Description: "Moves a node to absolute document coordinates.",
	}
}

// MoveNodeHandler relays a move_node command to the design tool.
func MoveNodeHandler(invoker Invoker) mcp.ToolHandlerFor[MoveNodeInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MoveNodeInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "move_node", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}

// ResizeNodeInput represents the MCP tool input for resizing a node.
type ResizeNodeInput struct {
	NodeID string  `json:"nodeId" jsonschema:"identifier of the node to resize"`
	Width  float64 `json:"width" jsonschema:"new width, must be positive"`
	Height float64 `json:"height" jsonschema:"new height, must be positive"`
}

// ResizeNodeTool defines the MCP tool schema for resizing a node.
func ResizeNodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "resize_node",
		Description: "Resizes a node's bounding box. Both dimensions must be positive.",
	}
}

// ResizeNodeHandler relays a resize_node command to the design tool.
func ResizeNodeHandler(invoker Invoker) mcp.ToolHandlerFor[ResizeNodeInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResizeNodeInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "resize_node", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}

// DeleteNodeInput represents the MCP tool input for deleting a node.
type DeleteNodeInput struct {
	NodeID string `json:"nodeId" jsonschema:"identifier of the node to delete"`
}

// DeleteNodeTool defines the MCP tool schema for deleting a node.
func DeleteNodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "delete_node",
		Description: "Deletes a node and its whole subtree. The document root cannot be deleted.",
	}
}

// DeleteNodeHandler relays a delete_node command to the design tool.
func DeleteNodeHandler(invoker Invoker) mcp.ToolHandlerFor[DeleteNodeInput, DeleteNodeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteNodeInput) (*mcp.CallToolResult, DeleteNodeResult, error) {
		result, err := invokeAs[DeleteNodeResult](ctx, invoker, "delete_node", input)
		if err != nil {
			return nil, DeleteNodeResult{}, err
		}
		return nil, result, nil
	}
}

// SetFillColorInput represents the MCP tool input for changing a fill paint.
type SetFillColorInput struct {
	NodeID string   `json:"nodeId" jsonschema:"identifier of the node to paint"`
	Color  ColorArg `json:"color" jsonschema:"fill paint with channels in [0,1]"`
}

// SetFillColorTool defines the MCP tool schema for changing a fill paint.
func SetFillColorTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_fill_color",
		Description: "Replaces a node's fill paint with an RGBA color.",
	}
}

// SetFillColorHandler relays a set_fill_color command to the design tool.
func SetFillColorHandler(invoker Invoker) mcp.ToolHandlerFor[SetFillColorInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetFillColorInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "set_fill_color", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}

// SetStrokeColorInput represents the MCP tool input for changing a stroke.
type SetStrokeColorInput struct {
	NodeID       string   `json:"nodeId" jsonschema:"identifier of the node to paint"`
	Color        ColorArg `json:"color" jsonschema:"stroke paint with channels in [0,1]"`
	StrokeWeight float64  `json:"strokeWeight,omitempty" jsonschema:"optional stroke weight, keeps the current weight when omitted and defaults to 1"`
}

// SetStrokeColorTool defines the MCP tool schema for changing a stroke.
func SetStrokeColorTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_stroke_color",
		Description: "Replaces a node's stroke paint and optionally its weight.",
	}
}

// SetStrokeColorHandler relays a set_stroke_color command to the design tool.
func SetStrokeColorHandler(invoker Invoker) mcp.ToolHandlerFor[SetStrokeColorInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetStrokeColorInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "set_stroke_color", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}

// SetCornerRadiusInput represents the MCP tool input for rounding corners.
type SetCornerRadiusInput struct {
	NodeID string  `json:"nodeId" jsonschema:"identifier of the frame or rectangle to round"`
	Radius float64 `json:"radius" jsonschema:"corner radius, must be >= 0"`
}

// SetCornerRadiusTool defines the MCP tool schema for rounding corners.
func SetCornerRadiusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_corner_radius",
		Description: "Rounds the corners of a frame or rectangle. Other node types are rejected.",
	}
}

// SetCornerRadiusHandler relays a set_corner_radius command to the design tool.
func SetCornerRadiusHandler(invoker Invoker) mcp.ToolHandlerFor[SetCornerRadiusInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetCornerRadiusInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "set_corner_radius", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}

// SetTextContentInput represents the MCP tool input for replacing text.
type SetTextContentInput struct {
	NodeID string `json:"nodeId" jsonschema:"identifier of the text node"`
	Text   string `json:"text" jsonschema:"new text content, must not be empty"`
}

// SetTextContentTool defines the MCP tool schema for replacing text.
func SetTextContentTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_text_content",
		Description: "Replaces the characters of a text node. Other node types are rejected.",
	}
}

// SetTextContentHandler relays a set_text_content command to the design tool.
func SetTextContentHandler(invoker Invoker) mcp.ToolHandlerFor[SetTextContentInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetTextContentInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "set_text_content", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}
