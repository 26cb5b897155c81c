package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CreateFrameInput represents the MCP tool input for creating a frame.
type CreateFrameInput struct {
	X      float64   `json:"x" jsonschema:"left edge in document coordinates"`
	Y      float64   `json:"y" jsonschema:"top edge in document coordinates"`
	Width  float64   `json:"width" jsonschema:"frame width, must be positive"`
	Height float64   `json:"height" jsonschema:"frame height, must be positive"`
	Name   string    `json:"name,omitempty" jsonschema:"optional display name, defaults to Frame"`
	Fill   *ColorArg `json:"fillColor,omitempty" jsonschema:"optional fill paint"`
}

// CreateFrameTool defines the MCP tool schema for creating a frame.
func CreateFrameTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_frame",
		Description: "Creates a top-level frame in the document. Frames can contain other nodes.",
	}
}

// CreateFrameHandler relays a create_frame command to the design tool.
func CreateFrameHandler(invoker Invoker) mcp.ToolHandlerFor[CreateFrameInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateFrameInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "create_frame", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}

// CreateRectangleInput represents the MCP tool input for creating a rectangle.
type CreateRectangleInput struct {
	X            float64   `json:"x" jsonschema:"left edge in document coordinates"`
	Y            float64   `json:"y" jsonschema:"top edge in document coordinates"`
	Width        float64   `json:"width" jsonschema:"rectangle width, must be positive"`
	Height       float64   `json:"height" jsonschema:"rectangle height, must be positive"`
	Name         string    `json:"name,omitempty" jsonschema:"optional display name, defaults to Rectangle"`
	ParentID     string    `json:"parentId,omitempty" jsonschema:"identifier of the containing frame, defaults to the document root"`
	Fill         *ColorArg `json:"fillColor,omitempty" jsonschema:"optional fill paint"`
	CornerRadius float64   `json:"cornerRadius,omitempty" jsonschema:"optional corner radius, must be >= 0"`
}

// CreateRectangleTool defines the MCP tool schema for creating a rectangle.
func CreateRectangleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_rectangle",
		Description: "Creates a rectangle, optionally nested inside a frame.",
	}
}

// CreateRectangleHandler relays a create_rectangle command to the design tool.
func CreateRectangleHandler(invoker Invoker) mcp.ToolHandlerFor[CreateRectangleInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateRectangleInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "create_rectangle", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}

// CreateEllipseInput represents the MCP tool input for creating an ellipse.
type CreateEllipseInput struct {
	X        float64   `json:"x" jsonschema:"left edge of the bounding box in document coordinates"`
	Y        float64   `json:"y" jsonschema:"top edge of the bounding box in document coordinates"`
	Width    float64   `json:"width" jsonschema:"bounding box width, must be positive"`
	Height   float64   `json:"height" jsonschema:"bounding box height, must be positive"`
	Name     string    `json:"name,omitempty" jsonschema:"optional display name, defaults to Ellipse"`
	ParentID string    `json:"parentId,omitempty" jsonschema:"identifier of the containing frame, defaults to the document root"`
	Fill     *ColorArg `json:"fillColor,omitempty" jsonschema:"optional fill paint"`
}

// CreateEllipseTool defines the MCP tool schema for creating an ellipse.
func CreateEllipseTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_ellipse",
		Description: "Creates an ellipse inscribed in the given bounding box, optionally nested inside a frame.",
	}
}

// CreateEllipseHandler relays a create_ellipse command to the design tool.
func CreateEllipseHandler(invoker Invoker) mcp.ToolHandlerFor[CreateEllipseInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateEllipseInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "create_ellipse", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}

// CreateTextInput represents the MCP tool input for creating a text node.
type CreateTextInput struct {
	X        float64   `json:"x" jsonschema:"left edge in document coordinates"`
	Y        float64   `json:"y" jsonschema:"top edge in document coordinates"`
	Text     string    `json:"text" jsonschema:"text content, must not be empty"`
	FontSize float64   `json:"fontSize,omitempty" jsonschema:"optional font size, defaults to 14"`
	Name     string    `json:"name,omitempty" jsonschema:"optional display name, defaults to the text content"`
	ParentID string    `json:"parentId,omitempty" jsonschema:"identifier of the containing frame, defaults to the document root"`
	Fill     *ColorArg `json:"fillColor,omitempty" jsonschema:"optional text paint"`
}

// CreateTextTool defines the MCP tool schema for creating a text node.
func CreateTextTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_text",
		Description: "Creates a text node. The box size derives from the text and font size.",
	}
}

// CreateTextHandler relays a create_text command to the design tool.
func CreateTextHandler(invoker Invoker) mcp.ToolHandlerFor[CreateTextInput, NodeSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateTextInput) (*mcp.CallToolResult, NodeSummary, error) {
		result, err := invokeAs[NodeSummary](ctx, invoker, "create_text", input)
		if err != nil {
			return nil, NodeSummary{}, err
		}
		return nil, result, nil
	}
}
