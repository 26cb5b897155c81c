package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetNodeInfoInput represents the MCP tool input for inspecting a node.
type GetNodeInfoInput struct {
	NodeID string `json:"nodeId" jsonschema:"identifier of the node to inspect"`
}

// GetNodeInfoTool defines the MCP tool schema for inspecting a node.
func GetNodeInfoTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_node_info",
		Description: "Returns the full description of one node, including paints, text, and structure.",
	}
}

// GetNodeInfoHandler relays a get_node_info command to the design tool.
func GetNodeInfoHandler(invoker Invoker) mcp.ToolHandlerFor[GetNodeInfoInput, NodeDetail] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetNodeInfoInput) (*mcp.CallToolResult, NodeDetail, error) {
		result, err := invokeAs[NodeDetail](ctx, invoker, "get_node_info", input)
		if err != nil {
			return nil, NodeDetail{}, err
		}
		return nil, result, nil
	}
}

// GetDocumentInfoInput represents the MCP tool input for summarizing the
// document. The command takes no parameters.
type GetDocumentInfoInput struct{}

// GetDocumentInfoTool defines the MCP tool schema for summarizing the document.
func GetDocumentInfoTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_document_info",
		Description: "Returns the document summary: id, name, node count, and top-level nodes.",
	}
}

// GetDocumentInfoHandler relays a get_document_info command to the design tool.
func GetDocumentInfoHandler(invoker Invoker) mcp.ToolHandlerFor[GetDocumentInfoInput, DocumentOverview] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentInfoInput) (*mcp.CallToolResult, DocumentOverview, error) {
		result, err := invokeAs[DocumentOverview](ctx, invoker, "get_document_info", input)
		if err != nil {
			return nil, DocumentOverview{}, err
		}
		return nil, result, nil
	}
}

// ExportNodeInput represents the MCP tool input for exporting a node image.
type ExportNodeInput struct {
	NodeID string  `json:"nodeId" jsonschema:"identifier of the node to export"`
	Scale  float64 `json:"scale,omitempty" jsonschema:"render scale within (0,4], defaults to 1"`
}

// ExportNodeTool defines the MCP tool schema for exporting a node image.
func ExportNodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "export_node_as_image",
		Description: "Renders a node subtree to PNG and returns the base64-encoded bytes.",
	}
}

// ExportNodeHandler relays an export_node_as_image command to the design tool.
func ExportNodeHandler(invoker Invoker) mcp.ToolHandlerFor[ExportNodeInput, ExportNodeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ExportNodeInput) (*mcp.CallToolResult, ExportNodeResult, error) {
		result, err := invokeAs[ExportNodeResult](ctx, invoker, "export_node_as_image", input)
		if err != nil {
			return nil, ExportNodeResult{}, err
		}
		return nil, result, nil
	}
}
