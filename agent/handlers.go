package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/canvaslink/canvaslink-go/canvas"
)

type moveNodeParams struct {
	NodeID string  `json:"nodeId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type resizeNodeParams struct {
	NodeID string  `json:"nodeId"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type nodeIDParams struct {
	NodeID string `json:"nodeId"`
}

type setFillColorParams struct {
	NodeID string       `json:"nodeId"`
	Color  canvas.Color `json:"color"`
}

type setStrokeColorParams struct {
	NodeID       string       `json:"nodeId"`
	Color        canvas.Color `json:"color"`
	StrokeWeight float64      `json:"strokeWeight,omitempty"`
}

type setCornerRadiusParams struct {
	NodeID string  `json:"nodeId"`
	Radius float64 `json:"radius"`
}

type setTextContentParams struct {
	NodeID string `json:"nodeId"`
	Text   string `json:"text"`
}

type exportNodeParams struct {
	NodeID string  `json:"nodeId"`
	Scale  float64 `json:"scale,omitempty"`
}

type deleteNodeResult struct {
	Deleted bool   `json:"deleted"`
	NodeID  string `json:"nodeId"`
}

// RegisterCanvasHandlers binds the full canvas command set to doc.
func RegisterCanvasHandlers(executor *Executor, doc *canvas.Document) error {
	if executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}

	bindings := map[string]CommandHandlerFunc{
		"create_frame":         createFrame(doc),
		"create_rectangle":     createRectangle(doc),
		"create_ellipse":       createEllipse(doc),
		"create_text":          createText(doc),
		"move_node":            moveNode(doc),
		"resize_node":          resizeNode(doc),
		"delete_node":          deleteNode(doc),
		"set_fill_color":       setFillColor(doc),
		"set_stroke_color":     setStrokeColor(doc),
		"set_corner_radius":    setCornerRadius(doc),
		"set_text_content":     setTextContent(doc),
		"get_node_info":        getNodeInfo(doc),
		"get_document_info":    getDocumentInfo(doc),
		"export_node_as_image": exportNodeAsImage(doc),
	}
	for command, handler := range bindings {
		if err := executor.RegisterHandler(command, handler); err != nil {
			return err
		}
	}
	return nil
}

func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func createFrame(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var spec canvas.FrameSpec
		if err := decodeParams(params, &spec); err != nil {
			return nil, err
		}
		return doc.CreateFrame(spec)
	}
}

func createRectangle(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var spec canvas.RectangleSpec
		if err := decodeParams(params, &spec); err != nil {
			return nil, err
		}
		return doc.CreateRectangle(spec)
	}
}

func createEllipse(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var spec canvas.EllipseSpec
		if err := decodeParams(params, &spec); err != nil {
			return nil, err
		}
		return doc.CreateEllipse(spec)
	}
}

func createText(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var spec canvas.TextSpec
		if err := decodeParams(params, &spec); err != nil {
			return nil, err
		}
		return doc.CreateText(spec)
	}
}

func moveNode(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p moveNodeParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return doc.MoveNode(p.NodeID, p.X, p.Y)
	}
}

func resizeNode(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p resizeNodeParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return doc.ResizeNode(p.NodeID, p.Width, p.Height)
	}
}

func deleteNode(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p nodeIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := doc.DeleteNode(p.NodeID); err != nil {
			return nil, err
		}
		return deleteNodeResult{Deleted: true, NodeID: p.NodeID}, nil
	}
}

func setFillColor(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p setFillColorParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return doc.SetFillColor(p.NodeID, p.Color)
	}
}

func setStrokeColor(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p setStrokeColorParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return doc.SetStrokeColor(p.NodeID, p.Color, p.StrokeWeight)
	}
}

func setCornerRadius(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p setCornerRadiusParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return doc.SetCornerRadius(p.NodeID, p.Radius)
	}
}

func setTextContent(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p setTextContentParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return doc.SetTextContent(p.NodeID, p.Text)
	}
}

func getNodeInfo(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p nodeIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return doc.NodeInfo(p.NodeID)
	}
}

func getDocumentInfo(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, _ json.RawMessage) (any, error) {
		return doc.Info(), nil
	}
}

func exportNodeAsImage(doc *canvas.Document) CommandHandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p exportNodeParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return doc.ExportNode(p.NodeID, p.Scale)
	}
}
