package canvas

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Static failure modes surfaced to remote callers verbatim.
var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrRootImmutable  = errors.New("the document root cannot be modified")
	ErrNotAContainer  = errors.New("parent cannot hold children")
	ErrNotATextNode   = errors.New("node does not carry text")
	ErrNoCornerRadius = errors.New("node does not support corner radius")
)

// Document is a thread-safe in-memory canvas tree. Command handlers may run
// on concurrent goroutines, so every operation takes the document lock.
type Document struct {
	mu    sync.RWMutex
	id    string
	name  string
	root  *Node
	nodes map[string]*Node
}

// NewDocument creates an empty document with a root node.
func NewDocument(name string) *Document {
	if name == "" {
		name = "Untitled"
	}
	root := &Node{
		ID:   uuid.New().String(),
		Type: TypeDocument,
		Name: name,
	}
	return &Document{
		id:    root.ID,
		name:  name,
		root:  root,
		nodes: map[string]*Node{root.ID: root},
	}
}

// CreateFrame adds a top-level frame.
func (d *Document) CreateFrame(spec FrameSpec) (Summary, error) {
	if err := validateSize(spec.Width, spec.Height); err != nil {
		return Summary{}, err
	}
	if err := validateFill(spec.Fill); err != nil {
		return Summary{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	node := &Node{
		ID:     uuid.New().String(),
		Type:   TypeFrame,
		Name:   defaultName(spec.Name, "Frame"),
		X:      spec.X,
		Y:      spec.Y,
		Width:  spec.Width,
		Height: spec.Height,
		Fill:   spec.Fill,
	}
	d.attach(d.root, node)
	return summarize(node), nil
}

// CreateRectangle adds a rectangle under parentId, or under the root when
// parentId is empty.
func (d *Document) CreateRectangle(spec RectangleSpec) (Summary, error) {
	if err := validateSize(spec.Width, spec.Height); err != nil {
		return Summary{}, err
	}
	if err := validateFill(spec.Fill); err != nil {
		return Summary{}, err
	}
	if spec.CornerRadius < 0 {
		return Summary{}, fmt.Errorf("corner radius must be >= 0, got %v", spec.CornerRadius)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent, err := d.container(spec.ParentID)
	if err != nil {
		return Summary{}, err
	}
	node := &Node{
		ID:           uuid.New().String(),
		Type:         TypeRectangle,
		Name:         defaultName(spec.Name, "Rectangle"),
		X:            spec.X,
		Y:            spec.Y,
		Width:        spec.Width,
		Height:       spec.Height,
		Fill:         spec.Fill,
		CornerRadius: spec.CornerRadius,
	}
	d.attach(parent, node)
	return summarize(node), nil
}

// CreateEllipse adds an ellipse inscribed in the given bounding box.
func (d *Document) CreateEllipse(spec EllipseSpec) (Summary, error) {
	if err := validateSize(spec.Width, spec.Height); err != nil {
		return Summary{}, err
	}
	if err := validateFill(spec.Fill); err != nil {
		return Summary{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent, err := d.container(spec.ParentID)
	if err != nil {
		return Summary{}, err
	}
	node := &Node{
		ID:     uuid.New().String(),
		Type:   TypeEllipse,
		Name:   defaultName(spec.Name, "Ellipse"),
		X:      spec.X,
		Y:      spec.Y,
		Width:  spec.Width,
		Height: spec.Height,
		Fill:   spec.Fill,
	}
	d.attach(parent, node)
	return summarize(node), nil
}

// CreateText adds a text node. The box height derives from the font size;
// the width is a rough estimate so exports have sensible bounds.
func (d *Document) CreateText(spec TextSpec) (Summary, error) {
	if spec.Text == "" {
		return Summary{}, fmt.Errorf("text cannot be empty")
	}
	if spec.FontSize < 0 {
		return Summary{}, fmt.Errorf("font size must be >= 0, got %v", spec.FontSize)
	}
	if err := validateFill(spec.Fill); err != nil {
		return Summary{}, err
	}

	fontSize := spec.FontSize
	if fontSize == 0 {
		fontSize = 14
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	parent, err := d.container(spec.ParentID)
	if err != nil {
		return Summary{}, err
	}
	node := &Node{
		ID:       uuid.New().String(),
		Type:     TypeText,
		Name:     defaultName(spec.Name, spec.Text),
		X:        spec.X,
		Y:        spec.Y,
		Width:    float64(len(spec.Text)) * fontSize * 0.6,
		Height:   fontSize * 1.2,
		Fill:     spec.Fill,
		Text:     spec.Text,
		FontSize: fontSize,
	}
	d.attach(parent, node)
	return summarize(node), nil
}

// MoveNode repositions a node to absolute coordinates.
func (d *Document) MoveNode(nodeID string, x, y float64) (Summary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	node, err := d.mutable(nodeID)
	if err != nil {
		return Summary{}, err
	}
	node.X = x
	node.Y = y
	return summarize(node), nil
}

// ResizeNode changes a node's box. Both dimensions must be positive.
func (d *Document) ResizeNode(nodeID string, width, height float64) (Summary, error) {
	if err := validateSize(width, height); err != nil {
		return Summary{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	node, err := d.mutable(nodeID)
	if err != nil {
		return Summary{}, err
	}
	node.Width = width
	node.Height = height
	return summarize(node), nil
}

// DeleteNode removes a node and its whole subtree. The root is refused.
func (d *Document) DeleteNode(nodeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	node, err := d.mutable(nodeID)
	if err != nil {
		return err
	}

	parent := node.parent
	for i, child := range parent.Children {
		if child == node {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	d.forget(node)
	return nil
}

// SetFillColor replaces a node's fill paint.
func (d *Document) SetFillColor(nodeID string, c Color) (Summary, error) {
	if err := c.Validate(); err != nil {
		return Summary{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	node, err := d.mutable(nodeID)
	if err != nil {
		return Summary{}, err
	}
	fill := c
	node.Fill = &fill
	return summarize(node), nil
}

// SetStrokeColor replaces a node's stroke paint. A zero weight keeps the
// current weight, defaulting to 1.
func (d *Document) SetStrokeColor(nodeID string, c Color, weight float64) (Summary, error) {
	if err := c.Validate(); err != nil {
		return Summary{}, err
	}
	if weight < 0 {
		return Summary{}, fmt.Errorf("stroke weight must be >= 0, got %v", weight)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	node, err := d.mutable(nodeID)
	if err != nil {
		return Summary{}, err
	}
	stroke := c
	node.Stroke = &stroke
	if weight > 0 {
		node.StrokeWeight = weight
	} else if node.StrokeWeight == 0 {
		node.StrokeWeight = 1
	}
	return summarize(node), nil
}

// SetCornerRadius rounds the corners of a frame or rectangle.
func (d *Document) SetCornerRadius(nodeID string, radius float64) (Summary, error) {
	if radius < 0 {
		return Summary{}, fmt.Errorf("corner radius must be >= 0, got %v", radius)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	node, err := d.mutable(nodeID)
	if err != nil {
		return Summary{}, err
	}
	if node.Type != TypeFrame && node.Type != TypeRectangle {
		return Summary{}, fmt.Errorf("%w: %s is a %s", ErrNoCornerRadius, nodeID, node.Type)
	}
	node.CornerRadius = radius
	return summarize(node), nil
}

// SetTextContent replaces the characters of a text node.
func (d *Document) SetTextContent(nodeID string, text string) (Summary, error) {
	if text == "" {
		return Summary{}, fmt.Errorf("text cannot be empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	node, err := d.mutable(nodeID)
	if err != nil {
		return Summary{}, err
	}
	if node.Type != TypeText {
		return Summary{}, fmt.Errorf("%w: %s is a %s", ErrNotATextNode, nodeID, node.Type)
	}
	node.Text = text
	node.Width = float64(len(text)) * node.FontSize * 0.6
	return summarize(node), nil
}

// NodeInfo returns the full description of one node.
func (d *Document) NodeInfo(nodeID string) (Info, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	node, ok := d.nodes[nodeID]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	info := Info{
		Summary:      summarize(node),
		StrokeWeight: node.StrokeWeight,
		CornerRadius: node.CornerRadius,
		Text:         node.Text,
		FontSize:     node.FontSize,
	}
	if node.parent != nil {
		info.ParentID = node.parent.ID
	}
	if node.Fill != nil {
		fill := *node.Fill
		info.Fill = &fill
	}
	if node.Stroke != nil {
		stroke := *node.Stroke
		info.Stroke = &stroke
	}
	for _, child := range node.Children {
		info.ChildIDs = append(info.ChildIDs, child.ID)
	}
	return info, nil
}

// Info summarizes the document and its top-level children.
func (d *Document) Info() DocumentInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	info := DocumentInfo{
		ID:        d.id,
		Name:      d.name,
		NodeCount: len(d.nodes),
		Children:  []Summary{},
	}
	for _, child := range d.root.Children {
		info.Children = append(info.Children, summarize(child))
	}
	return info
}

// RootID returns the id of the document root.
func (d *Document) RootID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root.ID
}

// attach links node under parent and indexes it. Callers hold the lock.
func (d *Document) attach(parent, node *Node) {
	node.parent = parent
	parent.Children = append(parent.Children, node)
	d.nodes[node.ID] = node
}

// forget drops node and its subtree from the index. Callers hold the lock.
func (d *Document) forget(node *Node) {
	delete(d.nodes, node.ID)
	for _, child := range node.Children {
		d.forget(child)
	}
}

// mutable looks up a node that is allowed to change: anything but the root.
func (d *Document) mutable(nodeID string) (*Node, error) {
	node, ok := d.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if node == d.root {
		return nil, ErrRootImmutable
	}
	return node, nil
}

// container resolves the parent for a new node, defaulting to the root.
func (d *Document) container(parentID string) (*Node, error) {
	if parentID == "" {
		return d.root, nil
	}
	parent, ok := d.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, parentID)
	}
	if !isContainer(parent.Type) {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotAContainer, parentID, parent.Type)
	}
	return parent, nil
}

func summarize(node *Node) Summary {
	return Summary{
		NodeID: node.ID,
		Name:   node.Name,
		Type:   string(node.Type),
		X:      node.X,
		Y:      node.Y,
		Width:  node.Width,
		Height: node.Height,
	}
}

func defaultName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func validateSize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("width and height must be > 0, got %vx%v", width, height)
	}
	return nil
}

func validateFill(fill *Color) error {
	if fill == nil {
		return nil
	}
	return fill.Validate()
}
