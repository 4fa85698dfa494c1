package domain

import "time"

// Layer groups nodes visually and logically. Its pins are relay pins: they
// belong to no node and only forward connections across the layer boundary.
type Layer struct {
	ID             string          `json:"id"`
	ParentID       string          `json:"parent_id,omitempty"`
	Name           string          `json:"name"`
	Type           LayerType       `json:"type"`
	Nodes          []string        `json:"nodes"`
	Variables      []string        `json:"variables,omitempty"`
	Comments       []string        `json:"comments,omitempty"`
	Coordinates    Coordinates     `json:"coordinates"`
	InCoordinates  *Coordinates    `json:"in_coordinates,omitempty"`
	OutCoordinates *Coordinates    `json:"out_coordinates,omitempty"`
	Pins           map[string]*Pin `json:"pins"`
	Comment        string          `json:"comment,omitempty"`
	Error          string          `json:"error,omitempty"`
	Color          string          `json:"color,omitempty"`
}

// CommentType is the render mode of a board comment.
type CommentType string

const (
	CommentTypeText     CommentType = "Text"
	CommentTypeImage    CommentType = "Image"
	CommentTypeVideo    CommentType = "Video"
	CommentTypeMarkdown CommentType = "Markdown"
)

// Comment is a free-form annotation placed on the board.
type Comment struct {
	ID          string      `json:"id"`
	Author      string      `json:"author,omitempty"`
	Content     string      `json:"content"`
	CommentType CommentType `json:"comment_type"`
	Timestamp   time.Time   `json:"timestamp"`
	Coordinates Coordinates `json:"coordinates"`
	Width       float64     `json:"width,omitempty"`
	Height      float64     `json:"height,omitempty"`
	Layer       string      `json:"layer,omitempty"`
	Color       string      `json:"color,omitempty"`
	ZIndex      int32       `json:"z_index,omitempty"`
}
