package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// FontWeight is the weight a caption font is rendered with
type FontWeight string

// FontWeight constants
const (
	FontWeightRegular    FontWeight = "regular"
	FontWeightBold       FontWeight = "bold"
	FontWeightItalic     FontWeight = "italic"
	FontWeightBoldItalic FontWeight = "bold_italic"
	FontWeightBlack      FontWeight = "black"
)

// CaptionPosition is the vertical anchor of burned captions
type CaptionPosition string

// CaptionPosition constants
const (
	CaptionPositionTop    CaptionPosition = "top"
	CaptionPositionCenter CaptionPosition = "center"
	CaptionPositionBottom CaptionPosition = "bottom"
)

// CaptionStyle is the fully resolved style used to render captions
type CaptionStyle struct {
	FontFamily      string          `json:"font_family"`
	FontSize        int             `json:"font_size"`
	FontWeight      FontWeight      `json:"font_weight"`
	PrimaryColor    string          `json:"primary_color"`
	OutlineColor    string          `json:"outline_color"`
	OutlineSize     int             `json:"outline_size"`
	Position        CaptionPosition `json:"position"`
	PositionOffset  int             `json:"position_offset"`
	WordsPerCaption int             `json:"words_per_caption"`
}

// CaptionTemplate is a named, user-owned caption style
type CaptionTemplate struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Name   string `json:"name" db:"name"`

	FontFamily      string `json:"font_family" db:"font_family"`
	FontSize        int    `json:"font_size" db:"font_size"`
	FontWeight      string `json:"font_weight" db:"font_weight"`
	PrimaryColor    string `json:"primary_color" db:"primary_color"`
	OutlineColor    string `json:"outline_color" db:"outline_color"`
	OutlineSize     int    `json:"outline_size" db:"outline_size"`
	Position        string `json:"position" db:"position"`
	PositionOffset  int    `json:"position_offset" db:"position_offset"`
	WordsPerCaption int    `json:"words_per_caption" db:"words_per_caption"`

	// Display fields kept for template reuse; not consumed by the renderer.
	WordHighlighting  bool    `json:"word_highlighting" db:"word_highlighting"`
	HighlightColor    string  `json:"highlight_color" db:"highlight_color"`
	HighlightStyle    string  `json:"highlight_style" db:"highlight_style"`
	BackgroundOpacity float64 `json:"background_opacity" db:"background_opacity"`
	AlternatingLoop   bool    `json:"alternating_loop" db:"alternating_loop"`
	LoopCount         int     `json:"loop_count" db:"loop_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CaptionConfig is a raw key/value caption style configuration
type CaptionConfig map[string]interface{}

// Value implements driver.Valuer for database storage
func (c CaptionConfig) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner for database retrieval
func (c *CaptionConfig) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return nil
	}
}
