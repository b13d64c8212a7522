package captions

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// Canonical caption style defaults
const (
	DefaultFontFamily      = "Arial"
	DefaultFontSize        = 32
	DefaultFontWeight      = models.FontWeightRegular
	DefaultPrimaryColor    = "#FFFFFF"
	DefaultOutlineColor    = "#000000"
	DefaultOutlineSize     = 3
	DefaultPosition        = models.CaptionPositionBottom
	DefaultPositionOffset  = 30
	DefaultWordsPerCaption = 3
)

// Recognized caption config keys
const (
	KeyFontFamily      = "font_family"
	KeyFontSize        = "font_size"
	KeyFontWeight      = "font_weight"
	KeyPrimaryColor    = "primary_color"
	KeyOutlineColor    = "outline_color"
	KeyOutlineSize     = "outline_size"
	KeyPosition        = "position"
	KeyPositionOffset  = "position_offset"
	KeyWordsPerCaption = "words_per_caption"
)

// DefaultStyle returns the style used when nothing else is configured
func DefaultStyle() models.CaptionStyle {
	return models.CaptionStyle{
		FontFamily:      DefaultFontFamily,
		FontSize:        DefaultFontSize,
		FontWeight:      DefaultFontWeight,
		PrimaryColor:    DefaultPrimaryColor,
		OutlineColor:    DefaultOutlineColor,
		OutlineSize:     DefaultOutlineSize,
		Position:        DefaultPosition,
		PositionOffset:  DefaultPositionOffset,
		WordsPerCaption: DefaultWordsPerCaption,
	}
}

type sourceKind int

const (
	sourceNone sourceKind = iota
	sourceTemplate
	sourceConfig
)

// StyleSource is where a caption style comes from: a saved template, a raw
// config map, or nothing at all.
type StyleSource struct {
	kind     sourceKind
	template *models.CaptionTemplate
	config   models.CaptionConfig
}

// NoStyle selects the default style
func NoStyle() StyleSource {
	return StyleSource{kind: sourceNone}
}

// TemplateSource selects a saved caption template
func TemplateSource(t *models.CaptionTemplate) StyleSource {
	if t == nil {
		return NoStyle()
	}
	return StyleSource{kind: sourceTemplate, template: t}
}

// ConfigSource selects a raw key/value configuration
func ConfigSource(cfg models.CaptionConfig) StyleSource {
	if len(cfg) == 0 {
		return NoStyle()
	}
	return StyleSource{kind: sourceConfig, config: cfg}
}

// Resolve returns the fully populated style. It never fails.
func (s StyleSource) Resolve() models.CaptionStyle {
	switch s.kind {
	case sourceTemplate:
		return resolveTemplate(s.template)
	case sourceConfig:
		return resolveConfig(s.config)
	default:
		return DefaultStyle()
	}
}

// String names the source kind for logs
func (s StyleSource) String() string {
	switch s.kind {
	case sourceTemplate:
		return "template"
	case sourceConfig:
		return "config"
	default:
		return "default"
	}
}

func resolveTemplate(t *models.CaptionTemplate) models.CaptionStyle {
	return buildStyle(
		t.FontFamily,
		t.FontSize,
		t.FontWeight,
		t.PrimaryColor,
		t.OutlineColor,
		t.OutlineSize,
		t.Position,
		t.PositionOffset,
		t.WordsPerCaption,
	)
}

func resolveConfig(cfg models.CaptionConfig) models.CaptionStyle {
	return buildStyle(
		configString(cfg, KeyFontFamily),
		configInt(cfg, KeyFontSize),
		configString(cfg, KeyFontWeight),
		configString(cfg, KeyPrimaryColor),
		configString(cfg, KeyOutlineColor),
		configInt(cfg, KeyOutlineSize),
		configString(cfg, KeyPosition),
		configInt(cfg, KeyPositionOffset),
		configInt(cfg, KeyWordsPerCaption),
	)
}

// buildStyle applies per-field defaulting. Zero and empty values count as unset.
func buildStyle(fontFamily string, fontSize int, fontWeight, primary, outline string,
	outlineSize int, position string, offset, wordsPerCaption int) models.CaptionStyle {
	style := DefaultStyle()

	if fontFamily != "" {
		style.FontFamily = fontFamily
	}
	if fontSize > 0 {
		style.FontSize = fontSize
	}
	if fontWeight != "" {
		style.FontWeight = models.FontWeight(fontWeight)
	}
	if primary != "" {
		style.PrimaryColor = primary
	}
	if outline != "" {
		style.OutlineColor = outline
	}
	if outlineSize > 0 {
		style.OutlineSize = outlineSize
	}
	style.Position = normalizePosition(position)
	if offset > 0 {
		style.PositionOffset = offset
	}
	switch {
	case wordsPerCaption > 0:
		style.WordsPerCaption = wordsPerCaption
	case wordsPerCaption < 0:
		style.WordsPerCaption = 1
	}

	return style
}

func normalizePosition(position string) models.CaptionPosition {
	switch p := models.CaptionPosition(strings.ToLower(strings.TrimSpace(position))); p {
	case models.CaptionPositionTop, models.CaptionPositionCenter, models.CaptionPositionBottom:
		return p
	default:
		return DefaultPosition
	}
}

func configString(cfg models.CaptionConfig, key string) string {
	v, ok := cfg[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func configInt(cfg models.CaptionConfig, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0
			}
			return int(f)
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
