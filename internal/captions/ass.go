package captions

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// Alignment codes (numpad layout, horizontally centered)
const (
	AlignmentBottom = 2
	AlignmentCenter = 5
	AlignmentTop    = 8
)

// Canvas used when the source dimensions are unknown
const (
	FallbackWidth  = 1920
	FallbackHeight = 1080
)

const (
	styleName     = "Default"
	lineBreak     = `\N`
	marginSide    = 10
	fallbackColor = "&H00FFFFFF"
)

// DialogueEvent is one timed caption line
type DialogueEvent struct {
	Start   float64
	End     float64
	MarginV int
	Text    string
}

// Document is an Advanced SubStation Alpha script with a single style
type Document struct {
	Width  int
	Height int
	Style  models.CaptionStyle
	Events []DialogueEvent
}

// Synthesize lays chunks out evenly over duration. It returns nil when there
// are no chunks, meaning nothing should be burned.
func Synthesize(chunks []string, duration float64, style models.CaptionStyle, width, height int) *Document {
	if len(chunks) == 0 {
		return nil
	}
	if width <= 0 || height <= 0 {
		width, height = FallbackWidth, FallbackHeight
	}

	margin := verticalMargin(style)
	segment := duration / float64(len(chunks))

	events := make([]DialogueEvent, 0, len(chunks))
	for i, chunk := range chunks {
		start := float64(i) * segment
		end := math.Min(float64(i+1)*segment, duration)
		if i == len(chunks)-1 {
			end = duration
		}
		events = append(events, DialogueEvent{
			Start:   start,
			End:     end,
			MarginV: margin,
			Text:    escapeText(chunk),
		})
	}

	return &Document{
		Width:  width,
		Height: height,
		Style:  style,
		Events: events,
	}
}

// String renders the script: header, style definition, then events
func (d *Document) String() string {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString(fmt.Sprintf("PlayResX: %d\n", d.Width))
	sb.WriteString(fmt.Sprintf("PlayResY: %d\n", d.Height))
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	sb.WriteString(d.styleLine())
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ev := range d.Events {
		sb.WriteString(fmt.Sprintf("Dialogue: 0,%s,%s,%s,,0,0,%d,,%s\n",
			FormatTimestamp(ev.Start), FormatTimestamp(ev.End), styleName, ev.MarginV, ev.Text))
	}

	return sb.String()
}

func (d *Document) styleLine() string {
	s := d.Style
	bold, italic := WeightFlags(s.FontWeight)
	primary := ASSColor(s.PrimaryColor)

	return fmt.Sprintf("Style: %s,%s,%d,%s,%s,%s,&H00000000,%d,%d,0,0,100,100,0,0,1,%d,0,%d,%d,%d,%d,1\n",
		styleName,
		sanitizeFontName(s.FontFamily),
		s.FontSize,
		primary,
		primary,
		ASSColor(s.OutlineColor),
		assBool(bold),
		assBool(italic),
		s.OutlineSize,
		Alignment(s.Position),
		marginSide,
		marginSide,
		verticalMargin(s),
	)
}

// ASSColor converts "#RRGGBB" into the &H00BBGGRR form. Anything that is not
// six hex digits becomes white.
func ASSColor(hex string) string {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return fallbackColor
	}

	rgb, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return fallbackColor
	}

	r := (rgb >> 16) & 0xFF
	g := (rgb >> 8) & 0xFF
	b := rgb & 0xFF
	return fmt.Sprintf("&H00%02X%02X%02X", b, g, r)
}

// Alignment maps a position to its alignment code. Unknown positions anchor at the bottom.
func Alignment(position models.CaptionPosition) int {
	switch position {
	case models.CaptionPositionTop:
		return AlignmentTop
	case models.CaptionPositionCenter:
		return AlignmentCenter
	default:
		return AlignmentBottom
	}
}

// WeightFlags maps a font weight onto bold and italic flags.
// Black renders as bold; there is no heavier weight in the style line.
func WeightFlags(weight models.FontWeight) (bold, italic bool) {
	switch weight {
	case models.FontWeightBold, models.FontWeightBlack:
		return true, false
	case models.FontWeightItalic:
		return false, true
	case models.FontWeightBoldItalic:
		return true, true
	default:
		return false, false
	}
}

// FormatTimestamp renders seconds as H:MM:SS.cc
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int64(math.Round(seconds * 100))
	hours := cs / 360000
	minutes := (cs / 6000) % 60
	secs := (cs / 100) % 60
	centis := cs % 100

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centis)
}

func verticalMargin(style models.CaptionStyle) int {
	if Alignment(style.Position) == AlignmentCenter {
		return 0
	}
	return style.PositionOffset
}

func sanitizeFontName(name string) string {
	name = strings.NewReplacer("\r", "", "\n", "").Replace(name)
	name = strings.ReplaceAll(name, `\`, `\\`)
	return strings.ReplaceAll(name, ",", " ")
}

// escapeText keeps caption text literal: braces would otherwise open an
// override block.
func escapeText(text string) string {
	return textEscaper.Replace(text)
}

var textEscaper = strings.NewReplacer("\r", "", "\n", lineBreak, "{", `\{`, "}", `\}`)

func assBool(v bool) int {
	if v {
		return -1
	}
	return 0
}
