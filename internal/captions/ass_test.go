package captions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

func TestASSColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#FFFFFF", "&H00FFFFFF"},
		{"#FF0000", "&H000000FF"},
		{"#00FF00", "&H0000FF00"},
		{"#0000FF", "&H00FF0000"},
		{"#1a2b3c", "&H003C2B1A"},
		{"123456", "&H00563412"},
		{"#FFF", "&H00FFFFFF"},
		{"#GGGGGG", "&H00FFFFFF"},
		{"", "&H00FFFFFF"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ASSColor(tt.in))
		})
	}
}

func TestAlignment(t *testing.T) {
	assert.Equal(t, 8, Alignment(models.CaptionPositionTop))
	assert.Equal(t, 5, Alignment(models.CaptionPositionCenter))
	assert.Equal(t, 2, Alignment(models.CaptionPositionBottom))
	assert.Equal(t, 2, Alignment("sideways"))
}

func TestWeightFlags(t *testing.T) {
	tests := []struct {
		weight       models.FontWeight
		bold, italic bool
	}{
		{models.FontWeightRegular, false, false},
		{models.FontWeightBold, true, false},
		{models.FontWeightItalic, false, true},
		{models.FontWeightBoldItalic, true, true},
		{models.FontWeightBlack, true, false},
		{"thin", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.weight), func(t *testing.T) {
			bold, italic := WeightFlags(tt.weight)
			assert.Equal(t, tt.bold, bold)
			assert.Equal(t, tt.italic, italic)
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "0:00:00.00", FormatTimestamp(0))
	assert.Equal(t, "0:00:03.33", FormatTimestamp(10.0/3))
	assert.Equal(t, "0:00:06.67", FormatTimestamp(20.0/3))
	assert.Equal(t, "0:01:05.50", FormatTimestamp(65.5))
	assert.Equal(t, "1:00:00.00", FormatTimestamp(3599.999))
	assert.Equal(t, "12:34:56.78", FormatTimestamp(12*3600+34*60+56.78))
}

func TestSynthesizeTiming(t *testing.T) {
	doc := Synthesize([]string{"one", "two", "three"}, 10.0, DefaultStyle(), 1080, 1920)
	require.NotNil(t, doc)
	require.Len(t, doc.Events, 3)

	starts := []string{"0:00:00.00", "0:00:03.33", "0:00:06.67"}
	for i, ev := range doc.Events {
		assert.Equal(t, starts[i], FormatTimestamp(ev.Start))
	}
	assert.Equal(t, 10.0, doc.Events[2].End)
	assert.Equal(t, "0:00:10.00", FormatTimestamp(doc.Events[2].End))

	for i := 1; i < len(doc.Events); i++ {
		assert.Equal(t, doc.Events[i-1].End, doc.Events[i].Start, "events must be contiguous")
	}
}

func TestSynthesizeEmpty(t *testing.T) {
	assert.Nil(t, Synthesize(nil, 10, DefaultStyle(), 1920, 1080))
	assert.Nil(t, Synthesize([]string{}, 10, DefaultStyle(), 1920, 1080))
}

func TestSynthesizeMargins(t *testing.T) {
	style := DefaultStyle()
	style.PositionOffset = 90

	style.Position = models.CaptionPositionCenter
	doc := Synthesize([]string{"hi"}, 1, style, 1920, 1080)
	assert.Equal(t, 0, doc.Events[0].MarginV)

	style.Position = models.CaptionPositionTop
	doc = Synthesize([]string{"hi"}, 1, style, 1920, 1080)
	assert.Equal(t, 90, doc.Events[0].MarginV)
}

func TestSynthesizeCanvasFallback(t *testing.T) {
	doc := Synthesize([]string{"hi"}, 1, DefaultStyle(), 0, 0)
	assert.Equal(t, FallbackWidth, doc.Width)
	assert.Equal(t, FallbackHeight, doc.Height)
}

func TestDocumentString(t *testing.T) {
	style := DefaultStyle()
	style.FontFamily = "Comic, Sans\\Pro\r\n"
	style.FontWeight = models.FontWeightBoldItalic
	style.PrimaryColor = "#FF0000"
	style.Position = models.CaptionPositionTop
	style.PositionOffset = 50

	doc := Synthesize([]string{"hello\r\nworld", "bye"}, 4, style, 1080, 1920)
	out := doc.String()

	assert.Contains(t, out, "PlayResX: 1080\n")
	assert.Contains(t, out, "PlayResY: 1920\n")
	assert.Contains(t, out,
		"Style: Default,Comic  Sans\\\\Pro,32,&H000000FF,&H000000FF,&H00000000,&H00000000,-1,-1,0,0,100,100,0,0,1,3,0,8,10,10,50,1\n")
	assert.Contains(t, out, "Dialogue: 0,0:00:00.00,0:00:02.00,Default,,0,0,50,,hello\\Nworld\n")
	assert.Contains(t, out, "Dialogue: 0,0:00:02.00,0:00:04.00,Default,,0,0,50,,bye\n")

	scriptInfo := strings.Index(out, "[Script Info]")
	styles := strings.Index(out, "[V4+ Styles]")
	events := strings.Index(out, "[Events]")
	assert.True(t, scriptInfo < styles && styles < events, "sections out of order")
	assert.Equal(t, 1, strings.Count(out, "\nStyle: "))
	assert.Equal(t, 2, strings.Count(out, "\nDialogue: "))
}

func TestDocumentStringEscapesOverrideBraces(t *testing.T) {
	doc := Synthesize([]string{`{\an8\c&H0000FF&}hi`, "a}b{c"}, 4, DefaultStyle(), 1920, 1080)
	out := doc.String()

	assert.Contains(t, out, ",,\\{\\an8\\c&H0000FF&\\}hi\n")
	assert.Contains(t, out, ",,a\\}b\\{c\n")
	assert.NotContains(t, out, ",,{")
}
