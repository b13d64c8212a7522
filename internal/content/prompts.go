package content

import (
	"bytes"
	"fmt"
	"text/template"
)

const systemPrompt = `You write short-form social video copy. Always answer in the requested language and format.`

const contentPrompt = `Write social media copy for a short video titled "{{.Title}}" (file "{{.FileName}}").
Tone: {{.Tone}}. Language: {{.Language}}.
{{- if .IncludeEmojis}} Emojis are welcome.{{else}} Do not use emojis.{{end}}
{{- if .CustomPrompt}}
Additional instructions: {{.CustomPrompt}}
{{- end}}
Respond with a JSON object with the keys "heading" (at most 80 characters), "caption" (one or two sentences) and "hashtags" (an array of {{.HashtagCount}} hashtags).`

const inVideoCaptionPrompt = `Write the on-screen caption for a short video titled "{{.Title}}".
Tone: {{.Tone}}. Language: {{.Language}}.
It is shown {{.WordsPerCaption}} words at a time over the video, so keep it under {{.MaxWords}} words, spoken style, no hashtags{{if not .IncludeEmojis}}, no emojis{{end}}.
{{- if .CustomPrompt}}
Additional instructions: {{.CustomPrompt}}
{{- end}}
Answer with the caption text only.`

var (
	contentTemplate        = template.Must(template.New("content").Parse(contentPrompt))
	inVideoCaptionTemplate = template.Must(template.New("in_video_caption").Parse(inVideoCaptionPrompt))
)

type contentParams struct {
	Title         string
	FileName      string
	Tone          string
	Language      string
	HashtagCount  int
	IncludeEmojis bool
	CustomPrompt  string
}

type captionParams struct {
	Title           string
	Tone            string
	Language        string
	IncludeEmojis   bool
	CustomPrompt    string
	WordsPerCaption int
	MaxWords        int
}

func render(tmpl *template.Template, params any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
