package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/conneroisu/groq-go"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/captions"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// ErrMissingCredentials is returned when no API key is configured
var ErrMissingCredentials = errors.New("content generation credentials are not configured")

const (
	defaultModel   = "llama-3.3-70b-versatile"
	defaultTimeout = 60 * time.Second

	maxHeadingLength = 80
	captionWordLimit = 12
)

// Config configures the generator
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	BaseURL string
}

// Generator produces social copy and in-video captions through Groq
type Generator struct {
	client  *groq.Client
	model   groq.ChatModel
	timeout time.Duration
	logger  *logging.Logger
}

// NewGenerator creates a generator. A missing API key is not an error here;
// every call then fails with ErrMissingCredentials.
func NewGenerator(cfg Config, logger *logging.Logger) (*Generator, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}

	g := &Generator{
		model:   groq.ChatModel(cfg.Model),
		timeout: cfg.Timeout,
		logger:  logger,
	}

	if cfg.APIKey == "" {
		logger.Warn("Content generation API key not set, generation requests will fail")
		return g, nil
	}

	var (
		client *groq.Client
		err    error
	)
	if cfg.BaseURL != "" {
		client, err = groq.NewClient(cfg.APIKey, groq.WithBaseURL(cfg.BaseURL))
	} else {
		client, err = groq.NewClient(cfg.APIKey)
	}
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}
	g.client = client

	return g, nil
}

// Generate produces a heading, caption and hashtags for a video
func (g *Generator) Generate(ctx context.Context, localPath, title string, settings *models.FolderSettings, userID string) (*models.GeneratedContent, error) {
	if settings == nil {
		settings = models.DefaultFolderSettings("")
	}

	prompt, err := render(contentTemplate, contentParams{
		Title:         title,
		FileName:      filepath.Base(localPath),
		Tone:          settings.Tone,
		Language:      settings.Language,
		HashtagCount:  settings.HashtagCount,
		IncludeEmojis: settings.IncludeEmojis,
		CustomPrompt:  settings.CustomPrompt,
	})
	if err != nil {
		return nil, err
	}

	raw, err := g.complete(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	generated, err := parseGeneratedContent(raw, settings.HashtagCount)
	if err != nil {
		return nil, err
	}

	g.logger.WithUserID(userID).WithFields(map[string]interface{}{
		"hashtags": len(generated.Hashtags),
	}).Debug("Generated content")

	return generated, nil
}

// GenerateInVideoCaption produces the text burned into the video.
// The result may be empty.
func (g *Generator) GenerateInVideoCaption(ctx context.Context, localPath, title string, settings *models.FolderSettings, template *models.CaptionTemplate, userID string, override models.CaptionConfig) (string, error) {
	if settings == nil {
		settings = models.DefaultFolderSettings("")
	}

	source := captions.TemplateSource(template)
	if template == nil {
		source = captions.ConfigSource(override)
	}
	wordsPerCaption := source.Resolve().WordsPerCaption

	prompt, err := render(inVideoCaptionTemplate, captionParams{
		Title:           title,
		Tone:            settings.Tone,
		Language:        settings.Language,
		IncludeEmojis:   settings.IncludeEmojis,
		CustomPrompt:    settings.CustomPrompt,
		WordsPerCaption: wordsPerCaption,
		MaxWords:        max(captionWordLimit, wordsPerCaption*4),
	})
	if err != nil {
		return "", err
	}

	raw, err := g.complete(ctx, prompt, false)
	if err != nil {
		return "", err
	}

	g.logger.WithUserID(userID).Debugf("Generated in-video caption for %s", filepath.Base(localPath))

	return cleanCaption(raw), nil
}

func (g *Generator) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if g.client == nil {
		return "", ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := groq.ChatCompletionRequest{
		Model: g.model,
		Messages: []groq.ChatCompletionMessage{
			{Role: groq.RoleSystem, Content: systemPrompt},
			{Role: groq.RoleUser, Content: prompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = &groq.ChatResponseFormat{Type: "json_object"}
	}

	resp, err := g.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response")
	}

	return resp.Choices[0].Message.Content, nil
}

func parseGeneratedContent(raw string, hashtagCount int) (*models.GeneratedContent, error) {
	var payload struct {
		Heading  string   `json:"heading"`
		Caption  string   `json:"caption"`
		Hashtags []string `json:"hashtags"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &models.GeneratedContent{
		Heading:  truncateRunes(strings.TrimSpace(payload.Heading), maxHeadingLength),
		Caption:  strings.TrimSpace(payload.Caption),
		Hashtags: normalizeHashtags(payload.Hashtags, hashtagCount),
	}, nil
}

// normalizeHashtags returns at most limit unique "#tag" values
func normalizeHashtags(tags []string, limit int) []string {
	result := make([]string, 0, len(tags))
	if limit <= 0 {
		return result
	}

	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
		tag = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) || r == '#' {
				return -1
			}
			return r
		}, tag)

		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, "#"+tag)

		if len(result) == limit {
			break
		}
	}

	return result
}

func cleanCaption(raw string) string {
	caption := strings.TrimSpace(raw)
	caption = strings.Trim(caption, "\"'")
	return strings.TrimSpace(caption)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
