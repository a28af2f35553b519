// Package pipeline is the content-generation collaborator: drafts via
// an LLM during asset collection, HTML publication at scheduled times.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/yuin/goldmark"

	"blogpilot/config"
	"blogpilot/topics"
)

// Draft is a generated article in markdown form.
type Draft struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description"`
	Body            string   `json:"body"`
	Tags            []string `json:"tags"`
}

// PublishResult is the outcome of one publish call.
type PublishResult struct {
	Success bool
	Title   string
	URL     string
	Err     string
}

// Pipeline generates drafts and publishes them to the blog backend.
type Pipeline struct {
	model      string
	llmOpts    []option.RequestOption
	publishURL string
	publishKey string
	httpClient *http.Client
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient sets the client used for publish calls (for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) {
		p.httpClient = client
	}
}

// New creates a pipeline from configuration.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	llmOpts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}

	p := &Pipeline{
		model:      cfg.OpenAIModel,
		llmOpts:    llmOpts,
		publishURL: strings.TrimSuffix(cfg.PublishBaseURL, "/") + "/posts",
		publishKey: cfg.PublishAPIKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateDraft produces a markdown draft for a topic in the writer's
// voice.
func (p *Pipeline) GenerateDraft(ctx context.Context, topic topics.Topic, writer config.Writer) (*Draft, error) {
	client := openai.NewClient(p.llmOpts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(draftSystemPrompt(writer)),
			openai.UserMessage(draftUserPrompt(topic)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("draft completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("draft completion: empty choices")
	}

	return parseDraft(resp.Choices[0].Message.Content)
}

// Publish renders the draft to HTML and posts it to the blog backend.
func (p *Pipeline) Publish(ctx context.Context, topic topics.Topic, writer config.Writer, draft *Draft, assets []string) (*PublishResult, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(draft.Body), &buf); err != nil {
		return nil, fmt.Errorf("render draft: %w", err)
	}

	payload := map[string]any{
		"title":            draft.Title,
		"meta_description": draft.MetaDescription,
		"html":             buf.String(),
		"tags":             draft.Tags,
		"author":           writer.ID,
		"keyword":          topic.Keyword,
		"assets":           assets,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.publishURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.publishKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.publishKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publish post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("publish post: unexpected status %d", resp.StatusCode)
	}

	var created struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		// Some backends return an empty body on create; the post is up.
		created.URL = ""
	}

	return &PublishResult{Success: true, Title: draft.Title, URL: created.URL}, nil
}

var headingRegex = regexp.MustCompile(`(?m)^##\s+(.+)$`)

// Subheadings extracts the draft's second-level headings for the asset
// request report.
func Subheadings(draft *Draft) []string {
	var heads []string
	for _, m := range headingRegex.FindAllStringSubmatch(draft.Body, -1) {
		heads = append(heads, strings.TrimSpace(m[1]))
	}
	return heads
}

func draftSystemPrompt(writer config.Writer) string {
	voice := writer.Name
	if len(writer.Interests) > 0 {
		voice += " (focus: " + strings.Join(writer.Interests, ", ") + ")"
	}
	return fmt.Sprintf(`You are %s, a blog author. Write complete, factual articles in markdown with ## subheadings.`, voice)
}

func draftUserPrompt(topic topics.Topic) string {
	prompt := fmt.Sprintf(`Write a blog article about %q (category: %s).`, topic.Keyword, topic.Category)
	if topic.Rationale != "" {
		prompt += "\n\nContext:\n" + topic.Rationale
	}
	prompt += `

Respond with JSON only, in this exact format:
{"title": "...", "meta_description": "...", "body": "markdown body with ## subheadings", "tags": ["tag1", "tag2"]}`
	return prompt
}

func parseDraft(text string) (*Draft, error) {
	text = stripMarkdownCodeBlock(text)

	var draft Draft
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return nil, fmt.Errorf("parse draft JSON: %w", err)
	}
	if draft.Title == "" || draft.Body == "" {
		return nil, fmt.Errorf("draft missing title or body")
	}
	return &draft, nil
}

var codeBlockRegex = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.+?)\\s*```\\s*$")

func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if matches := codeBlockRegex.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return s
}
