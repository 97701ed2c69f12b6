package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/ripplehq/ripple-backend/internal/domain"
	"google.golang.org/api/option"
)

// ConnectionScore is the scorer's verdict on a pair: one symmetric number,
// perspective-specific prose for each direction.
type ConnectionScore struct {
	Score        int    `json:"score"`
	SnippetA     string `json:"snippet_a"`
	SnippetB     string `json:"snippet_b"`
	DescriptionA string `json:"description_a"`
	DescriptionB string `json:"description_b"`
}

// ProfileText is what the scorer sees of a profile.
type ProfileText struct {
	DisplayName string
	Summary     string
	Interests   []string
}

type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	embedding *genai.EmbeddingModel
}

func NewClient(apiKey string) (*Client, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-1.5-pro")
	model.SetTemperature(0.7)

	return &Client{
		client:    client,
		model:     model,
		embedding: client.EmbeddingModel("text-embedding-004"),
	}, nil
}

func (c *Client) Close() {
	c.client.Close()
}

// Embed returns a dense vector for text. An empty vector means "no
// embedding available" and is a valid, non-error outcome for callers.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	resp, err := c.embedding.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", domain.ErrTransient, err)
	}
	if resp.Embedding == nil {
		return nil, nil
	}
	vector := make([]float64, len(resp.Embedding.Values))
	for i, v := range resp.Embedding.Values {
		vector[i] = float64(v)
	}
	return vector, nil
}

// ScoreConnection produces the pair judgment. Failures are transient and
// retryable; the pipeline's queue owns the retry policy.
func (c *Client) ScoreConnection(ctx context.Context, a, b ProfileText) (*ConnectionScore, error) {
	prompt := fmt.Sprintf(`
		Judge the compatibility of two people for a proximity-based social app.
		Person A: name=%q interests=%v summary=%q
		Person B: name=%q interests=%v summary=%q

		Task: produce one overall match score from 0 to 100, then for each
		person a one-line snippet and a 2-3 sentence description of why the
		OTHER person could be a good connection for them.
		Output: strict JSON with keys score, snippet_a, snippet_b,
		description_a, description_b. No markdown.
	`, a.DisplayName, a.Interests, a.Summary, b.DisplayName, b.Interests, b.Summary)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var score ConnectionScore
	if err := json.Unmarshal([]byte(stripFences(text)), &score); err != nil {
		return nil, fmt.Errorf("%w: parse score response: %v", domain.ErrTransient, err)
	}
	if score.Score < 0 {
		score.Score = 0
	}
	if score.Score > 100 {
		score.Score = 100
	}
	return &score, nil
}

// Summarize turns free-form bio / looking-for text into the short
// natural-language profile summary the scorer consumes, plus extracted
// interest tags.
func (c *Client) Summarize(ctx context.Context, bio, lookingFor string) (string, []string, error) {
	prompt := fmt.Sprintf(`
		Bio: %q
		Looking for: %q

		Task: write a neutral third-person summary (2-3 sentences) of this
		person, and extract up to 8 short lowercase interest tags.
		Output: strict JSON with keys summary (string) and interests
		(array of strings). No markdown.
	`, bio, lookingFor)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}

	var parsed struct {
		Summary   string   `json:"summary"`
		Interests []string `json:"interests"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return "", nil, fmt.Errorf("%w: parse summary response: %v", domain.ErrTransient, err)
	}
	return parsed.Summary, parsed.Interests, nil
}

// Moderate returns false when the text should be rejected.
func (c *Client) Moderate(ctx context.Context, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return true, nil
	}
	prompt := fmt.Sprintf(`
		Text: %q
		Task: decide if this user-submitted profile/group text is acceptable
		(no harassment, hate, sexual content involving minors, doxxing).
		Output: exactly "pass" or "fail".
	`, text)

	verdict, err := c.generate(ctx, prompt)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(verdict), "pass"), nil
}

// Reply produces one short conversational message continuing the given
// transcript. Used by the seed-activity simulator.
func (c *Client) Reply(ctx context.Context, transcript string) (string, error) {
	prompt := fmt.Sprintf(`
		You are a friendly person chatting in a casual proximity-based
		social app. Recent messages (oldest first):
		%s

		Task: write the next message from "you". One or two sentences,
		casual tone, no emoji spam, no markdown. Output the message text
		only.
	`, transcript)
	return c.generate(ctx, prompt)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", domain.ErrTransient, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini: empty response", domain.ErrTransient)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
