// Package narrative generates the optional AI market-sentiment blurb
// that augments a notification. Absence of the capability is a normal
// state, not an error path callers need to special-case.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cryptopulse/internal/news"
	logx "cryptopulse/pkg/logx"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o"

	maxRetries   = 3
	initialDelay = 1 * time.Second

	// Per-category item caps for the prompt digest.
	promptBullishMax = 3
	promptBearishMax = 3
	promptNeutralMax = 2
)

// ErrUnconfigured marks the generator created by Disabled(): no API key
// was provided, so no narrative will ever be produced.
var ErrUnconfigured = errors.New("narrative generator is not configured")

const systemPrompt = `You are a high-energy, meme-loving cryptocurrency analyst. Your mission is to analyze market news with a combination of technical knowledge and crypto-culture humor.

Provide a brief, entertaining summary of the crypto market sentiment based on the news articles.
Use crypto slang, emojis, and meme references in your analysis.
Keep it concise (2-3 sentences max) but make it entertaining and informative.
Focus on the overall sentiment and any standout news items.`

type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	BaseURL     string        // override for tests
	RetryDelay  time.Duration // base backoff; defaults to 1s
}

// Client calls the OpenAI chat-completions API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

// FromConfig builds a generator from config. An empty API key yields
// the disabled variant, so callers can wire the result unconditionally.
func FromConfig(cfg Config, log logx.Logger) Generator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Disabled()
	}
	return New(cfg, log)
}

// New builds a live client. The API key must be set.
func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = initialDelay
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{}, log: log}
}

// Disabled returns the explicit "capability absent" generator.
func Disabled() Generator { return disabled{} }

// Generator is satisfied by both the live client and the disabled
// variant.
type Generator interface {
	Summarize(ctx context.Context, s news.Snapshot) (string, error)
}

type disabled struct{}

func (disabled) Summarize(context.Context, news.Snapshot) (string, error) {
	return "", ErrUnconfigured
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Summarize asks the model for a short sentiment blurb over the
// snapshot digest. Retries transient failures with exponential backoff.
func (c *Client) Summarize(ctx context.Context, s news.Snapshot) (string, error) {
	if c == nil {
		return "", ErrUnconfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(s)},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("narrative: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retryable, err := c.once(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.log.Debug("narrative attempt failed", logx.Int("attempt", attempt+1), logx.Err(err))
	}
	return "", lastErr
}

func (c *Client) once(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("narrative: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, fmt.Errorf("narrative: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		msg := ae.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		// 429 and 5xx are worth retrying; auth/validation errors are not.
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("narrative: api status %d: %s", resp.StatusCode, msg)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", false, fmt.Errorf("narrative: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, errors.New("narrative: empty completion")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), false, nil
}

// userPrompt renders per-category counts plus a capped digest of
// headlines, mirroring what the notification itself will show.
func userPrompt(s news.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following crypto news, create a brief, entertaining crypto market sentiment summary:\n\n")
	fmt.Fprintf(&b, "Bullish News Count: %d\n", len(s.Bullish))
	fmt.Fprintf(&b, "Bearish News Count: %d\n", len(s.Bearish))
	fmt.Fprintf(&b, "Neutral News Count: %d\n", len(s.Neutral))

	writeDigest(&b, "BULLISH NEWS", s.Bullish, promptBullishMax)
	writeDigest(&b, "BEARISH NEWS", s.Bearish, promptBearishMax)
	writeDigest(&b, "NEUTRAL NEWS", s.Neutral, promptNeutralMax)

	b.WriteString("\nPlease provide a brief FUD (Fear, Uncertainty, Doubt) analysis with crypto humor and memes. Keep it to 2-3 sentences maximum.")
	return b.String()
}

func writeDigest(b *strings.Builder, label string, items []news.Item, max int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", label)
	if len(items) < max {
		max = len(items)
	}
	for i := 0; i < max; i++ {
		codes := "general market"
		if len(items[i].Currencies) > 0 {
			codes = strings.Join(items[i].Currencies, ", ")
		}
		fmt.Fprintf(b, "%d. %s (%s)\n", i+1, items[i].Title, codes)
	}
}
