package commentary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/badukhouse/baduk-server/internal/obslog"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// FallbackComment is returned whenever the upstream model cannot be reached
// or answers garbage. A commentary outage must never block gameplay.
const FallbackComment = "Sorry, I lost my train of thought for a moment. Would you try that move once more?"

// Request carries the board context for one comment.
type Request struct {
	BoardState      string `json:"boardState"`
	Turn            string `json:"turn"`
	UserName        string `json:"userName"`
	IsGameStart     bool   `json:"isGameStart"`
	IsGameEnd       bool   `json:"isGameEnd"`
	HasCapture      bool   `json:"hasCapture"`
	IsImportantMove bool   `json:"isImportantMove"`
}

// Response is what the model returns. Move is advisory only and ignored by
// the game session.
type Response struct {
	Move    string `json:"move"`
	Comment string `json:"comment"`
}

// Client is a stateless facade over an OpenAI-compatible chat completion
// endpoint. Comment never returns an error: failures degrade to the fallback.
type Client struct {
	apiURL  string
	apiKey  string
	model   string
	http    *fasthttp.Client
	timeout time.Duration
}

func NewClient(apiURL, apiKey, model string) *Client {
	return &Client{
		apiURL:  strings.TrimSpace(apiURL),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		http:    &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second, MaxConnsPerHost: 16},
		timeout: 15 * time.Second,
	}
}

const systemPrompt = "You are a world-class baduk professional who teaches children. " +
	"Analyze the current board and comment kindly on the child's move. " +
	"Play to win regardless of the child's skill, but phrase every remark as warm encouragement, " +
	"like \"Wow, that was sharp! Now I have to concentrate too!\". " +
	"Use the child's name only in special situations (game start, important move, capture, game end); " +
	"otherwise comment naturally without the name. " +
	"Respond strictly as JSON: {\"move\": \"coordinate\", \"comment\": \"text\"}. " +
	"The move field is decorative and may be empty."

// Comment asks the model for a friendly remark about the current position.
func (c *Client) Comment(ctx context.Context, req Request) Response {
	if c == nil || c.apiKey == "" || c.apiURL == "" {
		return Response{Comment: FallbackComment}
	}

	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildUserPrompt(req)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	out, err := c.postChat(ctx, body)
	if err != nil {
		obslog.L().Error("commentary_error", zap.Error(err))
		return Response{Comment: FallbackComment}
	}
	if strings.TrimSpace(out.Comment) == "" {
		return Response{Move: out.Move, Comment: FallbackComment}
	}
	return out
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current board state: %s\n", req.BoardState)
	fmt.Fprintf(&b, "Current turn: %s\n", req.Turn)
	fmt.Fprintf(&b, "The child's name: %s\n", req.UserName)

	special := false
	if req.IsGameStart {
		b.WriteString("Situation: the game has just started.\n")
		special = true
	}
	if req.IsGameEnd {
		b.WriteString("Situation: the game has ended.\n")
		special = true
	}
	if req.HasCapture {
		b.WriteString("Situation: stones were captured.\n")
		special = true
	}
	if req.IsImportantMove {
		b.WriteString("Situation: an important move was played.\n")
		special = true
	}
	if special {
		b.WriteString("Address the child by name with praise or encouragement.")
	} else {
		b.WriteString("This is routine feedback; comment naturally without the name.")
	}
	return b.String()
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) postChat(ctx context.Context, body map[string]any) (Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.apiURL)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.SetBody(payload)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return Response{}, fmt.Errorf("upstream status %d", status)
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Response{}, fmt.Errorf("empty choices")
	}

	var out Response
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &out); err != nil {
		return Response{}, fmt.Errorf("decode comment payload: %w", err)
	}
	return out, nil
}
