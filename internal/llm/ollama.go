package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ternchat/tern/internal/store"
)

// DefaultOllamaURL uses the explicit IPv4 address to dodge IPv6 resolution
// problems with localhost on some platforms.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// Ollama streams chat replies from a local Ollama server. Responses are
// newline-delimited JSON on /api/chat.
type Ollama struct {
	baseURL string
	http    *http.Client
}

func NewOllama(baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &Ollama{baseURL: baseURL, http: &http.Client{}}
}

func (o *Ollama) Kind() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done      bool  `json:"done"`
	EvalCount int64 `json:"eval_count"`
}

func (o *Ollama) SendChat(ctx context.Context, history []store.Message, opts Options, onDelta DeltaFunc) (*Completion, error) {
	req := ollamaRequest{Model: opts.Model, Stream: true}
	for _, m := range historyWithSystem(history, opts) {
		req.Messages = append(req.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, wrapKind(KindTransport, "ollama: server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, wrapKind(statusKind(resp.StatusCode),
			fmt.Sprintf("ollama: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)), nil)
	}

	var completion Completion
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var c ollamaChunk
			if json.Unmarshal(line, &c) == nil {
				if c.Message.Content != "" {
					if err := onDelta(c.Message.Content); err != nil {
						return nil, err
					}
				}
				if c.Done {
					if c.EvalCount > 0 {
						n := c.EvalCount
						completion.TokenLength = &n
					}
					return &completion, nil
				}
			}
		}
		if err == io.EOF {
			return &completion, nil
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, wrapKind(KindTransport, "ollama: stream read failed", err)
		}
	}
}
