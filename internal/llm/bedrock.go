package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/ternchat/tern/internal/store"
)

// Bedrock streams Anthropic-family models through AWS Bedrock. Credentials
// come from the ambient AWS config chain, not from the secret store.
type Bedrock struct {
	client *bedrockruntime.Client
}

func NewBedrock(ctx context.Context, region string) (*Bedrock, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Bedrock{client: bedrockruntime.NewFromConfig(cfg)}, nil
}

func (b *Bedrock) Kind() string { return "bedrock" }

// bedrockRequest is the Anthropic-on-Bedrock invocation body.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int64            `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// bedrockChunk is the subset of the streamed event payload we consume.
type bedrockChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func (b *Bedrock) SendChat(ctx context.Context, history []store.Message, opts Options, onDelta DeltaFunc) (*Completion, error) {
	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        opts.MaxTokens,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = anthropicDefaultMaxTokens
	}
	for _, m := range historyWithSystem(history, opts) {
		if m.Role == store.RoleSystem {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, bedrockMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := b.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(opts.Model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, mapBedrockError(err)
	}
	stream := out.GetStream()
	defer stream.Close()

	var completion Completion
	for event := range stream.Events() {
		chunk, ok := event.(*brtypes.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var c bedrockChunk
		if err := json.Unmarshal(chunk.Value.Bytes, &c); err != nil {
			continue // skip malformed frames, mirror the NDJSON readers
		}
		switch c.Type {
		case "content_block_delta":
			if c.Delta.Text != "" {
				if err := onDelta(c.Delta.Text); err != nil {
					return nil, err
				}
			}
		case "message_delta":
			if c.Usage.OutputTokens > 0 {
				n := c.Usage.OutputTokens
				completion.TokenLength = &n
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, mapBedrockError(err)
	}
	return &completion, nil
}

func mapBedrockError(err error) error {
	var throttled *brtypes.ThrottlingException
	if errors.As(err, &throttled) {
		return wrapKind(KindRateLimited, "bedrock: throttled", err)
	}
	var denied *brtypes.AccessDeniedException
	if errors.As(err, &denied) {
		return wrapKind(KindAuthExpired, "bedrock: access denied", err)
	}
	var invalid *brtypes.ValidationException
	if errors.As(err, &invalid) {
		return wrapKind(KindUnsupported, "bedrock: invalid request", err)
	}
	var apierr smithy.APIError
	if errors.As(err, &apierr) {
		switch apierr.ErrorCode() {
		case "ExpiredTokenException", "ExpiredToken", "UnrecognizedClientException", "InvalidSignatureException":
			// STS credential expiry shows up as a generic API error.
			return wrapKind(KindAuthExpired, "bedrock: credentials expired", err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return wrapKind(KindTransport, "bedrock: request failed", err)
}
