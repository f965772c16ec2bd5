package classify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bhai-cabal/tracker/internal/activity"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
	maxReplyTokens = 50
)

var (
	errMissingAPIKey       = errors.New("classify: api key is required")
	errEmptyCompletion     = errors.New("classify: empty completion")
	errUnknownCategory     = errors.New("classify: unknown category")
	errMissingImagePayload = errors.New("classify: empty image payload")
)

// promptProfile holds the per-category instructions and reply framing.
type promptProfile struct {
	system       string
	question     string
	acceptPrefix string
	acceptedWrap string
	rejectedWrap string
}

var profiles = map[activity.Category]promptProfile{
	activity.CategoryGym: {
		system: "You're a supportive community activity tracker analyzing gym photos. " +
			"For valid gym pics (workout equipment, exercise in progress, or post-workout), " +
			"start with 'GYM PIC:' then give an encouraging response (max 20 words). " +
			"For non-gym pics, start with 'NOT GYM:' then provide gentle guidance (max 15 words).",
		question: "Analyze this image. Is it a gym pic? Respond with the appropriate prefix " +
			"('GYM PIC:' or 'NOT GYM:') followed by your motivating message.",
		acceptPrefix: "GYM PIC:",
		acceptedWrap: "Respect, %s! %s Your commitment to strength inspires the cabal! 💪",
		rejectedWrap: "%s, %s The path of strength awaits - we believe in you! 🏋️",
	},
	activity.CategoryShipping: {
		system: "You're an encouraging community activity tracker analyzing work progress photos. " +
			"Valid shipping pics show code, presentations, documentation, meetings, or other " +
			"productive work. For valid pics start with 'SHIPPING PIC:' then give an uplifting " +
			"response (max 20 words). For non-shipping pics start with 'NOT SHIPPING:' then " +
			"provide constructive guidance (max 15 words).",
		question: "Analyze this image. Is it a valid shipping pic showing work progress? Respond " +
			"with the appropriate prefix ('SHIPPING PIC:' or 'NOT SHIPPING:') followed by your " +
			"encouraging message.",
		acceptPrefix: "SHIPPING PIC:",
		acceptedWrap: "Excellent work, %s! %s Your contribution strengthens the cabal! 🚢",
		rejectedWrap: "%s, %s Every member has the potential to create value - show us your progress! 💫",
	},
	activity.CategoryMindfulness: {
		system: "You're a mindful community activity tracker analyzing spiritual growth photos. " +
			"For valid mindfulness pics (meditation, yoga, or other mindful practices), start " +
			"with 'ZEN PIC:' then give an appreciative response (max 20 words). For " +
			"non-mindfulness pics, start with 'NOT ZEN:' then provide gentle guidance (max 15 words).",
		question: "Analyze this image. Is it a mindfulness pic? Respond with the appropriate " +
			"prefix ('ZEN PIC:' or 'NOT ZEN:') followed by your mindful message.",
		acceptPrefix: "ZEN PIC:",
		acceptedWrap: "Inner peace, %s! %s Your spiritual strength enriches the cabal! 🧘",
		rejectedWrap: "%s, %s The path to spiritual strength awaits your presence! 🌟",
	},
}

// GatewayConfig configures the OpenAI-backed classification gateway.
type GatewayConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; used by tests.
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// OpenAIGateway classifies photos with a vision-capable chat model. The
// activity service treats it as a black box: any error here surfaces as the
// service being unavailable and never consumes quota.
type OpenAIGateway struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenAIGateway constructs the gateway.
func NewOpenAIGateway(cfg GatewayConfig) (*OpenAIGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIGateway{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Classify sends the photo to the model and parses the prefixed verdict.
func (g *OpenAIGateway) Classify(ctx context.Context, category activity.Category, image []byte, displayName string) (activity.Verdict, error) {
	profile, ok := profiles[category]
	if !ok {
		return activity.Verdict{}, fmt.Errorf("%w: %q", errUnknownCategory, category)
	}
	if len(image) == 0 {
		return activity.Verdict{}, errMissingImagePayload
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	response, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: profile.system,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: profile.question,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens: maxReplyTokens,
	})
	if err != nil {
		g.logger.Warn("classification request failed",
			zap.String("category", category.String()), zap.Error(err))
		return activity.Verdict{}, fmt.Errorf("classify: completion failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return activity.Verdict{}, errEmptyCompletion
	}
	return parseVerdict(profile, response.Choices[0].Message.Content, displayName)
}

// parseVerdict turns the model's prefixed answer into a Verdict with the
// category's reply framing applied. An empty answer is a gateway fault, not a
// rejection: it must not cost the member an attempt.
func parseVerdict(profile promptProfile, answer, displayName string) (activity.Verdict, error) {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return activity.Verdict{}, errEmptyCompletion
	}

	valid := strings.HasPrefix(strings.ToUpper(trimmed), profile.acceptPrefix)
	comment := trimmed
	if idx := strings.Index(trimmed, ":"); idx >= 0 {
		comment = strings.TrimSpace(trimmed[idx+1:])
	}

	wrap := profile.rejectedWrap
	if valid {
		wrap = profile.acceptedWrap
	}
	return activity.Verdict{
		Valid:    valid,
		Feedback: fmt.Sprintf(wrap, displayName, comment),
	}, nil
}
