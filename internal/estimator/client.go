package estimator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fred-agent/internal/config"
	"fred-agent/internal/feature"
)

// Client 封装 OpenAI 调用逻辑。
type Client struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewClient 使用给定配置创建概率评估客户端。
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkConfig.BaseURL = cfg.BaseURL
	}
	sdkConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		sdk:    openai.NewClientWithConfig(sdkConfig),
	}, nil
}

// Estimate 根据技术特征获取模型的上涨概率评估。
func (c *Client) Estimate(ctx context.Context, features feature.Set) (Estimate, error) {
	if c.cfg.Model == "" {
		return Estimate{}, errors.New("openai model 不能为空")
	}

	prompt, err := BuildPrompt(features)
	if err != nil {
		return Estimate{}, err
	}

	response, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("调用OpenAI失败", zap.Error(err))
		return Estimate{}, fmt.Errorf("调用OpenAI失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return Estimate{}, errors.New("OpenAI 返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return Estimate{}, errors.New("OpenAI 返回内容为空")
	}

	estimate, err := parseEstimate(rawContent)
	if err != nil {
		c.logger.Error("解析模型评估失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return Estimate{}, err
	}

	if err := estimate.Validate(); err != nil {
		return Estimate{}, err
	}

	c.logger.Info("概率评估生成成功",
		zap.String("symbol", estimate.Symbol),
		zap.Float64("probability", estimate.Probability),
		zap.Float64("confidence", estimate.Confidence),
	)

	return estimate, nil
}

func parseEstimate(content string) (Estimate, error) {
	jsonPayload, err := extractJSON(content)
	if err != nil {
		return Estimate{}, err
	}

	var estimate Estimate
	if err = json.Unmarshal(jsonPayload, &estimate); err != nil {
		return Estimate{}, fmt.Errorf("解析评估JSON失败: %w", err)
	}

	return estimate, nil
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
