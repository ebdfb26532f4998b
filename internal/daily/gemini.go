package daily

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	appLog "auracal/internal/log"
	"auracal/internal/model"
)

const (
	DefaultTextModel  = "gemini-3-flash-preview"
	DefaultImageModel = "gemini-2.5-flash-image"
)

// generator is the subset of *genai.Models used by GeminiProvider.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOptions configures the Gemini-backed provider.
type GeminiOptions struct {
	APIKey     string
	TextModel  string
	ImageModel string
}

// GeminiProvider implements Provider on top of the Gemini API: one grounded,
// schema-constrained JSON request for the daily payload and one image
// request for the banner.
type GeminiProvider struct {
	models     generator
	textModel  string
	imageModel string
}

// NewGeminiProvider creates a Gemini API client.
func NewGeminiProvider(ctx context.Context, opts GeminiOptions) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("daily: gemini API key is empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("daily: create gemini client: %w", err)
	}
	return newGeminiProvider(client.Models, opts), nil
}

func newGeminiProvider(models generator, opts GeminiOptions) *GeminiProvider {
	p := &GeminiProvider{
		models:     models,
		textModel:  opts.TextModel,
		imageModel: opts.ImageModel,
	}
	if p.textModel == "" {
		p.textModel = DefaultTextModel
	}
	if p.imageModel == "" {
		p.imageModel = DefaultImageModel
	}
	return p
}

// Fetch requests the DailyInfo payload for today.
func (p *GeminiProvider) Fetch(ctx context.Context, today time.Time) (model.DailyInfo, error) {
	var info model.DailyInfo

	resp, err := p.models.GenerateContent(ctx, p.textModel, genai.Text(dailyPrompt(today)), &genai.GenerateContentConfig{
		Tools:            []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   dailyInfoSchema(),
	})
	if err != nil {
		return info, fmt.Errorf("daily: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return info, errors.New("daily: empty model response")
	}
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		return model.DailyInfo{}, fmt.Errorf("daily: decode model response: %w", err)
	}
	if err := info.Validate(); err != nil {
		return model.DailyInfo{}, err
	}

	appLog.Info("daily info fetched", "date", info.GregorianDate, "news_count", len(info.News), "model", p.textModel)
	return info, nil
}

// BannerAspectRatio matches the 16:9 image slot of the page and the poster.
const BannerAspectRatio = "16:9"

// GenerateBanner asks the image model for a background matching the quote.
// It returns (nil, nil) when the response carries no image.
func (p *GeminiProvider) GenerateBanner(ctx context.Context, info model.DailyInfo) ([]byte, error) {
	resp, err := p.models.GenerateContent(ctx, p.imageModel, genai.Text(bannerPrompt(info)), &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: BannerAspectRatio},
	})
	if err != nil {
		return nil, fmt.Errorf("daily: generate banner: %w", err)
	}

	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, nil
}

func dailyPrompt(today time.Time) string {
	yesterday := today.AddDate(0, 0, -1).Format("2006-01-02")

	var b strings.Builder
	fmt.Fprintf(&b, "今天是 %s。请作为一名中国文化与新闻专家，提供以下信息：\n", today.Format("2006-01-02"))
	b.WriteString("1. 基础日期信息：今日公历、星期、中国阴历、节日和二十四节气。\n")
	b.WriteString("2. 计算：距离本周六（周末）还有几天，距离最近的中国法定节假日还有几天。\n")
	b.WriteString("3. 每日知识：如果今天是节日或节气，分享一句相关的中国诗词歌赋；否则，分享一句来自理论书籍、小说、散文、自传、电影或剧集的名言。\n")
	fmt.Fprintf(&b, "4. 每日新闻：使用 Google Search 搜索 %s（昨天）发生的以下五个板块声量最高的一条新闻，并为每条新闻提供其来源网页的真实 URL：\n", yesterday)
	for _, c := range NewsCategories {
		fmt.Fprintf(&b, "   - %s\n", c)
	}
	b.WriteString("请严格按照指定的 JSON 格式返回。确保新闻 URL 是真实有效的原始新闻链接。\n")
	return b.String()
}

func bannerPrompt(info model.DailyInfo) string {
	style := "The style should be minimalist, cinematic, or abstract photography."
	if info.Knowledge.IsPoetry {
		style = "The style should be traditional Chinese ink wash painting or elegant Guofeng aesthetic."
	}

	return strings.Join([]string{
		"Create a high-end, atmospheric background image for a mobile app card, 16:9 landscape.",
		fmt.Sprintf("The content of the card is: %q.", info.Knowledge.Content),
		style,
		"Focus on creating a mood that matches the words.",
		"NO TEXT or readable letters in the image.",
		"Cinematic lighting, high resolution, professional artistic quality.",
		"The image will serve as a background for text overlay, so avoid high contrast in the center.",
	}, "\n")
}

func dailyInfoSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	nullable := true

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"gregorianDate": str("YYYY-MM-DD format"),
			"weekday":       str(""),
			"lunarDate":     str("e.g., 腊月初八"),
			"festivals":     {Type: genai.TypeArray, Items: str("")},
			"solarTerm":     {Type: genai.TypeString, Nullable: &nullable},
			"daysToWeekend": {Type: genai.TypeInteger},
			"nextHoliday": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":          str(""),
					"daysRemaining": {Type: genai.TypeInteger},
					"date":          str(""),
				},
				Required: []string{"name", "daysRemaining", "date"},
			},
			"knowledge": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"content":  str(""),
					"author":   str(""),
					"source":   str(""),
					"isPoetry": {Type: genai.TypeBoolean},
				},
				Required: []string{"content", "source", "isPoetry"},
			},
			"news": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"category": str(""),
						"title":    str(""),
						"summary":  str(""),
						"source":   str(""),
						"url":      str("The actual source URL of the news article"),
					},
					Required: []string{"category", "title", "summary", "source", "url"},
				},
			},
		},
		Required: []string{
			"gregorianDate", "weekday", "lunarDate", "festivals", "daysToWeekend",
			"nextHoliday", "knowledge", "news",
		},
	}
}
