package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash-lite"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.10
	geminiOutputPricePerMillion = 0.40
)

var tagPrompt = strings.TrimSpace(dedent.Dedent(`
	Analyze this photo of a clothing item or accessory for a wardrobe catalog.

	Respond in JSON format with these fields:
	- tags: 3-8 short English phrases describing the item. Start with the most specific
	  description of the garment itself (for example "Navy wool blazer, slim fit"),
	  then mention material, color, season and occasion when you can tell.
	- labels: single lowercase keywords for the item (garment type, color, material, brand).
	  Include a brand only if a logo or label is clearly visible.

	Example response:
	{"tags": ["Blue cotton t-shirt, crew neck", "casual summer wear"], "labels": ["t-shirt", "blue", "cotton"]}

	Respond ONLY with the JSON object, no markdown or other text.
`))

// GeminiProvider tags images with Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini provider authenticated with apiKey.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: geminiModel}, nil
}

func (g *GeminiProvider) Name() string { return "gemini" }

// Analyze implements Provider using structured JSON output.
func (g *GeminiProvider) Analyze(ctx context.Context, img Image) (*ProviderResult, error) {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(tagPrompt),
			{InlineData: &genai.Blob{Data: img.Data, MIMEType: mimeType}},
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   tagSchema(),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, providerErr(g.Name(), KindUnavailable, fmt.Errorf("failed to generate content: %w", err))
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, providerErr(g.Name(), KindEmpty, fmt.Errorf("no response from Gemini"))
	}

	if result.UsageMetadata != nil {
		input := int64(result.UsageMetadata.PromptTokenCount)
		output := int64(result.UsageMetadata.CandidatesTokenCount)
		log.Info().
			Str("model", g.model).
			Int64("inputTokens", input).
			Int64("outputTokens", output).
			Float64("costUSD", calculateCost(input, output, geminiInputPricePerMillion, geminiOutputPricePerMillion)).
			Msg("vision llm call")
	}

	return parseTagResponse(g.Name(), result.Text())
}

func tagSchema() *genai.Schema {
	list := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: desc,
			Items:       &genai.Schema{Type: genai.TypeString},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"tags":   list("Short descriptive phrases, most specific first"),
			"labels": list("Single lowercase keywords"),
		},
		Required:         []string{"tags", "labels"},
		PropertyOrdering: []string{"tags", "labels"},
	}
}

func calculateCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}
