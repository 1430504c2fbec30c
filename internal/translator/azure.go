package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAzureEndpoint = "https://api.cognitive.microsofttranslator.com"

// Azure Text Translation v3 caps a request at 100 texts and 50 000
// characters across all texts.
const (
	azureMaxTexts = 100
	azureMaxChars = 50000
)

// AzureService translates through the Azure Translator v3 REST API.
type AzureService struct {
	apiKey   string
	endpoint string
	region   string
	client   *http.Client
}

func NewAzureService(apiKey, endpoint, region string) *AzureService {
	if endpoint == "" {
		endpoint = defaultAzureEndpoint
	}
	return &AzureService{
		apiKey:   apiKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		region:   region,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *AzureService) Name() string { return "azure" }

func (s *AzureService) Limits() BatchLimits {
	return BatchLimits{MaxTexts: azureMaxTexts, MaxChars: azureMaxChars}
}

type azureTranslation struct {
	DetectedLanguage struct {
		Language string  `json:"language"`
		Score    float64 `json:"score"`
	} `json:"detectedLanguage"`
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

func (s *AzureService) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if s.apiKey == "" {
		return nil, &ProviderError{Provider: s.Name(), Message: "API key required"}
	}

	params := url.Values{}
	params.Set("api-version", "3.0")
	params.Set("to", targetLang)
	if sourceLang != "" && sourceLang != "auto" {
		params.Set("from", sourceLang)
	}

	body := make([]map[string]string, len(texts))
	for i, t := range texts {
		body[i] = map[string]string{"Text": t}
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Message: "failed to marshal request", Err: err}
	}

	reqURL := fmt.Sprintf("%s/translate?%s", s.endpoint, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", s.apiKey)
	if s.region != "" {
		httpReq.Header.Set("Ocp-Apim-Subscription-Region", s.region)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = "translation request rejected"
		}
		return nil, &ProviderError{Provider: s.Name(), Code: resp.StatusCode, Message: msg}
	}

	var translations []azureTranslation
	if err := json.NewDecoder(resp.Body).Decode(&translations); err != nil {
		return nil, &ProviderError{Provider: s.Name(), Message: "failed to decode response", Err: err}
	}
	if len(translations) != len(texts) {
		return nil, &ProviderError{
			Provider: s.Name(),
			Message:  fmt.Sprintf("got %d translations for %d texts", len(translations), len(texts)),
		}
	}

	results := make([]Result, len(texts))
	for i, tr := range translations {
		if len(tr.Translations) == 0 {
			return nil, &ProviderError{Provider: s.Name(), Message: fmt.Sprintf("no translation for text %d", i)}
		}
		results[i] = Result{
			Text:             tr.Translations[0].Text,
			DetectedLanguage: tr.DetectedLanguage.Language,
		}
	}
	return results, nil
}
