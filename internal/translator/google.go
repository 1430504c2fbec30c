package translator

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// Google's v2 API accepts up to 128 segments per call; keep the character
// bound conservative to stay clear of the request size limit.
const (
	googleMaxTexts = 128
	googleMaxChars = 30000
)

// GoogleService translates through the Google Cloud Translation API.
type GoogleService struct {
	credentialsFile string
}

func NewGoogleService(credentialsFile string) *GoogleService {
	return &GoogleService{credentialsFile: credentialsFile}
}

func (s *GoogleService) Name() string { return "google" }

func (s *GoogleService) Limits() BatchLimits {
	return BatchLimits{MaxTexts: googleMaxTexts, MaxChars: googleMaxChars}
}

func (s *GoogleService) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	targetTag, err := language.Parse(targetLang)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Message: fmt.Sprintf("invalid target language %q", targetLang), Err: err}
	}

	var opts []option.ClientOption
	if s.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentialsFile))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Message: "failed to create client", Err: err}
	}
	defer client.Close()

	var transOpts *translate.Options
	if sourceLang != "" && sourceLang != "auto" {
		sourceTag, err := language.Parse(sourceLang)
		if err != nil {
			return nil, &ProviderError{Provider: s.Name(), Message: fmt.Sprintf("invalid source language %q", sourceLang), Err: err}
		}
		transOpts = &translate.Options{Source: sourceTag}
	}

	translations, err := client.Translate(ctx, texts, targetTag, transOpts)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Message: "translation failed", Err: err}
	}
	if len(translations) != len(texts) {
		return nil, &ProviderError{
			Provider: s.Name(),
			Message:  fmt.Sprintf("got %d translations for %d texts", len(translations), len(texts)),
		}
	}

	results := make([]Result, len(translations))
	for i, tr := range translations {
		results[i] = Result{
			Text:             tr.Text,
			DetectedLanguage: tr.Source.String(),
		}
	}
	return results, nil
}
