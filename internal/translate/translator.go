package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Translator converts text into a target language. Implementations carry
// their own timeout/fallback contract; callers treat any error as "use the
// original text".
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// supported is the set of client language tags the translation service
// accepts. Anything else is matched to the closest tag, falling back to
// English.
var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Portuguese,
	language.Russian,
	language.Japanese,
	language.TraditionalChinese,
}

var matcher = language.NewMatcher(supported)

// NormalizeLang maps an arbitrary client language string onto a supported
// tag. Unparseable or unsupported input yields "en".
func NormalizeLang(raw string) string {
	tag, err := language.Parse(raw)
	if err != nil {
		return "en"
	}
	matched, _, _ := matcher.Match(tag)
	base, _ := matched.Base()
	return base.String()
}

// HTTPTranslator calls the external translation service over HTTP.
type HTTPTranslator struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

func NewHTTPTranslator(endpoint string, timeout time.Duration, log *zap.Logger) *HTTPTranslator {
	return &HTTPTranslator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

type translateResponse struct {
	Text string `json:"text"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	body, err := json.Marshal(translateRequest{Text: text, Target: targetLang})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation service returned %d", resp.StatusCode)
	}
	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// Noop passes text through unchanged. Used when no translation endpoint is
// configured and as the hard fallback provider.
type Noop struct{}

func (Noop) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

// OrFallback runs a time-boxed translation and returns the original text on
// timeout or error. The call is a suspension point; callers must not hold
// references into shared state across it.
func OrFallback(t Translator, text, targetLang string, timeout time.Duration, log *zap.Logger) string {
	if t == nil {
		return text
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	out, err := t.Translate(ctx, text, targetLang)
	if err != nil {
		log.Debug("翻譯失敗，使用原文", zap.Error(err))
		return text
	}
	return out
}
