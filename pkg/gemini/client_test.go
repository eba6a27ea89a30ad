package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ca-risken/common/pkg/logging"
)

func newTestClient(baseURL string) GenerativeClient {
	return NewClient(&Config{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		ModelName: "test-model",
	}, logging.NewLogger())
}

func TestNewClientDefaults(t *testing.T) {
	c, ok := NewClient(&Config{APIKey: "test-key"}, logging.NewLogger()).(*geminiClient)
	if !ok {
		t.Fatal("unexpected client type")
	}
	if c.baseURL != defaultBaseURL {
		t.Fatalf("unexpected base url: %s", c.baseURL)
	}
	if c.modelName != defaultModel {
		t.Fatalf("unexpected model: %s", c.modelName)
	}
}

func TestGenerateContent(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		body       string
		want       string
		wantErr    bool
		check      func(error) bool
	}{
		{
			name:       "OK",
			statusCode: http.StatusOK,
			body:       `{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`,
			want:       "hello",
		},
		{
			name:       "NG(rate limited)",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`,
			wantErr:    true,
			check:      IsRateLimit,
		},
		{
			name:       "NG(bad request)",
			statusCode: http.StatusBadRequest,
			body:       `{"error":{"code":400,"message":"invalid argument","status":"INVALID_ARGUMENT"}}`,
			wantErr:    true,
			check:      func(err error) bool { return !IsRateLimit(err) && !IsNetwork(err) },
		},
		{
			name:       "NG(no candidates)",
			statusCode: http.StatusOK,
			body:       `{"candidates":[]}`,
			wantErr:    true,
			check:      IsParse,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("key") != "test-key" {
					t.Errorf("api key not sent: %s", r.URL.RawQuery)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(c.statusCode)
				_, _ = w.Write([]byte(c.body))
			}))
			defer ts.Close()

			got, err := newTestClient(ts.URL).GenerateContent(context.Background(), "prompt")
			if (err != nil) != c.wantErr {
				t.Fatalf("unexpected error state: wantErr=%v, err=%+v", c.wantErr, err)
			}
			if c.wantErr {
				if !c.check(err) {
					t.Fatalf("unexpected error classification: %+v", err)
				}
				return
			}
			if got != c.want {
				t.Fatalf("unexpected text: want=%q, got=%q", c.want, got)
			}
		})
	}
}
