package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		sample string
		want   string
	}{
		{"The quick brown fox jumps over the lazy dog", "en"},
		{"这是一段中文文本，用来测试脚本检测。", "zh"},
		{"これはテストのための日本語の文章です。", "ja"},
		{"이것은 한국어 텍스트입니다.", "ko"},
		{"Это русский текст для проверки.", "ru"},
		{"هذا نص عربي للاختبار.", "ar"},
		{"Αυτό είναι ελληνικό κείμενο.", "el"},
	}
	for _, tt := range tests {
		lang, conf := Detect(tt.sample)
		if lang != tt.want {
			t.Errorf("Detect(%q) = %q (conf %.2f), want %q", tt.sample, lang, conf, tt.want)
		}
		if conf <= 0 {
			t.Errorf("Detect(%q) confidence %.2f, want > 0", tt.sample, conf)
		}
	}
}

func TestDetectEmptySample(t *testing.T) {
	lang, conf := Detect("12345 !!! ...")
	if lang != "" || conf != 0 {
		t.Errorf("got %q %.2f, want no detection for letterless sample", lang, conf)
	}
}

func TestDetectLatinLowConfidence(t *testing.T) {
	_, latinConf := Detect("Bonjour tout le monde")
	_, hanConf := Detect("你好世界你好世界")
	if latinConf >= hanConf {
		t.Errorf("latin confidence %.2f should be damped below unambiguous scripts %.2f", latinConf, hanConf)
	}
}

func TestValidatePair(t *testing.T) {
	src, dst, err := ValidatePair("FR", "en")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if src != "fr" || dst != "en" {
		t.Errorf("got %q %q, want canonical fr en", src, dst)
	}

	if _, _, err := ValidatePair("en", "en"); !errors.Is(err, ErrUnsupportedPair) {
		t.Errorf("identical pair: got %v, want ErrUnsupportedPair", err)
	}
	if _, _, err := ValidatePair("zz-not-a-language-!!", "en"); err == nil {
		t.Error("expected error for unparseable language")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Failure
	}{
		{nil, FailureNone},
		{ErrUnsupportedPair, FailureUnsupportedPair},
		{fmt.Errorf("wrapped: %w", ErrDownloadRequired), FailureDownloadRequired},
		{errors.New("connection refused"), FailureTransient},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestUserActionIsActionable(t *testing.T) {
	for _, f := range []Failure{FailureUnsupportedPair, FailureDownloadRequired, FailureTransient} {
		if UserAction(f) == "" {
			t.Errorf("failure %v has no user action", f)
		}
	}
	if UserAction(FailureNone) != "" {
		t.Error("no failure should mean no action")
	}
}

func TestClientTranslateBatching(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		batchSizes = append(batchSizes, len(req.Texts))
		out := make([]string, len(req.Texts))
		for i, text := range req.Texts {
			out[i] = strings.ToUpper(text)
		}
		json.NewEncoder(w).Encode(translateResponse{Translations: out})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBatchSize(2))

	var progress []int
	got, err := c.Translate(context.Background(), []string{"a", "b", "c"}, "fr", "en",
		func(done, total int) { progress = append(progress, done) })
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(got) != 3 || got[0] != "A" || got[2] != "C" {
		t.Errorf("got %v", got)
	}
	if len(batchSizes) != 2 || batchSizes[0] != 2 || batchSizes[1] != 1 {
		t.Errorf("batch sizes %v, want [2 1]", batchSizes)
	}
	if len(progress) != 2 || progress[0] != 2 || progress[1] != 3 {
		t.Errorf("progress %v, want [2 3]", progress)
	}
}

func TestClientBackendFailureCodes(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"unsupported_pair", ErrUnsupportedPair},
		{"download_required", ErrDownloadRequired},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(translateResponse{Code: tt.code})
		}))
		c := NewClient(srv.URL)
		_, err := c.Translate(context.Background(), []string{"x"}, "fr", "en", nil)
		if !errors.Is(err, tt.want) {
			t.Errorf("code %q: got %v, want %v", tt.code, err, tt.want)
		}
		srv.Close()
	}
}

func TestClientLengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(translateResponse{Translations: []string{"only one"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Translate(context.Background(), []string{"a", "b"}, "fr", "en", nil)
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
	if Classify(err) != FailureTransient {
		t.Errorf("mismatch should classify transient, got %v", Classify(err))
	}
}

func TestClientRejectsInvalidPairBeforeRequest(t *testing.T) {
	c := NewClient("http://localhost:0")
	_, err := c.Translate(context.Background(), []string{"x"}, "en", "en", nil)
	if !errors.Is(err, ErrUnsupportedPair) {
		t.Errorf("got %v, want ErrUnsupportedPair without any request", err)
	}
}
