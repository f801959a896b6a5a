// Package translate defines the translation collaborators the engine
// consumes: an ordered batch translator, its failure taxonomy, and a
// best-effort language detector. Translation quality is someone else's
// problem; this package only carries text across and classifies failures
// into what the user can do about them.
package translate

import (
	"context"
	"errors"
)

// Progress reports batch completion while a translation runs. May be nil.
type Progress func(done, total int)

// Translator maps an ordered batch of texts to an ordered batch of
// translations. The result has exactly one entry per input, in order.
type Translator interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string, onProgress Progress) ([]string, error)
}

// ErrUnsupportedPair is terminal: the user must pick different languages.
var ErrUnsupportedPair = errors.New("translate: unsupported language pair")

// ErrDownloadRequired is recoverable only through a fresh user-initiated
// action: some backends grant privileged model downloads exclusively
// inside a direct user gesture.
var ErrDownloadRequired = errors.New("translate: model download required")

// Failure is the user-facing classification of a translation error.
type Failure int

const (
	FailureNone Failure = iota
	FailureUnsupportedPair
	FailureDownloadRequired
	FailureTransient
)

// Classify maps an error from Translate into the failure taxonomy.
// Anything not a known sentinel is transient: the user may retry.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrUnsupportedPair):
		return FailureUnsupportedPair
	case errors.Is(err, ErrDownloadRequired):
		return FailureDownloadRequired
	default:
		return FailureTransient
	}
}

// UserAction returns the actionable next step accompanying a failure.
// User-visible failures never ship as bare technical messages.
func UserAction(f Failure) string {
	switch f {
	case FailureUnsupportedPair:
		return "pick a different language pair"
	case FailureDownloadRequired:
		return "start the translation again to allow the model download"
	case FailureTransient:
		return "try again in a moment"
	default:
		return ""
	}
}
