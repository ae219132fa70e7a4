package loader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/sells-group/election-map/internal/resilience"
)

// Kind classifies a load failure.
type Kind int

// Load failure kinds.
const (
	// SourceUnavailable: the remote boundary source could not be reached or refused the request.
	SourceUnavailable Kind = iota + 1
	// FileMissing: a local file does not exist.
	FileMissing
	// ParseFailure: the content could not be decoded or lacks a required column.
	ParseFailure
)

func (k Kind) String() string {
	switch k {
	case SourceUnavailable:
		return "source unavailable"
	case FileMissing:
		return "file missing"
	case ParseFailure:
		return "parse failure"
	default:
		return "unknown"
	}
}

// LoadError is the only error type the loader returns.
type LoadError struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loader: %s: %s: %v", e.Kind, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Advisory is the message shown to the user for this failure.
func (e *LoadError) Advisory() string {
	switch e.Kind {
	case SourceUnavailable:
		return fmt.Sprintf("Could not download %s from %s. Please try again later.", subject(e.Source), e.Source)
	case FileMissing:
		return fmt.Sprintf("Data file not found: %s", e.Source)
	case ParseFailure:
		return fmt.Sprintf("Could not read %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("Could not load %s.", e.Source)
	}
}

// Permanent reports whether retrying the same load cannot change the outcome.
// Cancelled requests and transient remote failures are not permanent.
func (e *LoadError) Permanent() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	if e.Kind == SourceUnavailable {
		return !resilience.IsTransient(e.Err)
	}
	return true
}

// AsLoadError extracts a *LoadError from err's chain.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

func newError(kind Kind, source string, err error) *LoadError {
	return &LoadError{Kind: kind, Source: source, Err: err}
}

// subject names what a source holds for user-facing messages.
func subject(source string) string {
	p := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".csv", ".xlsx":
		return "results data"
	default:
		return "boundary data"
	}
}
