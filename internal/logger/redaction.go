package logger

import (
	"io"
	"regexp"
)

// Redactor scrubs credentials from log output before it reaches a sink.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor covering the credential shapes this
// process actually handles: LLM API keys, telegram bot tokens, bearer
// tokens and generic secret assignments.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
			regexp.MustCompile(`\d{8,10}:[a-zA-Z0-9_-]{30,}`),
			regexp.MustCompile(`(?i)(password|secret|token|api_key)["\s:=]+[^\s",}]+`),
		},
	}
}

// AddPattern adds a custom redaction pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact scrubs sensitive values from a string.
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// Wrap returns a writer that redacts everything written through it.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	redacted := w.redactor.Redact(string(p))
	if _, err := w.writer.Write([]byte(redacted)); err != nil {
		return 0, err
	}
	// Report the original length so zerolog never sees a short write when
	// redaction shrinks the line.
	return len(p), nil
}
