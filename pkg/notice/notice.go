// Package notice holds the error taxonomy shared by the API clients and the
// user-visible notices those errors are turned into.
package notice

import (
	"context"
	"errors"
	"net"
)

var (
	ErrDirectorySourceUnavailable = errors.New("domain directory unavailable")
	ErrKnowledgeSourceUnavailable = errors.New("knowledge source unavailable")
	ErrNoKnowledgeAvailable       = errors.New("no knowledge available")
	ErrCompletionFailed           = errors.New("completion failed")
	ErrTimeout                    = errors.New("timeout")
	ErrBusy                       = errors.New("a question is already being answered")
	ErrCrawlSubmissionFailed      = errors.New("crawl submission failed")
)

type Kind string

const (
	KindDirectorySourceUnavailable Kind = "DirectorySourceUnavailable"
	KindKnowledgeSourceUnavailable Kind = "KnowledgeSourceUnavailable"
	KindNoKnowledgeAvailable       Kind = "NoKnowledgeAvailable"
	KindCompletionFailed           Kind = "CompletionFailed"
	KindBusy                       Kind = "Busy"
	KindCrawlSubmissionFailed      Kind = "CrawlSubmissionFailed"
	KindInvalidInput               Kind = "InvalidInput"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a non-blocking message the UI must show.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Timeout bool   `json:"timeout,omitempty"`
}

var classes = []struct {
	err   error
	kind  Kind
	level Level
	text  string
}{
	{ErrDirectorySourceUnavailable, KindDirectorySourceUnavailable, LevelWarning, "Domain directory unavailable, showing demo companies"},
	{ErrKnowledgeSourceUnavailable, KindKnowledgeSourceUnavailable, LevelWarning, "Knowledge source unavailable, using demo knowledge"},
	{ErrNoKnowledgeAvailable, KindNoKnowledgeAvailable, LevelInfo, "No company knowledge available, answering without company context"},
	{ErrCompletionFailed, KindCompletionFailed, LevelError, "The language model call failed"},
	{ErrBusy, KindBusy, LevelWarning, "Still answering the previous question"},
	{ErrCrawlSubmissionFailed, KindCrawlSubmissionFailed, LevelError, "Crawl request was not accepted"},
}

// FromError returns one notice per taxonomy kind found in err's tree.
// Errors outside the taxonomy become a single InvalidInput error notice.
func FromError(err error) []Notice {
	if err == nil {
		return nil
	}
	timeout := IsTimeout(err)
	var out []Notice
	for _, c := range classes {
		if !errors.Is(err, c.err) {
			continue
		}
		n := Notice{Kind: c.kind, Level: c.level, Message: c.text, Timeout: timeout}
		if c.level == LevelError {
			n.Message = c.text + ": " + err.Error()
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		out = append(out, Notice{Kind: KindInvalidInput, Level: LevelError, Message: err.Error()})
	}
	return out
}

// IsTimeout reports deadline and net timeouts as well as wrapped ErrTimeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
