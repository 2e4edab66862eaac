// Package score keeps the best result per timed tool. The calculation tools
// never read or write it.
package score

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ToolCPS    = "cps"
	ToolTyping = "typing"

	KeyCPSBest       = "cps-best"
	KeyTypingBestWPM = "typing-best-wpm"
)

var (
	// ErrUnknownTool is returned for tools that do not keep a best score.
	ErrUnknownTool = errors.New("score: unknown tool")
	// ErrInvalidScore rejects negative or non-finite scores.
	ErrInvalidScore = errors.New("score: invalid score")
)

// Store persists one float per key.
type Store interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, value float64) error
}

// KeyFor maps a tool name to its storage key.
func KeyFor(tool string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tool)) {
	case ToolCPS:
		return KeyCPSBest, nil
	case ToolTyping:
		return KeyTypingBestWPM, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
}
