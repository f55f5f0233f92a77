package llm

import (
	"askpaul-backend/internal/models"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrTransport marks failures where the provider could not be reached at all
// (DNS, refused connection, TLS, timeouts) as opposed to errors it returned.
var ErrTransport = errors.New("llm: provider unreachable")

// BlockKind is the type tag of a content block in a provider response.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockToolUse BlockKind = "tool_use"
)

// ContentBlock is one ordered piece of a provider response.
type ContentBlock struct {
	Kind BlockKind
	Text string
}

// Request is the provider-neutral completion request.
type Request struct {
	System    string
	Messages  []models.Turn
	MaxTokens int
}

// Response is the provider-neutral completion response.
type Response struct {
	Blocks     []ContentBlock
	Model      string
	StopReason string
}

// Provider issues a single blocking completion call.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// classify wraps err with ErrTransport when it comes from the network layer.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return err
}
