// Package relay forwards a turn history plus the persona to the LLM provider and
// normalizes the reply. It holds no state between calls.
package relay

import (
	"askpaul-backend/internal/llm"
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/persona"
	"context"
	"errors"
	"fmt"
	"log"
)

// MaxOutputTokens bounds every generated reply.
const MaxOutputTokens = 1024

var (
	// ErrInvalidInput is returned for a nil/empty turn list or a malformed turn.
	// No provider call is made.
	ErrInvalidInput = errors.New("turns must be a non-empty list of user/assistant messages")

	// ErrTransport is matched by provider errors caused by the network layer.
	ErrTransport = errors.New("provider unreachable")
)

// ProviderError wraps any failure that happened during the provider call.
type ProviderError struct {
	Err       error
	Transport bool
}

func (e *ProviderError) Error() string {
	if e.Transport {
		return fmt.Sprintf("provider transport error: %v", e.Err)
	}
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) select transport failures.
func (e *ProviderError) Is(target error) bool {
	return target == ErrTransport && e.Transport
}

// Personalization carries optional hints about the user.
type Personalization struct {
	Name string
}

// Completion is the normalized provider reply.
// Empty is set when the provider returned no text block; that is not a failure.
type Completion struct {
	Text  string
	Empty bool
}

// Relay is the stateless completion relay.
type Relay struct {
	provider llm.Provider
}

// New creates a relay over the given provider.
func New(provider llm.Provider) *Relay {
	return &Relay{provider: provider}
}

// ValidateTurns checks the input constraint of Complete.
func ValidateTurns(turns []models.Turn) error {
	if len(turns) == 0 {
		return ErrInvalidInput
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("%w: turn %d has role %q", ErrInvalidInput, i, t.Role)
		}
	}
	return nil
}

// Complete issues exactly one provider call with the persona and the turns unmodified.
func (r *Relay) Complete(ctx context.Context, turns []models.Turn, p Personalization) (Completion, error) {
	if err := ValidateTurns(turns); err != nil {
		return Completion{}, err
	}

	req := llm.Request{
		System:    persona.Personalize(p.Name),
		Messages:  turns,
		MaxTokens: MaxOutputTokens,
	}

	resp, err := r.provider.Generate(ctx, req)
	if err != nil {
		perr := &ProviderError{Err: err, Transport: errors.Is(err, llm.ErrTransport)}
		log.Printf("ERROR [Relay] %s completion failed (%d turns): %v", r.provider.Name(), len(turns), perr)
		return Completion{}, perr
	}

	for _, block := range resp.Blocks {
		if block.Kind == llm.BlockText {
			return Completion{Text: block.Text}, nil
		}
	}

	log.Printf("WARN [Relay] %s returned no text block (stop_reason=%s)", r.provider.Name(), resp.StopReason)
	return Completion{Empty: true}, nil
}
