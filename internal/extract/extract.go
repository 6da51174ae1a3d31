// Package extract turns a free-text status message into structured responder
// intent using a hosted chat-completion model. Every call yields either a
// well-formed extraction or the explicit Unknown fallback; semantic failures
// are accepted as low confidence and never retried.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"respondr/internal/classify"
	"respondr/internal/domain"
	"respondr/internal/observability"
)

// Client is the slice of the OpenAI client the engine uses.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PriorState is one entry of the sender's recent extracted state, fed back
// into the prompt for vehicle continuity.
type PriorState struct {
	Vehicle string
	Status  domain.ArrivalStatus
}

type Input struct {
	Name  string
	Text  string
	Ref   time.Time
	Prior []PriorState
}

type Result struct {
	Vehicle    string
	ETARaw     string
	Cues       []string
	Confidence float64
}

// Fallback is the closed-world escape hatch: what every failed extraction
// collapses to.
func Fallback() Result {
	return Result{Vehicle: domain.VehicleUnknown, Confidence: 0}
}

type Engine struct {
	Client     Client
	Model      string
	Vocab      *Vocabulary
	MaxRetries int           // transport retries after the first attempt
	Timeout    time.Duration // per-call; must stay under the queue visibility timeout
	Limiter    *rate.Limiter
	Breaker    *gobreaker.CircuitBreaker
}

// modelReply mirrors the JSON object the prompt instructs the model to emit.
type modelReply struct {
	Vehicle    string   `json:"vehicle"`
	ETA        string   `json:"eta"`
	Cues       []string `json:"cues"`
	Confidence float64  `json:"confidence"`
}

// Extract runs one extraction. The returned error is non-nil only when the
// surrounding context is done, so a shutdown mid-call does not persist a bogus
// Unknown record; every other failure mode returns the fallback.
func (e *Engine) Extract(ctx context.Context, in Input) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model:       e.Model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.systemPrompt(in.Ref)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(in)},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= e.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Fallback(), err
		}
		if e.Limiter != nil {
			waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
			err := e.Limiter.Wait(waitCtx)
			cancelWait()
			if err != nil {
				observability.ExtractionCalls.WithLabelValues("rate_limited", "0").Inc()
				time.Sleep(200 * time.Millisecond)
				continue
			}
		}

		start := time.Now()
		resp, err := e.complete(ctx, req)
		if err == nil {
			observability.ExtractionLatency.Observe(time.Since(start).Seconds())
			return e.parse(ctx, resp, in), nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Provider protection tripped; fall back now rather than queueing
			// behind a broken upstream.
			observability.ExtractionCalls.WithLabelValues("cb_open", "0").Inc()
			break
		}
		observability.ExtractionCalls.WithLabelValues("transport_error", httpStatusLabel(err)).Inc()
		if !ShouldRetry(err) {
			break
		}
		time.Sleep(Backoff(attempt))
	}

	if err := ctx.Err(); err != nil {
		return Fallback(), err
	}
	slog.Warn("extraction fell back to unknown", "err", lastErr)
	return Fallback(), nil
}

func (e *Engine) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	call := func() (any, error) {
		callCtx := ctx
		if e.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.Timeout)
			defer cancel()
		}
		return e.Client.CreateChatCompletion(callCtx, req)
	}
	if e.Breaker == nil {
		resp, err := call()
		if err != nil {
			return openai.ChatCompletionResponse{}, err
		}
		return resp.(openai.ChatCompletionResponse), nil
	}
	resp, err := e.Breaker.Execute(call)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return resp.(openai.ChatCompletionResponse), nil
}

// parse validates the model reply. Anything malformed is a semantic failure:
// counted, logged, and collapsed to the fallback without a retry.
func (e *Engine) parse(ctx context.Context, resp openai.ChatCompletionResponse, in Input) Result {
	if len(resp.Choices) == 0 {
		observability.ExtractionCalls.WithLabelValues("semantic_fallback", "0").Inc()
		return Fallback()
	}
	var reply modelReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reply); err != nil {
		observability.ExtractionCalls.WithLabelValues("semantic_fallback", "0").Inc()
		slog.WarnContext(ctx, "extraction reply was not valid json", "err", err)
		return Fallback()
	}

	out := Result{
		Vehicle:    e.Vocab.Normalize(reply.Vehicle),
		ETARaw:     strings.TrimSpace(reply.ETA),
		Confidence: clamp01(reply.Confidence),
	}
	for _, c := range reply.Cues {
		switch c {
		case classify.CueCancelled, classify.CueNotResponding, classify.CueAvailable, classify.CueInformational:
			out.Cues = append(out.Cues, c)
		}
	}
	observability.ExtractionCalls.WithLabelValues("ok", "200").Inc()
	return out
}

func (e *Engine) systemPrompt(ref time.Time) string {
	var b strings.Builder
	b.WriteString("You extract search-and-rescue responder intent from a single group chat message.\n")
	fmt.Fprintf(&b, "The message was received at %s. Interpret relative times against that instant.\n", ref.Format("2006-01-02 15:04 MST (Monday)"))
	fmt.Fprintf(&b, "Known unit codes: %s. Other vehicle values: %q (personal vehicle), %q, %q.\n",
		strings.Join(e.Vocab.Units(), ", "), domain.VehiclePOV, domain.VehicleUnknown, domain.VehicleNotResponding)
	b.WriteString(`Reply with one JSON object only:
{"vehicle": "<one of the values above>", "eta": "<the ETA expression verbatim, or empty>", "cues": [<zero or more of "cancelled", "not_responding", "available", "informational">], "confidence": <0..1>}
Do not invent an ETA. Do not reword the ETA expression. A message with no dispatch content gets the "informational" cue.`)
	return b.String()
}

func userPrompt(in Input) string {
	var b strings.Builder
	if len(in.Prior) > 0 {
		b.WriteString("Sender's recent extracted state, newest first:\n")
		for _, p := range in.Prior {
			fmt.Fprintf(&b, "- vehicle=%s status=%s\n", p.Vehicle, p.Status)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s: %s", in.Name, in.Text)
	return b.String()
}

func httpStatusLabel(err error) string {
	var ae *openai.APIError
	if errors.As(err, &ae) {
		return strconv.Itoa(ae.HTTPStatusCode)
	}
	return "0"
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
