// Package llm implements the LLM Backend Interface (spec §4.7): a
// pluggable analyze capability with Local-HTTP, Remote-HTTP, and Mock
// variants, and a typed error taxonomy the Analyzer dispatches on.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/baikal/sentinel/internal/model"
	"github.com/baikal/sentinel/internal/prompt"
)

// ErrorKind classifies why a backend call failed.
type ErrorKind int

const (
	Timeout ErrorKind = iota
	Transport
	AuthFailure
	ParseFailure
	BackendRefusal
)

func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case Transport:
		return "transport"
	case AuthFailure:
		return "auth_failure"
	case ParseFailure:
		return "parse_failure"
	case BackendRefusal:
		return "backend_refusal"
	default:
		return "unknown"
	}
}

// AnalysisError wraps a backend failure with its classification.
type AnalysisError struct {
	Kind ErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Backend is the capability every variant implements.
type Backend interface {
	Analyze(ctx context.Context, tc model.TriggerContext) (model.Insight, error)
}

const defaultTimeout = 60 * time.Second

// LocalHTTP posts the rendered prompt to a local endpoint and extracts
// the Insight from the response text.
type LocalHTTP struct {
	Endpoint string
	Model    string
	Client   *http.Client
	Timeout  time.Duration

	now func() time.Time
}

// NewLocalHTTP creates a Local-HTTP backend with the default timeout.
func NewLocalHTTP(endpoint, modelName string) *LocalHTTP {
	return &LocalHTTP{Endpoint: endpoint, Model: modelName, Client: http.DefaultClient, Timeout: defaultTimeout, now: time.Now}
}

type localRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localResponse struct {
	Response string `json:"response"`
}

func (b *LocalHTTP) Analyze(ctx context.Context, tc model.TriggerContext) (model.Insight, error) {
	timeout := b.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(localRequest{Model: b.Model, Prompt: prompt.Render(tc)})
	if err != nil {
		return model.Insight{}, &AnalysisError{Kind: Transport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Insight{}, &AnalysisError{Kind: Transport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	return doCall(b.client(), req, b.clock())
}

func (b *LocalHTTP) clock() func() time.Time {
	if b.now != nil {
		return b.now
	}
	return time.Now
}

func (b *LocalHTTP) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}

// RemoteHTTP adds an authorization header and a model identifier on
// top of the Local-HTTP wire shape.
type RemoteHTTP struct {
	Endpoint string
	Model    string
	APIKey   string
	Client   *http.Client
	Timeout  time.Duration

	now func() time.Time
}

// NewRemoteHTTP creates a Remote-HTTP-Authenticated backend with the
// default timeout.
func NewRemoteHTTP(endpoint, modelName, apiKey string) *RemoteHTTP {
	return &RemoteHTTP{Endpoint: endpoint, Model: modelName, APIKey: apiKey, Client: http.DefaultClient, Timeout: defaultTimeout, now: time.Now}
}

func (b *RemoteHTTP) Analyze(ctx context.Context, tc model.TriggerContext) (model.Insight, error) {
	timeout := b.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(localRequest{Model: b.Model, Prompt: prompt.Render(tc)})
	if err != nil {
		return model.Insight{}, &AnalysisError{Kind: Transport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Insight{}, &AnalysisError{Kind: Transport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.APIKey)

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	return doCall(client, req, now)
}

func doCall(client *http.Client, req *http.Request, now func() time.Time) (model.Insight, error) {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.Insight{}, &AnalysisError{Kind: Timeout, Err: err}
		}
		return model.Insight{}, &AnalysisError{Kind: Transport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return model.Insight{}, &AnalysisError{Kind: AuthFailure, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 500 {
		return model.Insight{}, &AnalysisError{Kind: BackendRefusal, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return model.Insight{}, &AnalysisError{Kind: Transport, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Insight{}, &AnalysisError{Kind: Transport, Err: err}
	}

	var wire localResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.Insight{}, &AnalysisError{Kind: ParseFailure, Err: err}
	}

	ins, err := prompt.Extract(wire.Response)
	if err != nil {
		return model.Insight{}, &AnalysisError{Kind: ParseFailure, Err: err}
	}
	ins.AnalysisTime = now()
	return ins, nil
}

// Mock returns a pre-configured sequence of results, in round-robin,
// and records call history for assertions.
type Mock struct {
	Results []MockResult

	// Now overrides the clock used to stamp AnalysisTime on a
	// successful result; nil uses time.Now.
	Now func() time.Time

	calls       int
	lastContext model.TriggerContext
}

// MockResult is either an Insight or an error to return from one call.
type MockResult struct {
	Insight model.Insight
	Err     error
}

func (m *Mock) Analyze(_ context.Context, tc model.TriggerContext) (model.Insight, error) {
	m.lastContext = tc
	if len(m.Results) == 0 {
		return model.Insight{}, &AnalysisError{Kind: BackendRefusal, Err: errors.New("mock has no configured results")}
	}
	r := m.Results[m.calls%len(m.Results)]
	m.calls++
	if r.Err != nil {
		return model.Insight{}, r.Err
	}
	if r.Insight.AnalysisTime.IsZero() {
		now := m.Now
		if now == nil {
			now = time.Now
		}
		r.Insight.AnalysisTime = now()
	}
	return r.Insight, nil
}

// CallCount returns the number of times Analyze has been invoked.
func (m *Mock) CallCount() int { return m.calls }

// LastContext returns the Trigger Context passed to the most recent call.
func (m *Mock) LastContext() model.TriggerContext { return m.lastContext }
