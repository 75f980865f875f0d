// Package dispatch is the task-routing core. It maps each task type to an
// orchestration strategy over the provider gateway, structures the raw
// provider output, and funnels every request through a single Process
// entry point that always returns a well-formed response envelope.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/luna-svc/luna/internal/analytics"
	"github.com/luna-svc/luna/internal/mcp"
	"github.com/luna-svc/luna/internal/prompt"
	"github.com/luna-svc/luna/internal/provider"
	"github.com/luna-svc/luna/internal/session"
	"github.com/luna-svc/luna/internal/tokencount"
)

// Scorer derives a confidence score in [0,1] from provider output text.
type Scorer func(text string) float64

// DefaultScorer scores by response length. The thresholds are placeholders
// carried over from the original heuristic.
func DefaultScorer(text string) float64 {
	switch {
	case len(text) > 500:
		return 0.9
	case len(text) > 200:
		return 0.7
	default:
		return 0.5
	}
}

// Service composes the dispatcher with its collaborators. It is the
// process-wide facade: one instance is constructed at startup and shared
// across concurrent requests.
type Service struct {
	gateway   provider.Gateway
	builder   *prompt.Builder
	sessions  *session.Store
	analytics *analytics.Recorder
	scorer    Scorer
	tokens    tokencount.Counter
}

// NewService wires a Service. sessions and recorder are required; a nil
// scorer uses DefaultScorer and a nil counter uses the heuristic one.
func NewService(gateway provider.Gateway, sessions *session.Store, recorder *analytics.Recorder, scorer Scorer, tokens tokencount.Counter) *Service {
	if scorer == nil {
		scorer = DefaultScorer
	}
	if tokens == nil {
		tokens = tokencount.Heuristic{}
	}
	return &Service{
		gateway:   gateway,
		builder:   prompt.New(tokens),
		sessions:  sessions,
		analytics: recorder,
		scorer:    scorer,
		tokens:    tokens,
	}
}

// Process handles one request end to end. It never panics and never
// returns a malformed envelope: any internal failure becomes a
// status "error" response carrying the failure's message.
func (s *Service) Process(ctx context.Context, req mcp.Request) (resp mcp.Response) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in dispatch", "request_id", req.ID, "panic", r)
			resp = s.errorResponse(req, start, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := req.Normalize(); err != nil {
		return s.errorResponse(req, start, err.Error())
	}

	resp, err := s.route(ctx, req)
	if err != nil {
		resp = s.errorResponse(req, start, err.Error())
	} else {
		resp.RequestID = req.ID
		resp.Status = mcp.StatusSuccess
		resp.ExecutionTime = time.Since(start).Seconds()
		resp.CreatedAt = req.CreatedAt
		resp.CompletedAt = time.Now().UTC()
	}

	s.synthesizeVoiceIfRequested(ctx, req, &resp)
	s.recordOutcome(req, resp)
	return resp
}

// CreateSession allocates a fresh conversational session.
func (s *Service) CreateSession(userID, projectID, name string) (mcp.Session, error) {
	return s.sessions.Create(userID, projectID, name)
}

// ContinueConversation delivers a follow-up message into a session.
func (s *Service) ContinueConversation(ctx context.Context, sessionID, message string) (string, error) {
	return s.sessions.Continue(ctx, sessionID, message)
}

// ClearSession removes a session. Unknown ids are a no-op.
func (s *Service) ClearSession(sessionID string) {
	s.sessions.Clear(sessionID)
}

// GetSession looks a session up by id.
func (s *Service) GetSession(sessionID string) (mcp.Session, bool) {
	return s.sessions.Get(sessionID)
}

// Analytics computes aggregate statistics over the request log.
func (s *Service) Analytics(f analytics.Filter) mcp.AggregateStats {
	return s.analytics.Aggregate(f)
}

func (s *Service) errorResponse(req mcp.Request, start time.Time, msg string) mcp.Response {
	return mcp.Response{
		RequestID:     req.ID,
		Status:        mcp.StatusError,
		ErrorMessage:  msg,
		ExecutionTime: time.Since(start).Seconds(),
		CreatedAt:     req.CreatedAt,
		CompletedAt:   time.Now().UTC(),
	}
}

// synthesizeVoiceIfRequested is the cross-cutting voice pass: when the
// request's metadata asks for voice output and the chosen strategy did not
// already produce one, synthesize audio for the final explanation.
func (s *Service) synthesizeVoiceIfRequested(ctx context.Context, req mcp.Request, resp *mcp.Response) {
	if resp.VoiceOutput != "" || resp.Status != mcp.StatusSuccess {
		return
	}
	if !req.MetadataBool("include_voice") && !req.MetadataBool("voice_response") {
		return
	}
	if s.gateway.Voice == nil {
		slog.Warn("voice output requested but no voice capability configured", "request_id", req.ID)
		return
	}
	text := resp.Explanation
	if text == "" {
		text = resp.GeneratedCode
	}
	if text == "" {
		return
	}
	audio, err := s.gateway.Voice.Synthesize(ctx, text, req.ContextString("voice_profile"))
	if err != nil {
		slog.Warn("voice synthesis failed", "request_id", req.ID, "error", err)
		return
	}
	resp.VoiceOutput = encodeAudio(audio)
}

func (s *Service) recordOutcome(req mcp.Request, resp mcp.Response) {
	if s.analytics == nil {
		return
	}
	s.analytics.Record(mcp.AnalyticsRecord{
		UserID:       req.UserID,
		SessionID:    req.ContextString("session_id"),
		RequestID:    req.ID,
		TaskType:     req.TaskType,
		Language:     req.Language,
		Success:      resp.Status == mcp.StatusSuccess,
		ResponseTime: resp.ExecutionTime,
		TokensUsed:   resp.TokensUsed,
	})
}
