// internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
	"github.com/xkilldash9x/periscope-cli/internal/llmclient"
)

// Agent owns one session: it drives the observe/infer/execute loop until the
// model terminates, a fatal error occurs, or the step budget runs out.
type Agent struct {
	cfg      config.AgentConfig
	logger   *zap.Logger
	client   schemas.InferenceClient
	executor schemas.ActionExecutor
	// sink persists per-step screenshots; nil disables persistence.
	sink   schemas.ObservationSink
	window *Window

	sessionID string
	task      string

	mu     sync.Mutex
	status schemas.SessionStatus
}

// New assembles an agent for a single task. The sessionID correlates logs,
// screenshots, and the run report with the underlying browser session.
func New(
	sessionID string,
	task string,
	cfg config.AgentConfig,
	client schemas.InferenceClient,
	executor schemas.ActionExecutor,
	sink schemas.ObservationSink,
	logger *zap.Logger,
) (*Agent, error) {
	window, err := NewWindow(cfg.ContextWindow)
	if err != nil {
		return nil, err
	}

	return &Agent{
		cfg:       cfg,
		logger:    logger.Named("agent").With(zap.String("session_id", sessionID)),
		client:    client,
		executor:  executor,
		sink:      sink,
		window:    window,
		sessionID: sessionID,
		task:      task,
		status:    schemas.StatusRunning,
	}, nil
}

// Status returns the session's current state machine value.
func (a *Agent) Status() schemas.SessionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// updateStatus applies a state transition. Terminal statuses are final;
// attempts to leave one are logged and ignored.
func (a *Agent) updateStatus(next schemas.SessionStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status == next {
		return
	}
	if a.status.Terminal() {
		a.logger.Warn("Ignoring transition out of a terminal status.",
			zap.String("current", string(a.status)),
			zap.String("attempted", string(next)))
		return
	}

	a.logger.Debug("Session status transition.",
		zap.String("from", string(a.status)),
		zap.String("to", string(next)))
	a.status = next
}

// Run executes the session to completion. The returned error is non-nil only
// for fatal failures; reaching the step limit is a distinct non-error outcome
// reported through the result's Status.
func (a *Agent) Run(ctx context.Context) (schemas.RunResult, error) {
	start := time.Now()
	a.logger.Info("Session starting.",
		zap.String("task", a.task),
		zap.String("start_url", a.cfg.StartURL),
		zap.Int("max_steps", a.cfg.MaxSteps))

	a.window.Reset()

	var (
		steps       int
		answer      string
		finalURL    string
		consecutive int
		runErr      error
	)

	current, err := a.initialObservation(ctx)
	if err != nil {
		a.updateStatus(schemas.StatusFailed)
		return a.result(start, steps, answer, finalURL), err
	}
	finalURL = current.URL
	a.saveObservation(0, current)

	for a.Status() == schemas.StatusRunning {
		if err := ctx.Err(); err != nil {
			a.updateStatus(schemas.StatusFailed)
			runErr = fmt.Errorf("session interrupted: %w", err)
			break
		}

		action, err := a.decide(ctx, current)
		if err != nil {
			a.updateStatus(schemas.StatusFailed)
			runErr = err
			break
		}

		a.logger.Info("Model proposed an action.",
			zap.Int("step", steps+1),
			zap.String("action", action.String()),
			zap.String("reasoning", action.Reasoning))

		if action.Kind == schemas.ActionTerminate {
			a.logger.Info("Model terminated the session.")
			a.updateStatus(schemas.StatusSucceeded)
			break
		}
		if action.Kind == schemas.ActionAnswer {
			answer = action.Text
			a.logger.Info("Model answered the task.", zap.String("answer", answer))
			a.updateStatus(schemas.StatusSucceeded)
			break
		}

		obs, execErr := a.executor.Execute(ctx, action)
		steps++

		turn := schemas.Turn{Observation: current, Action: action}
		if execErr != nil {
			turn.ExecError = execErr.Error()
			consecutive++
			a.logger.Warn("Action failed; recording the failure for the model.",
				zap.Int("step", steps),
				zap.Int("consecutive_failures", consecutive),
				zap.Error(execErr))
		} else {
			consecutive = 0
		}
		a.window.Append(turn)

		// On failure the observation is best effort; fall back to the last
		// good one so the model still sees a page.
		if execErr == nil || obs.URL != "" || len(obs.Image) > 0 {
			current = obs
		}
		if obs.URL != "" {
			finalURL = obs.URL
		}
		a.saveObservation(steps, obs)

		if execErr != nil && consecutive >= a.cfg.FailureTolerance {
			a.updateStatus(schemas.StatusFailed)
			runErr = fmt.Errorf("%d consecutive action failures, model is stuck: %w", consecutive, execErr)
			break
		}

		if steps >= a.cfg.MaxSteps {
			a.logger.Warn("Step limit reached.", zap.Int("max_steps", a.cfg.MaxSteps))
			a.updateStatus(schemas.StatusStepLimitReached)
			break
		}
	}

	res := a.result(start, steps, answer, finalURL)
	a.logger.Info("Session finished.",
		zap.String("status", string(res.Status)),
		zap.Int("steps", res.Steps),
		zap.Duration("elapsed", res.Elapsed))
	return res, runErr
}

// initialObservation loads the starting page and captures the first state
// the model sees.
func (a *Agent) initialObservation(ctx context.Context) (schemas.Observation, error) {
	if err := a.executor.Navigate(ctx, a.cfg.StartURL); err != nil {
		return schemas.Observation{}, fmt.Errorf("loading start url %s: %w", a.cfg.StartURL, err)
	}
	obs, err := a.executor.Observe(ctx)
	if err != nil {
		return schemas.Observation{}, fmt.Errorf("capturing initial observation: %w", err)
	}
	return obs, nil
}

// decide asks the model for the next action. A malformed response earns
// exactly one corrective retry; the second failure is fatal.
func (a *Agent) decide(ctx context.Context, current schemas.Observation) (schemas.Action, error) {
	req := schemas.InferenceRequest{
		Task:    a.task,
		History: a.window.Render(),
		Current: current,
	}

	action, err := a.client.Infer(ctx, req)
	if err == nil {
		return action, nil
	}
	if !errors.Is(err, schemas.ErrMalformedAction) {
		return schemas.Action{}, fmt.Errorf("inference failed: %w", err)
	}

	a.logger.Warn("Model response was malformed; retrying once with a corrective note.", zap.Error(err))
	req.Corrective = correctiveNote(err)

	action, retryErr := a.client.Infer(ctx, req)
	if retryErr != nil {
		return schemas.Action{}, fmt.Errorf("inference failed after corrective retry: %w", retryErr)
	}
	return action, nil
}

// correctiveNote renders the malformed response into the note injected into
// the retried prompt.
func correctiveNote(err error) string {
	var malformed *schemas.MalformedActionError
	if errors.As(err, &malformed) {
		return llmclient.CorrectiveNote(malformed)
	}
	return "Your previous reply could not be used. Respond with exactly one JSON action object."
}

func (a *Agent) saveObservation(step int, obs schemas.Observation) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Save(step, obs); err != nil {
		a.logger.Warn("Could not persist screenshot.", zap.Int("step", step), zap.Error(err))
	}
}

func (a *Agent) result(start time.Time, steps int, answer, finalURL string) schemas.RunResult {
	return schemas.RunResult{
		SessionID: a.sessionID,
		Task:      a.task,
		Status:    a.Status(),
		Answer:    answer,
		Steps:     steps,
		FinalURL:  finalURL,
		Elapsed:   time.Since(start),
	}
}
