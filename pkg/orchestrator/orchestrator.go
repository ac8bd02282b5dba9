// Package orchestrator drives one generation run: it calls the backend with
// retries, keeps the client entertained with staged progress events while the
// call is in flight, and lands the thread in a terminal status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"animbridge/pkg/backend"
	"animbridge/pkg/logger"
	"animbridge/pkg/models"
	"animbridge/pkg/retry"
	"animbridge/pkg/store"
	"animbridge/pkg/telemetry"
	"animbridge/pkg/utils"
)

// Generator is the backend call the orchestrator retries.
type Generator interface {
	Generate(ctx context.Context, req backend.GenerateRequest) (backend.GenerateResponse, error)
}

// EmitFunc delivers one event to the client stream. A returned error means
// the client is gone; the run aborts but the thread outcome is still
// persisted.
type EmitFunc func(models.StreamEvent) error

// Orchestrator runs generation requests against a thread store.
type Orchestrator struct {
	Gen   Generator
	Store store.ThreadStore
	Retry retry.Config
	// StageInterval is the cadence of synthetic progress events while the
	// backend call is in flight. Zero disables them.
	StageInterval time.Duration
}

// stages are the progress texts cycled while the backend works. The last
// stage repeats until the call returns.
var stages = []string{
	"Analyzing your prompt...",
	"Generating animation...",
	"Rendering scene...",
}

// Run executes one generation for threadID using the latest human prompt.
// Progress, the terminal outcome and a final thread snapshot are emitted in
// order; the end-of-stream marker is the caller's job. The thread always
// lands in a terminal status, even when the client disconnects mid-run.
func (o *Orchestrator) Run(ctx context.Context, threadID, prompt string, emit EmitFunc) error {
	if err := o.Store.SetStatus(threadID, models.StatusGenerating); err != nil {
		return err
	}
	o.emitState(threadID, emit)
	_ = emit(models.StatusEvent("Starting generation..."))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if o.StageInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.stageLoop(runCtx, emit)
		}()
	}

	resp, err := retry.Do(runCtx, o.Retry, func(ctx context.Context) (backend.GenerateResponse, error) {
		return o.Gen.Generate(ctx, backend.GenerateRequest{Prompt: prompt, ThreadID: threadID})
	}, func(a retry.Attempt) {
		telemetry.ObserveRetry()
		logger.Warn("backend_retry", "thread", threadID, "attempt", a.Attempt, "max", a.MaxAttempts, "error", a.LastErr)
		_ = emit(models.StatusEvent(fmt.Sprintf("Backend busy, retrying (%d/%d)...", a.Attempt, a.MaxAttempts)))
	})

	// Stop staged progress before any terminal event goes out.
	cancel()
	wg.Wait()

	if err != nil {
		return o.fail(threadID, emit, err)
	}
	if resp.Error != "" || resp.GenerationStatus == "error" {
		msg := resp.Error
		if msg == "" {
			msg = "generation failed"
		}
		return o.fail(threadID, emit, errors.New(msg))
	}

	switch resp.GenerationStatus {
	case "conversation":
		return o.converse(threadID, resp, emit)
	case "completed":
		return o.complete(threadID, resp, emit)
	default:
		return o.fail(threadID, emit, fmt.Errorf("backend returned unknown status %q", resp.GenerationStatus))
	}
}

// stageLoop emits the staged progress texts until ctx is cancelled. An emit
// failure cancels nothing here; the retry loop notices the dead client via
// its own context.
func (o *Orchestrator) stageLoop(ctx context.Context, emit EmitFunc) {
	ticker := time.NewTicker(o.StageInterval)
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := emit(models.StatusEvent(stages[i])); err != nil {
				return
			}
			if i < len(stages)-1 {
				i++
			}
		}
	}
}

func (o *Orchestrator) complete(threadID string, resp backend.GenerateResponse, emit EmitFunc) error {
	text := resp.Message
	if text == "" {
		text = "Animation generated successfully."
	}
	m := models.Message{ID: utils.GenMessageID(), Role: models.RoleAI, Content: text}
	if err := o.Store.AppendMessage(threadID, m); err != nil {
		return o.fail(threadID, emit, err)
	}
	if err := o.Store.SetArtifact(threadID, resp.SignedURL); err != nil {
		return o.fail(threadID, emit, err)
	}
	if err := o.Store.SetStatus(threadID, models.StatusCompleted); err != nil {
		return o.fail(threadID, emit, err)
	}
	telemetry.ObserveBackendCall(models.StatusCompleted)
	logger.Info("generation_completed", "thread", threadID)
	_ = emit(models.MessageEvent(m))
	_ = emit(models.DataEvent(resp.SignedURL))
	_ = emit(models.StatusEvent(models.StatusCompleted))
	o.emitState(threadID, emit)
	return nil
}

func (o *Orchestrator) converse(threadID string, resp backend.GenerateResponse, emit EmitFunc) error {
	m := models.Message{ID: utils.GenMessageID(), Role: models.RoleAI, Content: resp.Message}
	if err := o.Store.AppendMessage(threadID, m); err != nil {
		return o.fail(threadID, emit, err)
	}
	if err := o.Store.SetStatus(threadID, models.StatusConversation); err != nil {
		return o.fail(threadID, emit, err)
	}
	telemetry.ObserveBackendCall(models.StatusConversation)
	logger.Info("generation_conversational", "thread", threadID)
	_ = emit(models.MessageEvent(m))
	o.emitState(threadID, emit)
	return nil
}

// fail persists the failure before telling the client, so a dead client never
// leaves the thread stuck in "generating". The error text is appended as an
// AI message so the thread's history explains what went wrong.
func (o *Orchestrator) fail(threadID string, emit EmitFunc, cause error) error {
	m := models.Message{ID: utils.GenMessageID(), Role: models.RoleAI, Content: "Generation failed: " + cause.Error()}
	if err := o.Store.AppendMessage(threadID, m); err != nil {
		logger.Error("append_error_message_failed", "thread", threadID, "error", err)
	}
	if err := o.Store.SetStatus(threadID, models.StatusError); err != nil {
		logger.Error("set_error_status_failed", "thread", threadID, "error", err)
	}
	telemetry.ObserveBackendCall("failed")
	logger.Error("generation_failed", "thread", threadID, "error", cause)
	_ = emit(models.ErrorEvent(cause.Error()))
	o.emitState(threadID, emit)
	return cause
}

func (o *Orchestrator) emitState(threadID string, emit EmitFunc) {
	t, err := o.Store.Get(threadID)
	if err != nil {
		logger.Error("state_snapshot_failed", "thread", threadID, "error", err)
		return
	}
	_ = emit(models.StateEvent(t))
}
