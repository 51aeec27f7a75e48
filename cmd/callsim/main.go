// Command callsim replays a scripted patient conversation against the
// call engine without touching the hosted speech service. It stands in
// for a real patient on the other end of the line: assistant turns come
// from the interview script, patient replies come from flags, and the
// run ends with the transcript, flow progress, summary, and latency
// window printed to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/carevox/carevox/internal/engine"
	"github.com/carevox/carevox/internal/flow"
	"github.com/carevox/carevox/internal/nlu"
	"github.com/carevox/carevox/internal/observability"
	"github.com/carevox/carevox/internal/realtime"
	"github.com/carevox/carevox/internal/summary"
	"github.com/carevox/carevox/internal/tracker"
)

type options struct {
	patient  string
	replies  []string
	debounce time.Duration
	fast     bool
	verbose  bool
}

var defaultReplies = []string{
	"Yes, this is Maria speaking",
	"Honestly I have been feeling a bit worse",
	"Yes, some pain at night",
	"Yes, I take them every morning",
	"No, no questions",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "callsim: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "callsim: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var repliesRaw string
	var debounceMS int

	flag.StringVar(&cfg.patient, "patient", "Maria Lopez", "patient name for the simulated call")
	flag.StringVar(&repliesRaw, "replies", "", "patient replies separated by '|' (optional)")
	flag.IntVar(&debounceMS, "debounce-ms", 400, "silence debounce before committing a patient turn")
	flag.BoolVar(&cfg.fast, "fast", true, "shrink playback estimates so the replay finishes quickly")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print per-turn progress")
	flag.Parse()

	if strings.TrimSpace(cfg.patient) == "" {
		return options{}, fmt.Errorf("patient is required")
	}
	if debounceMS < 10 {
		return options{}, fmt.Errorf("debounce-ms must be >= 10")
	}
	cfg.debounce = time.Duration(debounceMS) * time.Millisecond

	if strings.TrimSpace(repliesRaw) == "" {
		cfg.replies = append([]string(nil), defaultReplies...)
	} else {
		for _, part := range strings.Split(repliesRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.replies = append(cfg.replies, t)
			}
		}
		if len(cfg.replies) == 0 {
			return options{}, fmt.Errorf("replies produced no non-empty utterances")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	script := flow.Builtin()
	metrics := observability.NewMetrics(fmt.Sprintf("carevox_sim_%d", os.Getpid()))
	trk := tracker.New(script, nlu.Local{})
	detector := summary.NewCallbackDetector()

	sess := realtime.NewMockSession()
	dialer := &realtime.MockDialer{Session: sess}

	engCfg := engine.Config{
		KickoffDelay:     50 * time.Millisecond,
		ResponseDebounce: cfg.debounce,
	}
	if cfg.fast {
		engCfg.EstimatePlayback = func(int, bool) time.Duration { return 150 * time.Millisecond }
	}

	eng := engine.New(engCfg, dialer, metrics, engine.Callbacks{
		OnStatus: func(st engine.Status) {
			if cfg.verbose {
				fmt.Printf("callsim: status=%s\n", st)
			}
		},
		OnTranscript: func(entry engine.TranscriptEntry) {
			switch entry.Role {
			case engine.RoleAssistant:
				trk.ObserveAssistant(entry.Text)
				detector.ObserveAssistant(entry.Text)
			case engine.RoleUser:
				if rec, ok := trk.ObserveUser(ctx, entry.Text); ok && rec.TriggersCallback {
					detector.Note(fmt.Sprintf("%s: patient answered %q", rec.StepLabel, rec.MatchedLabel))
				}
			}
			fmt.Printf("callsim: [%s] %s\n", entry.Role, entry.Text)
		},
		OnLatency: func(info engine.LatencyInfo) {
			if cfg.verbose {
				fmt.Printf("callsim: turn latency last=%dms avg=%.0fms turns=%d\n", info.LastMS, info.AverageMS, info.Turns)
			}
		},
	})

	if err := eng.Start(ctx, realtime.DialRequest{
		PatientName:  cfg.patient,
		SystemPrompt: "simulated",
		Mode:         "voice",
	}); err != nil {
		return fmt.Errorf("start call: %w", err)
	}

	if err := replay(ctx, cfg, script, sess, eng); err != nil {
		eng.End("simulator error")
		return err
	}

	select {
	case <-eng.Done():
	case <-ctx.Done():
		return fmt.Errorf("call did not settle: %w", ctx.Err())
	}

	return report(ctx, cfg, eng, trk, detector, metrics)
}

// replay walks the script step by step. Statement steps chain into the
// next assistant turn without patient input, the way the hosted service
// continues on its own; question steps consume one scripted reply.
func replay(ctx context.Context, cfg options, script flow.FlowMap, sess *realtime.MockSession, eng *engine.Engine) error {
	stepID, ok := script.FirstStepID()
	if !ok {
		return fmt.Errorf("script has no steps")
	}

	// The kickoff requests the first response shortly after dial.
	if err := waitRequests(ctx, sess, 1); err != nil {
		return fmt.Errorf("await kickoff: %w", err)
	}

	replyIdx := 0
	for {
		step, ok := script.Step(stepID)
		if !ok {
			return fmt.Errorf("script step %q missing", stepID)
		}

		pushAssistantTurn(sess, step.Question)
		if flow.ContainsFinalPhrase(step.Question) {
			// The engine hangs up after playback; nothing left to drive.
			return nil
		}
		if err := waitListening(ctx, eng); err != nil {
			return fmt.Errorf("step %s playback: %w", step.ID, err)
		}

		if step.Kind() == flow.StepStatement {
			stepID = step.Options[0].Next
			continue
		}

		if replyIdx >= len(cfg.replies) {
			return fmt.Errorf("ran out of replies at step %s", step.ID)
		}
		reply := cfg.replies[replyIdx]
		replyIdx++
		if cfg.verbose {
			fmt.Printf("callsim: patient says %q\n", reply)
		}

		want := sess.ResponseRequests() + 1
		sess.Push(realtime.ServerEvent{Kind: realtime.KindSpeechStarted})
		sess.Push(realtime.ServerEvent{Kind: realtime.KindSpeechStopped})
		sess.Push(realtime.ServerEvent{Kind: realtime.KindInputTranscriptionDone, Transcript: reply})
		if err := waitRequests(ctx, sess, want); err != nil {
			return fmt.Errorf("step %s commit: %w", step.ID, err)
		}

		stepID = advance(script, step, reply)
	}
}

func pushAssistantTurn(sess *realtime.MockSession, text string) {
	sess.Push(realtime.ServerEvent{Kind: realtime.KindResponseCreated})
	for _, word := range strings.Fields(text) {
		sess.Push(realtime.ServerEvent{Kind: realtime.KindTranscriptDelta, Delta: word + " "})
	}
	sess.Push(realtime.ServerEvent{Kind: realtime.KindTranscriptDone, Transcript: text})
	sess.Push(realtime.ServerEvent{Kind: realtime.KindResponseDone})
}

// advance resolves a reply against the step's options; unmatched replies
// hold position so the question is asked again.
func advance(script flow.FlowMap, step flow.FlowStep, reply string) string {
	label, ok := flow.MatchUserResponse(reply, step.ID, script)
	if !ok {
		return step.ID
	}
	for _, opt := range step.Options {
		if opt.Label == label {
			return opt.Next
		}
	}
	return step.ID
}

func waitRequests(ctx context.Context, sess *realtime.MockSession, want int) error {
	return poll(ctx, func() bool { return sess.ResponseRequests() >= want })
}

func waitListening(ctx context.Context, eng *engine.Engine) error {
	return poll(ctx, func() bool { return eng.Status() == engine.StatusListening })
}

func poll(ctx context.Context, done func() bool) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func report(ctx context.Context, cfg options, eng *engine.Engine, trk *tracker.Tracker, detector *summary.CallbackDetector, metrics *observability.Metrics) error {
	progress := trk.Progress()
	summarizer := summary.NewSummarizer("", "")
	sum := summarizer.Summarize(ctx, summary.Input{
		PatientName:       cfg.patient,
		Language:          "en",
		Transcript:        eng.Transcript(),
		Progress:          progress,
		CallbackRequested: detector.Requested(),
		CallbackReasons:   detector.Reasons(),
		Failed:            eng.Status() == engine.StatusError,
	})

	fmt.Printf("\ncallsim: call ended (%s)\n", eng.EndReason())
	fmt.Printf("callsim: flow %q visited %d/%d steps, completed=%v\n",
		progress.FlowTitle, progress.VisitedSteps, progress.TotalSteps, progress.Completed)
	fmt.Printf("callsim: outcome=%s callback=%v\n", sum.Outcome, sum.CallbackRequested)
	for _, finding := range sum.KeyFindings {
		fmt.Printf("callsim:   - %s\n", finding)
	}
	fmt.Printf("callsim: %s\n", sum.Narrative)

	snap, err := json.MarshalIndent(metrics.LatencySnapshot(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("\ncallsim: latency window\n%s\n", snap)
	return nil
}
