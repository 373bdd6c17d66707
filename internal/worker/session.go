package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"twitchrec/internal/capture"
	"twitchrec/internal/history"
	"twitchrec/internal/logging"
	"twitchrec/internal/naming"
)

const callbackTimeout = 10 * time.Second

// startSession is the tracker's start handler. A failure before ffmpeg is
// running is fatal to the worker.
func (w *Worker) startSession(ctx context.Context, start time.Time) {
	var err error
	defer w.guard("session", &err)

	id := uuid.NewString()
	ctx = logging.WithSessionID(logging.WithStreamer(ctx, w.cfg.Streamer), id)
	err = w.record(ctx, id, start)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		w.logger.Debug("session abandoned during shutdown", logging.Error(err))
		return
	}
	logging.ErrorWithContext(w.logger.With(logging.String(logging.FieldSessionID, id)), "recording could not start", "session_start_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "worker exits and is restarted by the supervisor"),
	)
	w.notify(func(ctx context.Context) error { return w.notifier.NotifyError(ctx, err, "recording start") })
	w.fail(err)
}

// record resolves everything ffmpeg needs, spawns it, and waits for it to
// exit or for the worker to shut down.
func (w *Worker) record(ctx context.Context, id string, start time.Time) error {
	title, err := w.client.Title(ctx, w.client.Login())
	if err != nil {
		return fmt.Errorf("fetch title: %w", err)
	}
	w.notify(func(ctx context.Context) error { return w.notifier.NotifyLive(ctx, w.cfg.Streamer, title) })

	base := naming.Render(w.cfg.Recorder.OutputTemplate, naming.Metadata{
		Streamer:     w.cfg.Streamer,
		Title:        title,
		SessionStart: start,
	}, w.namingOptions()) + w.cfg.Recorder.Extension

	if !w.cfg.Developer.Simulate {
		if dir := filepath.Dir(base); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create recording directory: %w", err)
			}
		}
	}
	path, err := w.seq.Reserve(ctx, base)
	if err != nil {
		return fmt.Errorf("reserve recording path: %w", err)
	}

	url, err := w.client.PlayableURL(ctx, w.cfg.Recorder.StreamFormat)
	if err != nil {
		return fmt.Errorf("resolve stream url: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, err := w.capture.Start(ctx, capture.Spec{
		ID:           id,
		Streamer:     w.cfg.Streamer,
		SessionStart: start,
		Title:        title,
		URL:          url,
		Output:       path,
		Simulate:     w.cfg.Developer.Simulate,
	})
	if err != nil {
		return err
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
	}
	return nil
}

func (w *Worker) namingOptions() naming.Options {
	return naming.Options{
		Location:           w.cfg.Location(),
		TimeFormat:         w.cfg.Time.TimezoneFormat,
		StreamerSubstitute: w.cfg.Recorder.StreamerSubstitute,
		TitleSubstitute:    w.cfg.Recorder.TitleSubstitute,
		PathSubstitute:     w.cfg.Recorder.PathSubstitute,
	}
}

// onSpawn runs once ffmpeg has a process id, before its exit can be observed.
func (w *Worker) onSpawn(sess *capture.Session) {
	w.tracker.SetRecording(true)

	w.mu.Lock()
	w.active = sess
	stopping, reason := w.stopping, w.stopReason
	w.mu.Unlock()

	logger := w.logger.With(logging.String(logging.FieldSessionID, sess.ID))
	logger.Info("recording started",
		logging.String(logging.FieldPath, sess.Output),
		logging.Int("pid", sess.Pid()),
		logging.Bool("simulate", sess.Simulate),
	)
	if stopping {
		sess.RequestStop(reason)
	}

	if w.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		err := w.history.RecordStart(ctx, history.Session{
			ID:           sess.ID,
			Streamer:     sess.Streamer,
			Title:        sess.Title,
			Path:         sess.Output,
			Simulate:     sess.Simulate,
			SessionStart: sess.SessionStart,
			StartedAt:    sess.StartedAt(),
		})
		if err != nil {
			logger.Warn("history start not recorded", logging.Error(err))
		}
	}
	w.notify(func(ctx context.Context) error {
		return w.notifier.NotifyRecordingStarted(ctx, sess.Streamer, sess.Output)
	})
}

// onExit classifies the finished session. It runs before sess.Done closes.
func (w *Worker) onExit(sess *capture.Session, res capture.Result) {
	w.tracker.SetRecording(false)
	live := w.tracker.Snapshot().Live
	outcome := capture.Classify(res.ExitCode, res.Exiting, live)

	w.mu.Lock()
	if w.active == sess {
		w.active = nil
	}
	w.mu.Unlock()

	logger := w.logger.With(
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldPath, sess.Output),
	)
	attrs := []logging.Attr{
		logging.Int(logging.FieldExitCode, res.ExitCode),
		logging.String(logging.FieldOutcome, string(outcome)),
		logging.Duration("duration", res.Duration.Round(time.Second)),
	}
	if res.Killed {
		attrs = append(attrs, logging.Bool("killed", true))
	}
	if res.Err != nil {
		attrs = append(attrs, logging.Error(res.Err))
	}
	switch outcome {
	case capture.OutcomeCompleted:
		logger.Info("recording completed", logging.Args(attrs...)...)
	case capture.OutcomeAborted:
		logging.WarnWithContext(logger, "recording aborted, partial file possible", "recording_aborted",
			append(attrs, logging.String("reason", res.Reason.String()))...)
	case capture.OutcomeFailed:
		logging.ErrorWithContext(logger, "recording failed, partial file possible", "recording_failed",
			append(attrs, logging.String(logging.FieldImpact, "recording stops until the next live period or restart"))...)
	default:
		logger.Info("recording ended after channel went offline", logging.Args(attrs...)...)
	}

	w.metrics.IncSession(string(outcome))
	if w.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		if err := w.history.RecordEnd(ctx, sess.ID, time.Now(), res.ExitCode, string(outcome)); err != nil {
			logger.Warn("history end not recorded", logging.Error(err))
		}
	}
	w.notify(func(ctx context.Context) error {
		return w.notifier.NotifyRecordingFinished(ctx, sess.Streamer, sess.Output, string(outcome), res.Duration)
	})
}

// notify delivers a notification in the background. Delivery failures are
// logged and never affect the recording.
func (w *Worker) notify(send func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			w.logger.Warn("notification failed", logging.Error(err))
		}
	}()
}
