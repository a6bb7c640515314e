package control

import (
	"context"
	"errors"
	"strings"

	"github.com/eleven-am/scene-narrator/internal/alert"
	"github.com/eleven-am/scene-narrator/internal/command"
	"github.com/eleven-am/scene-narrator/internal/journal"
)

// dispatch classifies one utterance and runs its handler to completion. Only
// a camera failure during a search is returned.
func (l *Loop) dispatch(ctx context.Context, utterance string) error {
	l.setPhase(PhaseHandling)
	intent := l.deps.Dispatcher.Classify(ctx, utterance)

	l.mu.Lock()
	l.stats.Intents++
	l.mu.Unlock()

	if l.deps.Journal != nil {
		err := l.deps.Journal.RecordIntent(ctx, &journal.IntentRecord{
			SessionID: l.cfg.SessionID,
			Utterance: utterance,
			Kind:      intent.Kind.String(),
			Payload:   intent.Payload,
		})
		if err != nil {
			l.logger.Warn("journal intent failed", "error", err)
		}
	}

	switch intent.Kind {
	case command.Find:
		return l.find(ctx, intent.Payload)
	case command.Question:
		l.answer(ctx, intent.Payload)
	case command.Help:
		l.emergency(ctx)
	default:
		l.say(ctx, MessageUnrecognized)
	}
	return nil
}

func (l *Loop) find(ctx context.Context, object string) error {
	if l.deps.Search == nil {
		l.say(ctx, "Sorry, searching for objects is not available.")
		return nil
	}
	l.setPhase(PhaseSearching)

	searchCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancelSearch = cancel
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.cancelSearch = nil
		l.mu.Unlock()
		cancel()
	}()

	session, err := l.deps.Search.Run(searchCtx, object)

	l.mu.Lock()
	l.stats.Searches++
	l.mu.Unlock()
	l.logger.Info("search finished", "search_id", session.ID, "status", session.Status,
		"frames", session.Frames, "duration", session.Duration())

	if l.deps.Journal != nil {
		rerr := l.deps.Journal.RecordSearch(ctx, &journal.SearchRecord{
			ID:         session.ID,
			SessionID:  l.cfg.SessionID,
			Requested:  session.Requested,
			Target:     session.Target,
			Status:     string(session.Status),
			Frames:     session.Frames,
			Region:     session.Region,
			Guidance:   session.Guidance,
			DurationMs: session.Duration().Milliseconds(),
			StartedAt:  session.StartedAt,
			EndedAt:    session.EndedAt,
		})
		if rerr != nil {
			l.logger.Warn("journal search failed", "error", rerr)
		}
	}
	return err
}

func (l *Loop) answer(ctx context.Context, question string) {
	var image []byte
	if l.lastFrame != nil {
		image = l.lastFrame.Data
	}

	reply, err := l.deps.Completer.Complete(ctx, l.questionPrompt(ctx, question), image)
	if err != nil {
		l.logger.Warn("question failed", "error", err)
		l.say(ctx, MessageQuestionFail)
		return
	}
	l.say(ctx, reply)
}

func (l *Loop) questionPrompt(ctx context.Context, question string) string {
	var b strings.Builder
	b.WriteString("I am a blind person with this question: " + question + ".\n")
	if prev := l.deps.Aggregator.PreviousSummary(); prev != "" {
		b.WriteString("The most recent summary of my surroundings was: " + prev + "\n")
	}
	if scene := l.deps.Aggregator.LatestScene(); scene != "" {
		b.WriteString("Right now the camera sees: " + scene + "\n")
	}
	if l.deps.Memory != nil {
		recalled, err := l.deps.Memory.Recall(ctx, question, l.cfg.RecallLimit)
		if err != nil {
			l.logger.Debug("recall failed", "error", err)
		}
		if len(recalled) > 0 {
			b.WriteString("Earlier observations that may help:\n")
			for _, r := range recalled {
				b.WriteString("- " + r.At.Format("15:04:05") + ": " + r.Text + "\n")
			}
		}
	}
	b.WriteString("Please answer plainly without formatting.")
	return b.String()
}

var errAlertsDisabled = errors.New("alerting not configured")

func (l *Loop) emergency(ctx context.Context) {
	to := l.cfg.EmergencyContact
	attempts, err := 0, alert.ErrNoRecipient

	switch {
	case l.deps.Notifier == nil:
		// fail without prompting for a recipient
		err = errAlertsDisabled
	case to == "":
		l.say(ctx, alert.MessageAsk)
		if reply, ok := l.awaitUtterance(ctx); ok {
			parsed, perr := alert.ParseSpokenAddress(reply)
			if perr != nil {
				l.logger.Warn("could not parse spoken address", "reply", reply)
			}
			to = parsed
		}
	}

	if to != "" && errors.Is(err, alert.ErrNoRecipient) {
		body := alert.Body(l.latestSurroundings(), l.now())
		attempts, err = l.deps.Notifier.Notify(ctx, to, body)
	}

	if l.deps.Journal != nil {
		record := &journal.AlertRecord{
			SessionID: l.cfg.SessionID,
			Recipient: to,
			Attempts:  attempts,
			Delivered: err == nil,
		}
		if err != nil {
			record.Error = err.Error()
		}
		if jerr := l.deps.Journal.RecordAlert(ctx, record); jerr != nil {
			l.logger.Warn("journal alert failed", "error", jerr)
		}
	}

	if err != nil {
		l.logger.Error("emergency alert failed", "attempts", attempts, "error", err)
		l.say(ctx, alert.MessageFailed)
		return
	}
	l.say(ctx, alert.MessageSent)
}

func (l *Loop) latestSurroundings() string {
	if prev := l.deps.Aggregator.PreviousSummary(); prev != "" {
		return prev
	}
	return l.deps.Aggregator.LatestScene()
}
