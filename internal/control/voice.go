package control

import (
	"context"
	"time"
)

// listen is the voice worker. It never blocks the tick: recognised speech is
// posted on l.voice and picked up by the next tick.
func (l *Loop) listen(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		text := l.deps.Listener.Listen(ctx)
		if text == "" {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.cfg.ListenBackoff):
			}
			continue
		}

		ev := voiceEvent{text: text}
		if rest, ok := l.wake.Match(text); ok {
			ev = voiceEvent{wake: true, text: rest}
			if l.abortSearch() {
				l.logger.Info("wake phrase interrupted search")
			}
		}
		if l.deps.Captions != nil {
			l.deps.Captions.Publish("heard", text)
		}

		select {
		case l.voice <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// abortSearch cancels a scanning search, reporting whether one was running.
func (l *Loop) abortSearch() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancelSearch == nil {
		return false
	}
	l.cancelSearch()
	l.cancelSearch = nil
	return true
}

func (l *Loop) handleVoice(ctx context.Context, ev voiceEvent) error {
	if !ev.wake {
		l.logger.Debug("ignoring speech without wake phrase", "text", ev.text)
		return nil
	}
	l.setPhase(PhaseListening)
	defer l.setPhase(PhaseObserving)

	utterance := ev.text
	if utterance == "" {
		l.say(ctx, MessageReady)
		var ok bool
		utterance, ok = l.awaitUtterance(ctx)
		if !ok {
			l.say(ctx, MessageNoCommand)
			return nil
		}
	}
	return l.dispatch(ctx, utterance)
}

// awaitUtterance waits up to CommandTimeout for the next thing the user says.
// A repeated wake phrase counts, with whatever followed it.
func (l *Loop) awaitUtterance(ctx context.Context) (string, bool) {
	timer := time.NewTimer(l.cfg.CommandTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
			return "", false
		case ev := <-l.voice:
			if ev.text != "" {
				return ev.text, true
			}
		}
	}
}

func (l *Loop) say(ctx context.Context, text string) {
	if err := l.deps.Speaker.Speak(ctx, text); err != nil && ctx.Err() == nil {
		l.logger.Warn("narration failed", "error", err)
	}
}
