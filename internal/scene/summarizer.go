package scene

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eleven-am/scene-narrator/internal/llm"
)

const NothingNewSummary = "Nothing new has been observed since the last update."

// Summarizer blends the two window logs into one spoken summary.
type Summarizer struct {
	llm    llm.Completer
	logger *slog.Logger
}

func NewSummarizer(completer llm.Completer, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		llm:    completer,
		logger: logger.With("component", "summarizer"),
	}
}

// Summarize returns the model text verbatim. With both logs empty it returns
// NothingNewSummary without calling the model.
func (s *Summarizer) Summarize(ctx context.Context, dataLog, dirLog []Entry, previous string) (string, error) {
	if len(dataLog) == 0 && len(dirLog) == 0 {
		return NothingNewSummary, nil
	}

	text, err := s.llm.Complete(ctx, buildSummaryPrompt(dataLog, dirLog, previous), nil)
	if err != nil {
		return "", fmt.Errorf("summarize scene: %w", err)
	}
	s.logger.Debug("summary generated", "length", len(text))
	return text, nil
}

func (s *Summarizer) SummarizeTrigger(ctx context.Context, t *SummaryTrigger) (string, error) {
	return s.Summarize(ctx, t.DataLog, t.DirLog, t.PreviousSummary)
}

func buildSummaryPrompt(dataLog, dirLog []Entry, previous string) string {
	var b strings.Builder

	if len(dataLog) > 0 {
		b.WriteString("Here is a data log of all the objects detected since the last update:\n")
		writeEntries(&b, dataLog)
	} else {
		b.WriteString("The data log is empty for this period.\n")
	}

	if len(dirLog) > 0 {
		b.WriteString("Here is a scene log of broader details including actions and predictions about the scene as well as descriptions of objects in it:\n")
		writeEntries(&b, dirLog)
	} else {
		b.WriteString("The scene log is empty for this period.\n")
	}

	b.WriteString("You are a helpful assistant that will take the data log and the scene log and output a brief but descriptive response. ")
	b.WriteString("Weight the content of the data log 40% and the scene log 60% in your response. ")
	b.WriteString("I am a blind person that needs to know the basics of the environment and what the current scene entails. ")
	b.WriteString("Please describe the scene in a natural, brief, but all encapsulating manner without any text formatting.\n")

	if previous != "" {
		b.WriteString("To be less repetitive, do not repeat the same information as the previous update. ")
		b.WriteString("The overall response can be similar but avoid repeating the same details. The previous update was:\n")
		b.WriteString(previous)
		b.WriteString("\n")
	}
	return b.String()
}

func writeEntries(b *strings.Builder, entries []Entry) {
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteString("\n")
	}
}
