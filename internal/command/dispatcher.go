package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/eleven-am/scene-narrator/internal/llm"
)

const classifierPrompt = "You are a directory assistant that will follow the following instructions word for word.\n" +
	"If the input is asking to find an object (for example asking where is ___ or help me find ___), ONLY output verbatim exactly as follows: \"find\" and the name of the object that is trying to be found.\n" +
	"If the input is a question (who, what, when, where, why) about the scene, for example asking about an object or the scene, ONLY output verbatim exactly as follows: \"question\" and the question asked.\n" +
	"If the input states there is an emergency, ONLY output verbatim exactly as follows: \"help\".\n" +
	"If the input does not match any of the above, default to it being a question.\n" +
	"the input is: "

// Dispatcher classifies utterances with the language model acting as a
// keyword classifier.
type Dispatcher struct {
	llm    llm.Completer
	logger *slog.Logger
}

func NewDispatcher(completer llm.Completer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		llm:    completer,
		logger: logger.With("component", "dispatcher"),
	}
}

// Classify never fails: an empty utterance or a model error yields
// Unrecognized carrying the utterance.
func (d *Dispatcher) Classify(ctx context.Context, utterance string) Intent {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Intent{Kind: Unrecognized}
	}

	raw, err := d.llm.Complete(ctx, classifierPrompt+utterance, nil)
	if err != nil {
		d.logger.Warn("classification failed", "error", err)
		return Intent{Kind: Unrecognized, Payload: utterance}
	}

	intent := Parse(raw, utterance)
	d.logger.Info("utterance classified", "intent", intent.Kind.String(), "payload", intent.Payload)
	return intent
}

// Parse applies the classifier contract: the first whitespace-separated token
// of the model response, matched case-sensitively, selects the intent and the
// remaining tokens form the payload. Anything else is a question carrying the
// original utterance.
func Parse(response, utterance string) Intent {
	tokens := strings.Fields(response)
	if len(tokens) == 0 {
		return Intent{Kind: Question, Payload: utterance}
	}

	rest := strings.Join(tokens[1:], " ")
	switch tokens[0] {
	case "find":
		if rest == "" {
			return Intent{Kind: Question, Payload: utterance}
		}
		return Intent{Kind: Find, Payload: rest}
	case "question":
		if rest == "" {
			rest = utterance
		}
		return Intent{Kind: Question, Payload: rest}
	case "help":
		return Intent{Kind: Help}
	default:
		return Intent{Kind: Question, Payload: utterance}
	}
}
