package command

import "fmt"

type Kind int

const (
	Unrecognized Kind = iota
	Find
	Question
	Help
)

func (k Kind) String() string {
	switch k {
	case Find:
		return "find"
	case Question:
		return "question"
	case Help:
		return "help"
	default:
		return "unrecognized"
	}
}

// Intent is the classified meaning of one utterance. Payload is the object
// name for Find, the question text for Question and the raw utterance for
// Unrecognized.
type Intent struct {
	Kind    Kind
	Payload string
}

func (i Intent) String() string {
	if i.Payload == "" {
		return i.Kind.String()
	}
	return fmt.Sprintf("%s(%q)", i.Kind, i.Payload)
}
