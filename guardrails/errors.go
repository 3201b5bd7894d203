package guardrails

import "errors"

var (
	// ErrBlockedTopic is returned when a question mentions a blocked topic.
	ErrBlockedTopic = errors.New("this topic is restricted")

	// ErrAnswerTooShort is returned when an answer has fewer than
	// MinAnswerChars non-space characters.
	ErrAnswerTooShort = errors.New("answer too short or empty")

	// ErrNoSources is returned when an answer was produced without sources.
	ErrNoSources = errors.New("no sources retrieved")
)
