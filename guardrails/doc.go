// Package guardrails applies content checks around answer generation:
// blocked-topic screening of questions, PII redaction of generated text and
// minimal validation of answers.
package guardrails
