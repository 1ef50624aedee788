// Package dashboard builds, refreshes, and serves the triage dashboard:
// the snapshot builder runs the two triage sub-pipelines into four
// independently failing sections, the scheduler wraps the builder in a
// single-flight periodic loop with backoff, and the server exposes the
// cached snapshot over HTTP.
package dashboard

import (
	"errors"

	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/report"
)

// maxErrorMessageLen bounds serialized error messages.
const maxErrorMessageLen = 220

// SectionError is the wire form of a failed section.
type SectionError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Remediation string         `json:"remediation,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// newSectionError serializes an error into the {code, message} wire shape.
// The code comes from the coded-error chain or the leading "CODE: message"
// text; anything unrecognizable becomes E_DASHBOARD_UNKNOWN. Messages are
// truncated to 220 chars.
func newSectionError(err error) *SectionError {
	if err == nil {
		return nil
	}
	se := &SectionError{
		Code:    errcode.CodeOf(err),
		Message: errcode.MessageOf(err),
		Details: errcode.DetailsOf(err),
	}
	var coded *errcode.Error
	if errors.As(err, &coded) {
		se.Remediation = coded.Remediation
	}
	if len(se.Message) > maxErrorMessageLen {
		se.Message = se.Message[:maxErrorMessageLen]
	}
	return se
}

// Section statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Section is a tagged union: Data is set iff Status is "ok", Error is set
// iff Status is "error". The JSON shape keeps both keys, one null.
type Section[T any] struct {
	Status string        `json:"status"`
	Data   *T            `json:"data"`
	Error  *SectionError `json:"error"`
}

func okSection[T any](data *T) Section[T] {
	return Section[T]{Status: StatusOK, Data: data}
}

func errorSection[T any](err error) Section[T] {
	return Section[T]{Status: StatusError, Error: newSectionError(err)}
}

// OK reports whether the section carries data.
func (s Section[T]) OK() bool {
	return s.Status == StatusOK
}

// Sections holds the four dashboard sections of one snapshot.
type Sections struct {
	Digest   Section[report.DigestReport]   `json:"digest"`
	Inbox    Section[report.InboxReport]    `json:"inbox"`
	Score    Section[report.ScoreReport]    `json:"score"`
	Patterns Section[report.PatternsReport] `json:"patterns"`
}

// Meta is the snapshot context block: identity plus freshness accounting.
type Meta struct {
	Repo                   string `json:"repo"`
	Provider               string `json:"provider"`
	GeneratedAt            string `json:"generatedAt"`
	Stale                  bool   `json:"stale"`
	BackoffSeconds         int    `json:"backoffSeconds"`
	NextRefreshAt          string `json:"nextRefreshAt"`
	RefreshIntervalSeconds int    `json:"refreshIntervalSeconds"`
}

// Snapshot is one full dashboard state: four sections sharing one
// generatedAt.
type Snapshot struct {
	Meta     Meta     `json:"meta"`
	Sections Sections `json:"sections"`
}

// AllOK reports whether every section succeeded.
func (s *Snapshot) AllOK() bool {
	return s.Sections.Digest.OK() && s.Sections.Inbox.OK() &&
		s.Sections.Score.OK() && s.Sections.Patterns.OK()
}

// PrimaryError returns the first section error, scanned in the fixed order
// digest, inbox, score, patterns. Nil when every section is ok.
func (s *Snapshot) PrimaryError() *SectionError {
	for _, e := range []*SectionError{
		s.Sections.Digest.Error,
		s.Sections.Inbox.Error,
		s.Sections.Score.Error,
		s.Sections.Patterns.Error,
	} {
		if e != nil {
			return e
		}
	}
	return nil
}
