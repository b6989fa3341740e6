// Package analyzer produces the mix audit payload for a claimed job.
// The heavy feature extraction (BPM estimation, key detection) lives
// behind the FeatureExtractor seam; this package owns assembling the
// audit from whatever estimates are available.
package analyzer

import (
	"context"
	"encoding/json"
	"io"

	"github.com/infiniteaudio/mixintel/internal/job"
)

// Analyzer turns a job's context and input descriptor into an opaque
// audit payload. May be slow; called at most once per claimed job.
type Analyzer interface {
	Analyze(ctx context.Context, mixCtx job.Context, input job.InputRef) (json.RawMessage, error)
}

// Func adapts a plain function to the Analyzer interface.
type Func func(ctx context.Context, mixCtx job.Context, input job.InputRef) (json.RawMessage, error)

func (f Func) Analyze(ctx context.Context, mixCtx job.Context, input job.InputRef) (json.RawMessage, error) {
	return f(ctx, mixCtx, input)
}

// Features are the raw estimates a FeatureExtractor produces for one
// audio artifact.
type Features struct {
	BPMExact float64
	KeyVotes []KeyVote
}

// FeatureExtractor computes raw audio features from the artifact bytes.
// Implementations wrap an external DSP capability.
type FeatureExtractor interface {
	Extract(ctx context.Context, r io.Reader) (*Features, error)
}

// Audit is the structured output stored on completed jobs.
type Audit struct {
	Meta            Meta            `json:"meta"`
	Summary         Summary         `json:"summary"`
	Recommendations Recommendations `json:"recommendations"`
	Tempo           *TempoEstimate  `json:"tempo,omitempty"`
	Key             *KeyEstimate    `json:"key,omitempty"`
}

type Meta struct {
	Tool        string `json:"tool"`
	Version     string `json:"version"`
	GeneratedAt string `json:"generated_at"`
	Context     string `json:"context"`
}

type Summary struct {
	Headline       string   `json:"headline"`
	WhatToFixFirst []string `json:"what_to_fix_first"`
}

type Recommendations struct {
	Immediate []string `json:"immediate"`
}

type TempoEstimate struct {
	BPM      int     `json:"bpm"`
	BPMExact float64 `json:"bpm_exact"`
}

type KeyEstimate struct {
	Key            string    `json:"key"`
	Tonic          string    `json:"tonic"`
	Scale          string    `json:"scale"`
	ModeConfidence float64   `json:"mode_confidence"`
	Votes          []KeyVote `json:"debug_votes,omitempty"`
}
