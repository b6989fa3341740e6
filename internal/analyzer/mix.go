package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/infiniteaudio/mixintel/internal/job"
	"github.com/infiniteaudio/mixintel/internal/storage"
)

const auditVersion = "0.1.0"

// MixAnalyzer builds the mix audit. It verifies the input artifact is
// readable from storage, runs the feature extractor when one is
// configured, and optionally lets a narrator rephrase the
// recommendations.
type MixAnalyzer struct {
	storage   storage.Storage
	extractor FeatureExtractor
	narrator  *Narrator
}

func NewMixAnalyzer(storageService storage.Storage, extractor FeatureExtractor, narrator *Narrator) *MixAnalyzer {
	return &MixAnalyzer{
		storage:   storageService,
		extractor: extractor,
		narrator:  narrator,
	}
}

func (a *MixAnalyzer) Analyze(ctx context.Context, mixCtx job.Context, input job.InputRef) (json.RawMessage, error) {
	body, _, err := a.storage.GetFile(ctx, input.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("input artifact %s unreadable: %w", input.ObjectKey, err)
	}
	defer body.Close()

	audit := buildMixAudit(mixCtx)

	if a.extractor != nil {
		features, err := a.extractor.Extract(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("feature extraction failed: %w", err)
		}
		audit.Tempo = &TempoEstimate{
			BPM:      FinalBPM(features.BPMExact),
			BPMExact: features.BPMExact,
		}
		key, err := DecideKey(features.KeyVotes)
		if err != nil {
			slog.Warn("key vote inconclusive", "object_key", input.ObjectKey, "err", err)
		} else {
			audit.Key = key
		}
	} else {
		// Without an extractor the artifact is only drained to confirm
		// it is actually there and non-empty.
		n, err := io.Copy(io.Discard, body)
		if err != nil {
			return nil, fmt.Errorf("failed to read input artifact: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("input artifact %s is empty", input.ObjectKey)
		}
	}

	if a.narrator != nil {
		a.narrator.Enrich(ctx, &audit)
	}

	payload, err := json.Marshal(audit)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit: %w", err)
	}
	return payload, nil
}

func buildMixAudit(mixCtx job.Context) Audit {
	return Audit{
		Meta: Meta{
			Tool:        job.ToolMixIntelligence,
			Version:     auditVersion,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Context:     string(mixCtx),
		},
		Summary: Summary{
			Headline: "Mix audit generated",
			WhatToFixFirst: []string{
				"Check harshness in 2-5 kHz",
				"Check low-end overlap (kick vs 808)",
				"Check headroom before limiter",
			},
		},
		Recommendations: Recommendations{
			Immediate: []string{
				"Gain stage to -6 dB peak before processing",
				"High-pass non-bass elements",
				"Check dynamic EQ for harsh bands",
			},
		},
	}
}
