// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package extract

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/momoflow/internal/breaker"
	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/models"
)

type stubProvider struct {
	name   string
	fields *models.ExtractedFields
	err    error
	calls  atomic.Int32
	onCall func()
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Extract(ctx context.Context, _ Request) (*models.ExtractedFields, error) {
	s.calls.Add(1)
	if s.onCall != nil {
		s.onCall()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.fields, nil
}

func amountFields(v float64) *models.ExtractedFields {
	return &models.ExtractedFields{Amount: &v}
}

// neverTrip keeps breakers closed so tests exercise chain order only.
func neverTrip() breaker.Config {
	cfg := breaker.DefaultConfig()
	cfg.MinRequests = 1000
	return cfg
}

func TestChainPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "p1", fields: amountFields(10)}
	fallback := &stubProvider{name: "p2", fields: amountFields(20)}
	c := NewChain(neverTrip(), primary, fallback)

	res, err := c.Extract(context.Background(), "MoMo", "verbatim body")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Model != "p1" || res.Attempts != 1 || numVal(res.Fields.Amount) != 10 {
		t.Errorf("result = %+v", res)
	}
	if res.Fields.RawText != "verbatim body" {
		t.Errorf("RawText = %q", res.Fields.RawText)
	}
	if fallback.calls.Load() != 0 {
		t.Error("fallback should not be called")
	}
}

func TestChainFallsBack(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "p1", err: errors.New("timeout")}
	empty := &stubProvider{name: "p2", fields: &models.ExtractedFields{}}
	last := &stubProvider{name: "p3", fields: amountFields(30)}
	c := NewChain(neverTrip(), primary, empty, last)

	res, err := c.Extract(context.Background(), "MoMo", "body")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Model != "p3" || res.Attempts != 3 {
		t.Errorf("result = %+v, want p3 after 3 attempts", res)
	}
}

func TestChainAllFail(t *testing.T) {
	t.Parallel()

	errA := errors.New("boom a")
	errB := errors.New("boom b")
	c := NewChain(neverTrip(), &stubProvider{name: "a", err: errA}, &stubProvider{name: "b", err: errB})

	res, err := c.Extract(context.Background(), "MoMo", "body")
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("error = %v, want ErrAllProvidersFailed", err)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("error should join provider errors: %v", err)
	}
	if res.Attempts != 2 || res.Fields != nil {
		t.Errorf("result = %+v", res)
	}
	if s := Summary(err); strings.Contains(s, "\n") || !strings.Contains(s, "boom b") {
		t.Errorf("Summary() = %q", s)
	}
}

func TestChainStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	first := &stubProvider{name: "first", err: errors.New("slow"), onCall: cancel}
	second := &stubProvider{name: "second", fields: amountFields(1)}
	c := NewChain(neverTrip(), first, second)

	res, err := c.Extract(ctx, "MoMo", "body")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if second.calls.Load() != 0 {
		t.Error("chain should stop once the context is canceled")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestChainBreakerSkipsProvider(t *testing.T) {
	t.Parallel()

	cfg := breaker.Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, MinRequests: 2, FailureRatio: 0.5}
	flaky := &stubProvider{name: "flaky-breaker-test", err: errors.New("down")}
	rules := &stubProvider{name: "rules-breaker-test", fields: amountFields(5)}
	c := NewChain(cfg, flaky, rules)

	for i := 0; i < 2; i++ {
		if _, err := c.Extract(context.Background(), "MoMo", "body"); err != nil {
			t.Fatalf("Extract() #%d error = %v", i, err)
		}
	}
	if flaky.calls.Load() != 2 {
		t.Fatalf("flaky calls = %d, want 2 before tripping", flaky.calls.Load())
	}

	res, err := c.Extract(context.Background(), "MoMo", "body")
	if err != nil {
		t.Fatal(err)
	}
	if flaky.calls.Load() != 2 {
		t.Error("open breaker should skip the provider")
	}
	if res.Attempts != 1 || res.Model != "rules-breaker-test" {
		t.Errorf("result = %+v, want only the rules attempt counted", res)
	}
}

func TestChainNoProviders(t *testing.T) {
	t.Parallel()

	if _, err := NewChain(neverTrip()).Extract(context.Background(), "s", "b"); !errors.Is(err, ErrNoProviders) {
		t.Errorf("error = %v, want ErrNoProviders", err)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	model := config.ProviderConfig{Name: "primary", BaseURL: "http://localhost:1", Model: "m1"}
	tests := []struct {
		name string
		cfg  config.ExtractionConfig
		want []string
	}{
		{"nothing configured", config.ExtractionConfig{}, []string{"rules"}},
		{"primary only", config.ExtractionConfig{Primary: model}, []string{"primary/m1"}},
		{"primary with rules", config.ExtractionConfig{Primary: model, RulesFallback: true}, []string{"primary/m1", "rules"}},
		{
			"both models",
			config.ExtractionConfig{Primary: model, Fallback: config.ProviderConfig{BaseURL: "http://localhost:2", Model: "m2"}, RulesFallback: true},
			[]string{"primary/m1", "m2", "rules"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Build(tt.cfg).Providers()
			if len(got) != len(tt.want) {
				t.Fatalf("Providers() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Providers() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
