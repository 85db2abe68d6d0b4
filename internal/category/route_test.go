package category

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAllCategoriesCount(t *testing.T) {
	if len(All()) != Count {
		t.Fatalf("All() returned %d categories, want %d", len(All()), Count)
	}

	seen := make(map[Category]bool)
	for _, c := range All() {
		if seen[c] {
			t.Errorf("category %s listed twice", c)
		}
		seen[c] = true
	}
}

func TestVerifyCompleteness(t *testing.T) {
	if err := VerifyCompleteness(); err != nil {
		t.Fatalf("VerifyCompleteness() = %v, want nil", err)
	}
}

func TestRouteForTotal(t *testing.T) {
	for _, c := range All() {
		cfg := RouteFor(c)
		if cfg.Route == "" {
			t.Errorf("RouteFor(%s) returned empty route", c)
		}
		if s := cfg.Weights.Sum(); s < 0.99 || s > 1.01 {
			t.Errorf("RouteFor(%s) weights sum %.3f, want ~1.0", c, s)
		}
	}
}

func TestBloodRoute(t *testing.T) {
	want := RouteConfig{
		Route:      RouteVisualPrimary,
		Weights:    ModalityWeights{Visual: 0.70, Audio: 0.15, Text: 0.15},
		Validation: Standard,
		Pattern:    PatternInstant,
	}
	if diff := cmp.Diff(want, RouteFor(Blood)); diff != "" {
		t.Errorf("RouteFor(Blood) mismatch (-want +got):\n%s", diff)
	}
}

func TestOnRoute(t *testing.T) {
	want := []Category{Violence, SelfHarm, Drowning, Choking, CarCrashes}
	if diff := cmp.Diff(want, OnRoute(RouteTemporal)); diff != "" {
		t.Errorf("OnRoute(RouteTemporal) mismatch (-want +got):\n%s", diff)
	}

	total := 0
	for _, r := range []Route{RouteVisualPrimary, RouteAudioPrimary, RouteTextPrimary, RouteTemporal, RouteBalanced} {
		total += len(OnRoute(r))
	}
	if total != Count {
		t.Errorf("routes partition %d categories, want %d", total, Count)
	}
}

func TestRouteForUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("RouteFor on unregistered category did not panic")
		}
	}()
	RouteFor(Category("tax-audits"))
}

func TestHighSensitivityOnlyOnBalancedRoute(t *testing.T) {
	for _, c := range All() {
		cfg := RouteFor(c)
		if cfg.Validation == HighSensitivity && cfg.Route != RouteBalanced {
			t.Errorf("category %s uses high-sensitivity validation on route %s", c, cfg.Route)
		}
		if cfg.Route == RouteBalanced && cfg.Validation != HighSensitivity {
			t.Errorf("balanced category %s should use high-sensitivity validation, got %s", c, cfg.Validation)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(Blood) {
		t.Error("IsValid(Blood) = false")
	}
	if IsValid(Category("weather")) {
		t.Error("IsValid(weather) = true")
	}
}
