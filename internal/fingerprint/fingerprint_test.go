package fingerprint

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
)

// TestGenerate tests fingerprint sampling.
func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("samples values from the pools", func(t *testing.T) {
		t.Parallel()

		g := NewGenerator(WithRand(rand.New(rand.NewPCG(1, 0))))

		for range 100 {
			fp := g.Generate()

			if fp.Mobile {
				t.Fatal("mobile flag must always be false")
			}
			if !containsViewport(viewports, fp.Viewport) {
				t.Errorf("viewport %v not in pool", fp.Viewport)
			}
			if !containsString(userAgents, fp.UserAgent) {
				t.Errorf("user agent %q not in pool", fp.UserAgent)
			}
			if !containsString(timezones, fp.Timezone) {
				t.Errorf("timezone %q not in pool", fp.Timezone)
			}
			if !containsString(locales, fp.Locale) {
				t.Errorf("locale %q not in pool", fp.Locale)
			}
		}
	})

	t.Run("deterministic with seeded source", func(t *testing.T) {
		t.Parallel()

		a := NewGenerator(WithRand(rand.New(rand.NewPCG(7, 0)))).Generate()
		b := NewGenerator(WithRand(rand.New(rand.NewPCG(7, 0)))).Generate()

		if a != b {
			t.Errorf("same seed produced different fingerprints: %+v vs %+v", a, b)
		}
	})

	t.Run("produces diverse identities", func(t *testing.T) {
		t.Parallel()

		g := NewGenerator(WithRand(rand.New(rand.NewPCG(3, 0))))
		seen := make(map[string]bool)
		for range 50 {
			seen[g.Generate().JSON()] = true
		}

		// 50 samples over the pools should hit well more than a handful
		// of distinct combinations.
		if len(seen) < 10 {
			t.Errorf("expected diverse fingerprints, got only %d distinct in 50 samples", len(seen))
		}
	})
}

// TestFingerprintJSON tests serialization for page record tagging.
func TestFingerprintJSON(t *testing.T) {
	t.Parallel()

	fp := NewGenerator(WithRand(rand.New(rand.NewPCG(11, 0)))).Generate()

	var decoded Fingerprint
	if err := json.Unmarshal([]byte(fp.JSON()), &decoded); err != nil {
		t.Fatalf("failed to decode fingerprint JSON: %v", err)
	}
	if decoded != fp {
		t.Errorf("JSON round-trip mismatch: %+v vs %+v", decoded, fp)
	}
}

// TestValidateLocales tests the locale pool sanity check.
func TestValidateLocales(t *testing.T) {
	t.Parallel()

	if err := ValidateLocales(); err != nil {
		t.Errorf("locale pool contains invalid tag: %v", err)
	}
}

func containsViewport(pool []Viewport, v Viewport) bool {
	for _, p := range pool {
		if p == v {
			return true
		}
	}
	return false
}

func containsString(pool []string, s string) bool {
	for _, p := range pool {
		if p == s {
			return true
		}
	}
	return false
}
