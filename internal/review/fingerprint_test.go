package review

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("python", "print('hi')")
	b := Fingerprint("python", "print('hi')")
	if a != b {
		t.Errorf("same inputs produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestFingerprintDistinguishesFields(t *testing.T) {
	tests := []struct {
		name               string
		lang1, code1       string
		lang2, code2       string
	}{
		{"different code", "go", "a := 1", "go", "a := 2"},
		{"different language", "go", "x", "rust", "x"},
		{"boundary shift", "go", "od code", "good", " code"},
		{"empty vs content", "go", "", "go", " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Fingerprint(tt.lang1, tt.code1) == Fingerprint(tt.lang2, tt.code2) {
				t.Errorf("fingerprints collide for (%q,%q) and (%q,%q)",
					tt.lang1, tt.code1, tt.lang2, tt.code2)
			}
		})
	}
}

func TestFingerprintIgnoresSubmitter(t *testing.T) {
	// Fingerprint is a pure function of (language, code); nothing else
	// feeds it, so two submitters with identical input share a digest.
	if Fingerprint("python", "x = 1") != Fingerprint("python", "x = 1") {
		t.Error("expected identical fingerprints")
	}
}
