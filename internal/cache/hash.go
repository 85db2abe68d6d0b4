package cache

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"github.com/haven-media/sentinel/internal/signal"
)

// Content keys are 64-bit perceptual hashes. Near-identical content
// (adjacent frames of a static shot, repeated ambient sound, re-issued
// subtitle lines) is expected to land within a few bits of the same key,
// which is what the dedup index relies on.

// AverageHash builds a 64-bit average hash over a visual digest. The digest
// is folded into 64 buckets; each bit records whether its bucket mean sits
// above the global mean.
func AverageHash(digest []byte) uint64 {
	if len(digest) == 0 {
		return 0
	}
	var buckets [64]float64
	var counts [64]int
	for i, b := range digest {
		buckets[i%64] += float64(b)
		counts[i%64]++
	}
	var total float64
	n := 0
	for i := range buckets {
		if counts[i] == 0 {
			continue
		}
		buckets[i] /= float64(counts[i])
		total += buckets[i]
		n++
	}
	if n == 0 {
		return 0
	}
	mean := total / float64(n)
	var h uint64
	for i := range buckets {
		if counts[i] > 0 && buckets[i] > mean {
			h |= 1 << uint(i)
		}
	}
	return h
}

// SpectralFingerprint builds a 64-bit fingerprint over an audio digest.
// The digest is folded into 65 band energies; each bit records whether a
// band carries more energy than its neighbor, which is robust to overall
// gain changes.
func SpectralFingerprint(digest []byte) uint64 {
	if len(digest) == 0 {
		return 0
	}
	var bands [65]float64
	var counts [65]int
	for i, b := range digest {
		bands[i%65] += float64(b)
		counts[i%65]++
	}
	for i := range bands {
		if counts[i] > 0 {
			bands[i] /= float64(counts[i])
		}
	}
	var h uint64
	for i := 0; i < 64; i++ {
		if bands[i] > bands[i+1] {
			h |= 1 << uint(i)
		}
	}
	return h
}

// TokenHash builds a 64-bit simhash over whitespace-separated tokens, so
// subtitle lines sharing most of their words hash close together.
func TokenHash(text string) uint64 {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return 0
	}
	var counters [64]int
	for _, tok := range fields {
		f := fnv.New64a()
		f.Write([]byte(tok))
		th := f.Sum64()
		for i := 0; i < 64; i++ {
			if th&(1<<uint(i)) != 0 {
				counters[i]++
			} else {
				counters[i]--
			}
		}
	}
	var h uint64
	for i := 0; i < 64; i++ {
		if counters[i] > 0 {
			h |= 1 << uint(i)
		}
	}
	return h
}

// KeyFor hashes one modality sample with the hash suited to its content.
func KeyFor(m signal.Modality, s *signal.ModalitySample) uint64 {
	if s == nil {
		return 0
	}
	switch m {
	case signal.ModalityVisual:
		return AverageHash(s.Features.Digest)
	case signal.ModalityAudio:
		return SpectralFingerprint(s.Features.Digest)
	case signal.ModalityText:
		if s.Features.Text != "" {
			return TokenHash(s.Features.Text)
		}
		return AverageHash(s.Features.Digest)
	}
	return 0
}

// InputKey combines the per-modality keys of a multi-modal input into one
// prediction key. Rotation keeps the modalities from cancelling each other
// while preserving per-modality locality.
func InputKey(in *signal.MultiModalInput) uint64 {
	if in == nil {
		return 0
	}
	var h uint64
	for i, m := range signal.Modalities {
		h ^= bits.RotateLeft64(KeyFor(m, in.Sample(m)), i*21)
	}
	return h
}

// HammingDistance counts differing bits between two keys.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
