package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
)

// Landmark is the (hash, anchor_time) record emitted by Hash and stored
// per song occurrence in the Landmark Index (spec §3, §4.3).
type Landmark struct {
	Hash       string // 40-character lowercase hex SHA-1 digest
	AnchorTime uint32 // frame index of the anchor peak
}

// Hash combines peaks into target-zone pairs and emits the ordered list
// of (hash, anchor_time) landmarks per spec §4.3. Peaks are assumed
// already sorted ascending by Time (ties by Freq), as Peaks returns
// them; Hash re-sorts defensively so it remains correct if called on a
// peak set from elsewhere.
func Hash(peaks []Peak, cfg Config) []Landmark {
	if len(peaks) == 0 {
		return nil
	}

	sorted := make([]Peak, len(peaks))
	copy(sorted, peaks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Time != sorted[j].Time {
			return sorted[i].Time < sorted[j].Time
		}
		return sorted[i].Freq < sorted[j].Freq
	})

	var landmarks []Landmark
	for i, anchor := range sorted {
		for j := i + 1; j < len(sorted) && j <= i+cfg.FanValue; j++ {
			target := sorted[j]
			dt := target.Time - anchor.Time
			if dt < cfg.MinDT || dt > cfg.MaxDT {
				continue
			}

			landmarks = append(landmarks, Landmark{
				Hash:       hashTriple(anchor.Freq, target.Freq, dt),
				AnchorTime: uint32(anchor.Time),
			})
		}
	}

	return landmarks
}

// hashTriple computes the SHA-1 hex digest of "f1|f2|dt", the wire
// format pinned by spec §4.3 and verified in §8 testable property 5.
func hashTriple(f1, f2, dt int) string {
	s := fmt.Sprintf("%d|%d|%d", f1, f2, dt)
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
