package analyzer

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/corona10/goimagehash"
)

// Blocklist holds difference hashes of known-bad images
type Blocklist struct {
	hashes []*goimagehash.ImageHash
}

// NewBlocklist parses 64-bit difference hashes written as 16 hex digits,
// optionally prefixed with "d:"
func NewBlocklist(hexHashes []string) (*Blocklist, error) {
	bl := &Blocklist{hashes: make([]*goimagehash.ImageHash, 0, len(hexHashes))}
	for _, raw := range hexHashes {
		s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "d:")
		if s == "" {
			continue
		}
		value, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked hash %q: %w", raw, err)
		}
		bl.hashes = append(bl.hashes, goimagehash.NewImageHash(value, goimagehash.DHash))
	}
	return bl, nil
}

// Len returns the number of blocked hashes
func (bl *Blocklist) Len() int {
	if bl == nil {
		return 0
	}
	return len(bl.hashes)
}

// Match returns the smallest distance to a blocked hash and whether it is
// within maxDistance
func (bl *Blocklist) Match(hash *goimagehash.ImageHash, maxDistance int) (int, bool) {
	if bl.Len() == 0 || hash == nil {
		return -1, false
	}
	best := -1
	for _, blocked := range bl.hashes {
		dist, err := hash.Distance(blocked)
		if err != nil {
			continue
		}
		if best < 0 || dist < best {
			best = dist
		}
	}
	return best, best >= 0 && best <= maxDistance
}

// DifferenceHash computes the dHash of img
func DifferenceHash(img image.Image) (*goimagehash.ImageHash, error) {
	return goimagehash.DifferenceHash(img)
}

// FormatHash renders hash in the form NewBlocklist accepts
func FormatHash(hash *goimagehash.ImageHash) string {
	if hash == nil {
		return ""
	}
	return fmt.Sprintf("%016x", hash.GetHash())
}
