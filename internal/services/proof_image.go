package services

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/webp"
)

const DefaultMaxProofImageBytes int64 = 5 << 20

var defaultProofImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ProofImagePolicy bounds what a payment proof upload may be.
type ProofImagePolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

func (p ProofImagePolicy) withDefaults() ProofImagePolicy {
	if p.MaxBytes <= 0 {
		p.MaxBytes = DefaultMaxProofImageBytes
	}
	if len(p.AllowedTypes) == 0 {
		p.AllowedTypes = defaultProofImageTypes
	}
	return p
}

// ProofImageInfo is what inspection learns about an accepted upload.
type ProofImageInfo struct {
	ContentType string
	Extension   string
	Size        int64
	Width       int
	Height      int
	Digest      string
}

// InspectProofImage sniffs the MIME type from the bytes (the client supplied
// header is ignored), enforces the policy and decodes the image header.
// The returned message is suitable for a field error.
func InspectProofImage(data []byte, policy ProofImagePolicy) (*ProofImageInfo, string) {
	policy = policy.withDefaults()
	if len(data) == 0 {
		return nil, "proof image is required"
	}
	if int64(len(data)) > policy.MaxBytes {
		return nil, fmt.Sprintf("proof image exceeds %d bytes", policy.MaxBytes)
	}
	mt := mimetype.Detect(data)
	ct := strings.ToLower(strings.SplitN(mt.String(), ";", 2)[0])
	if !mimeAllowed(ct, policy.AllowedTypes) {
		return nil, fmt.Sprintf("unsupported image type %s", ct)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "proof image could not be decoded"
	}
	sum := blake2b.Sum256(data)
	return &ProofImageInfo{
		ContentType: ct,
		Extension:   strings.TrimPrefix(extensionFor(ct, mt.Extension()), "."),
		Size:        int64(len(data)),
		Width:       cfg.Width,
		Height:      cfg.Height,
		Digest:      hex.EncodeToString(sum[:]),
	}, ""
}

func mimeAllowed(ct string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), ct) {
			return true
		}
	}
	return false
}

func extensionFor(ct, sniffed string) string {
	switch ct {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return sniffed
	}
}
