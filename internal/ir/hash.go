package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDescriptorSet = "linkctl/descriptor-set/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DescriptorSetHash identifies a descriptor set independent of formatting.
// Two files that describe the same links in the same order hash equal.
func DescriptorSetHash(descriptors []LinkDescriptor) (string, error) {
	if descriptors == nil {
		descriptors = []LinkDescriptor{}
	}
	canonical, err := MarshalCanonical(descriptors)
	if err != nil {
		return "", fmt.Errorf("DescriptorSetHash: %w", err)
	}
	return hashWithDomain(DomainDescriptorSet, canonical), nil
}
