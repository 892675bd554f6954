package models

import "fmt"

// ContentType identifies the kind of content a provider can generate
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
)

// AllContentTypes lists every supported content type
var AllContentTypes = []ContentType{ContentText, ContentImage, ContentVideo}

// Valid returns true if the content type is one of the supported kinds
func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentImage, ContentVideo:
		return true
	}
	return false
}

// ParseContentType parses a string into a ContentType
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(s)
	if !ct.Valid() {
		return "", fmt.Errorf("unknown content type %q", s)
	}
	return ct, nil
}

// ServiceTier classifies a caller's access level.
// Tiers are ordered: FREE < STANDARD < PREMIUM < ENTERPRISE.
type ServiceTier string

const (
	TierFree       ServiceTier = "free"
	TierStandard   ServiceTier = "standard"
	TierPremium    ServiceTier = "premium"
	TierEnterprise ServiceTier = "enterprise"
)

// tierRanks defines the ordering of service tiers
var tierRanks = map[ServiceTier]int{
	TierFree:       0,
	TierStandard:   1,
	TierPremium:    2,
	TierEnterprise: 3,
}

// Valid returns true if the tier is a known service tier
func (t ServiceTier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// Rank returns the ordinal position of the tier (FREE is lowest)
func (t ServiceTier) Rank() int {
	return tierRanks[t]
}

// AtLeast returns true if the tier is equal to or above the other tier
func (t ServiceTier) AtLeast(other ServiceTier) bool {
	return t.Rank() >= other.Rank()
}

// ParseServiceTier parses a string into a ServiceTier
func ParseServiceTier(s string) (ServiceTier, error) {
	t := ServiceTier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown service tier %q", s)
	}
	return t, nil
}
