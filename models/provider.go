package models

// ProviderConfig describes a single generation backend.
// Configs are loaded once at startup and treated as immutable afterwards;
// all mutable runtime state lives in the health and performance trackers.
type ProviderConfig struct {
	// Name is the unique provider identifier (e.g. "openai", "stability")
	Name string `json:"name" validate:"required"`

	// Capabilities lists the content types the provider can generate
	Capabilities []ContentType `json:"capabilities" validate:"required,min=1"`

	// CostPerUnit is the base cost in USD per 1000 units
	CostPerUnit float64 `json:"cost_per_unit" validate:"gte=0"`

	// Quality is the declared output quality score (0-100)
	Quality float64 `json:"quality" validate:"gte=0,lte=100"`

	// Speed is the declared speed rating (0-100, higher is faster)
	Speed float64 `json:"speed" validate:"gte=0,lte=100"`

	// Tiers is the set of service tiers allowed to use this provider
	Tiers []ServiceTier `json:"tiers" validate:"required,min=1"`

	// Priority orders providers within a tier (lower is preferred)
	Priority int `json:"priority"`

	// RateLimit is the maximum request rate in requests per second.
	// Zero means unlimited.
	RateLimit float64 `json:"rate_limit" validate:"gte=0"`

	// Burst is the rate limiter burst size (defaults to 1 when RateLimit is set)
	Burst int `json:"burst" validate:"gte=0"`

	// MaxUnits caps the size of a single request in units. Zero means no cap.
	MaxUnits int `json:"max_units" validate:"gte=0"`

	// Strengths are declared qualitative specialties used to bias selection
	// (e.g. "long-form", "photorealistic", "code")
	Strengths []string `json:"strengths,omitempty"`

	// Credential is the resolved API credential. A provider with an empty
	// credential is excluded from the catalog at registration time.
	Credential string `json:"-"`

	// BaseURL overrides the provider API endpoint
	BaseURL string `json:"-"`
}

// SupportsContent returns true if the provider can generate the content type
func (p *ProviderConfig) SupportsContent(ct ContentType) bool {
	for _, c := range p.Capabilities {
		if c == ct {
			return true
		}
	}
	return false
}

// EligibleForTier returns true if the tier may use this provider
func (p *ProviderConfig) EligibleForTier(tier ServiceTier) bool {
	for _, t := range p.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// HasStrength returns true if the provider declares the given strength tag
func (p *ProviderConfig) HasStrength(tag string) bool {
	for _, s := range p.Strengths {
		if s == tag {
			return true
		}
	}
	return false
}
