package repository

// Tier is an access level granting a fixed daily query quota.
type Tier string

const (
	TierFree      Tier = "free"
	TierStandard  Tier = "standard"
	TierUnlimited Tier = "unlimited"
)

// IsValidTier returns true if t is a supported tier.
func IsValidTier(t Tier) bool {
	switch t {
	case TierFree, TierStandard, TierUnlimited:
		return true
	default:
		return false
	}
}

// NormalizeTier converts a raw string to a valid tier (free when unknown —
// unknown tiers are never silently upgraded).
func NormalizeTier(s string) Tier {
	t := Tier(s)
	if IsValidTier(t) {
		return t
	}
	return TierFree
}
