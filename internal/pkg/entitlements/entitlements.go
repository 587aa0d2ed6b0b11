package entitlements

import "strings"

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanBusiness   Plan = "business"
	PlanEnterprise Plan = "enterprise"
)

// ThemesUnlimited is the sentinel for an uncapped theme count.
const ThemesUnlimited = -1

type FeatureKey string

const (
	FeatureAnalytics        FeatureKey = "analytics"
	FeatureGallery          FeatureKey = "gallery"
	FeatureBookings         FeatureKey = "bookings"
	FeatureTestimonials     FeatureKey = "testimonials"
	FeatureContacts         FeatureKey = "contacts"
	FeatureServices         FeatureKey = "services"
	FeatureFAQ              FeatureKey = "faq"
	FeatureResume           FeatureKey = "resume"
	FeatureVideo            FeatureKey = "video"
	FeatureCustomFonts      FeatureKey = "custom_fonts"
	FeatureCustomBackground FeatureKey = "custom_background"
	FeatureHideWatermark    FeatureKey = "hide_watermark"
	FeatureLeadsExport      FeatureKey = "leads_export"
	FeatureOrgDashboard     FeatureKey = "org_dashboard"
	FeatureBranding         FeatureKey = "branding"
	FeatureCustomDomain     FeatureKey = "custom_domain"
	FeatureWebhooks         FeatureKey = "webhooks"
)

// PlanLimits holds the static capability set of one plan tier.
type PlanLimits struct {
	MaxCards  int `json:"max_cards"`
	MaxLinks  int `json:"max_links"`
	MaxThemes int `json:"max_themes"` // ThemesUnlimited means no cap

	Analytics        bool `json:"analytics"`
	Gallery          bool `json:"gallery"`
	Bookings         bool `json:"bookings"`
	Testimonials     bool `json:"testimonials"`
	Contacts         bool `json:"contacts"`
	Services         bool `json:"services"`
	FAQ              bool `json:"faq"`
	Resume           bool `json:"resume"`
	Video            bool `json:"video"`
	CustomFonts      bool `json:"custom_fonts"`
	CustomBackground bool `json:"custom_background"`
	HideWatermark    bool `json:"hide_watermark"`
	LeadsExport      bool `json:"leads_export"`
	OrgDashboard     bool `json:"org_dashboard"`
	Branding         bool `json:"branding"`
	CustomDomain     bool `json:"custom_domain"`
	Webhooks         bool `json:"webhooks"`
}

var limitsByPlan = map[Plan]PlanLimits{
	PlanFree: {
		MaxCards:  1,
		MaxLinks:  5,
		MaxThemes: 3,
	},
	PlanPro: {
		MaxCards:         3,
		MaxLinks:         50,
		MaxThemes:        ThemesUnlimited,
		Analytics:        true,
		Gallery:          true,
		Testimonials:     true,
		Contacts:         true,
		Services:         true,
		FAQ:              true,
		Resume:           true,
		Video:            true,
		CustomFonts:      true,
		CustomBackground: true,
		HideWatermark:    true,
	},
	PlanBusiness: {
		MaxCards:         10,
		MaxLinks:         200,
		MaxThemes:        ThemesUnlimited,
		Analytics:        true,
		Gallery:          true,
		Bookings:         true,
		Testimonials:     true,
		Contacts:         true,
		Services:         true,
		FAQ:              true,
		Resume:           true,
		Video:            true,
		CustomFonts:      true,
		CustomBackground: true,
		HideWatermark:    true,
		LeadsExport:      true,
		OrgDashboard:     true,
		Branding:         true,
	},
	PlanEnterprise: {
		MaxCards:         100,
		MaxLinks:         1000,
		MaxThemes:        ThemesUnlimited,
		Analytics:        true,
		Gallery:          true,
		Bookings:         true,
		Testimonials:     true,
		Contacts:         true,
		Services:         true,
		FAQ:              true,
		Resume:           true,
		Video:            true,
		CustomFonts:      true,
		CustomBackground: true,
		HideWatermark:    true,
		LeadsExport:      true,
		OrgDashboard:     true,
		Branding:         true,
		CustomDomain:     true,
		Webhooks:         true,
	},
}

// Normalize maps arbitrary input to a known plan identifier; anything
// unrecognized resolves to free.
func Normalize(plan string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(plan))) {
	case PlanPro:
		return PlanPro
	case PlanBusiness:
		return PlanBusiness
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// IsKnown reports whether the given identifier names a configured plan.
func IsKnown(plan string) bool {
	_, ok := limitsByPlan[Plan(strings.ToLower(strings.TrimSpace(plan)))]
	return ok
}

// Rank orders plans free < pro < business < enterprise.
func Rank(plan Plan) int {
	switch Normalize(string(plan)) {
	case PlanEnterprise:
		return 3
	case PlanBusiness:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// LimitsFor returns the capability set of a plan, falling back to the free
// tier for unknown identifiers.
func LimitsFor(plan Plan) PlanLimits {
	if l, ok := limitsByPlan[Normalize(string(plan))]; ok {
		return l
	}
	return limitsByPlan[PlanFree]
}

// HasFeature reports whether a plan includes a boolean feature. Numeric limit
// keys always report true; callers compare the numeric value themselves.
func HasFeature(plan Plan, feature FeatureKey) bool {
	l := LimitsFor(plan)
	switch feature {
	case FeatureAnalytics:
		return l.Analytics
	case FeatureGallery:
		return l.Gallery
	case FeatureBookings:
		return l.Bookings
	case FeatureTestimonials:
		return l.Testimonials
	case FeatureContacts:
		return l.Contacts
	case FeatureServices:
		return l.Services
	case FeatureFAQ:
		return l.FAQ
	case FeatureResume:
		return l.Resume
	case FeatureVideo:
		return l.Video
	case FeatureCustomFonts:
		return l.CustomFonts
	case FeatureCustomBackground:
		return l.CustomBackground
	case FeatureHideWatermark:
		return l.HideWatermark
	case FeatureLeadsExport:
		return l.LeadsExport
	case FeatureOrgDashboard:
		return l.OrgDashboard
	case FeatureBranding:
		return l.Branding
	case FeatureCustomDomain:
		return l.CustomDomain
	case FeatureWebhooks:
		return l.Webhooks
	default:
		return true
	}
}
