// Package policy holds the built-in catalog of agricultural schemes and seed
// prices offered to farmers.
package policy

import (
	"strings"
	"time"

	"agri-advisor/internal/domain"
)

type Contact struct {
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website,omitempty"`
}

// Scheme is a government programme. Language reports the language Title and
// Description are written in.
type Scheme struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Category           string          `json:"category"`
	State              string          `json:"state"`
	Department         string          `json:"department"`
	LaunchedDate       string          `json:"launched_date"`
	ValidUntil         string          `json:"valid_until"`
	Budget             string          `json:"budget"`
	Beneficiaries      string          `json:"beneficiaries"`
	KeyFeatures        []string        `json:"key_features"`
	ApplicationProcess string          `json:"application_process"`
	Contact            Contact         `json:"contact"`
	Language           domain.Language `json:"language"`
}

type SeedCost struct {
	Crop            string  `json:"crop"`
	Variety         string  `json:"variety"`
	SeedType        string  `json:"seed_type"`
	PricePerKg      float64 `json:"price_per_kg,omitempty"`
	PricePerQuintal float64 `json:"price_per_quintal,omitempty"`
	PricePerPiece   float64 `json:"price_per_piece,omitempty"`
	Availability    string  `json:"availability"`
	Quality         string  `json:"quality"`
	Location        string  `json:"location"`
	Supplier        string  `json:"supplier"`
	Contact         string  `json:"contact"`
	LastUpdated     string  `json:"last_updated"`
}

type localized struct {
	title       string
	description string
}

type entry struct {
	scheme       Scheme
	translations map[domain.Language]localized
}

type Catalog struct {
	schemes []entry
	seeds   []SeedCost
	now     func() time.Time
}

func NewCatalog() *Catalog {
	return &Catalog{schemes: schemes(), seeds: seedCosts(), now: time.Now}
}

// Schemes lists state schemes before central ones, optionally filtered by
// category. Text is in lang when the catalog carries it, English otherwise.
func (c *Catalog) Schemes(lang domain.Language, category string) []Scheme {
	category = strings.TrimSpace(category)
	out := make([]Scheme, 0, len(c.schemes))
	for _, e := range c.schemes {
		if category != "" && e.scheme.Category != category {
			continue
		}
		s := e.scheme
		s.KeyFeatures = append([]string(nil), e.scheme.KeyFeatures...)
		s.Language = domain.LanguageEnglish
		if t, ok := e.translations[lang]; ok {
			s.Title, s.Description, s.Language = t.title, t.description, lang
		}
		out = append(out, s)
	}
	return out
}

// SeedCosts lists seed prices for location. cropType filters by
// case-insensitive substring of the crop name.
func (c *Catalog) SeedCosts(location, cropType string) []SeedCost {
	cropType = strings.ToLower(strings.TrimSpace(cropType))
	today := c.now().Format(time.DateOnly)
	out := make([]SeedCost, 0, len(c.seeds))
	for _, s := range c.seeds {
		if cropType != "" && !strings.Contains(strings.ToLower(s.Crop), cropType) {
			continue
		}
		s.Location = location
		s.LastUpdated = today
		out = append(out, s)
	}
	return out
}

func schemes() []entry {
	keralaDept := "Department of Agriculture, Kerala"
	centralDept := "Ministry of Agriculture & Farmers Welfare"
	return []entry{
		{
			scheme: Scheme{
				ID:                 "KL001",
				Title:              "Kerala Agricultural Development Scheme 2024",
				Description:        "Comprehensive scheme for agricultural modernization and farmer welfare",
				Category:           "development",
				State:              "kerala",
				Department:         keralaDept,
				LaunchedDate:       "2024-01-01",
				ValidUntil:         "2024-12-31",
				Budget:             "₹500 crores",
				Beneficiaries:      "All categories of farmers",
				KeyFeatures:        []string{"Subsidized farm equipment", "Free soil testing", "Training programs", "Market linkage support"},
				ApplicationProcess: "Online through Kerala Agriculture Portal",
				Contact:            Contact{Phone: "0471-2301234", Email: "agri@kerala.gov.in", Website: "https://keralaagriculture.gov.in"},
			},
			translations: map[domain.Language]localized{
				domain.LanguageMalayalam: {
					title:       "കേരള കാർഷിക വികസന പദ്ധതി 2024",
					description: "കാർഷിക ആധുനികവൽക്കരണത്തിനും കർഷക ക്ഷേമത്തിനുമുള്ള സമഗ്ര പദ്ധതി",
				},
			},
		},
		{
			scheme: Scheme{
				ID:                 "KL002",
				Title:              "Organic Kerala Mission",
				Description:        "State-wide initiative to promote organic farming practices",
				Category:           "organic_farming",
				State:              "kerala",
				Department:         keralaDept,
				LaunchedDate:       "2023-06-01",
				ValidUntil:         "2026-05-31",
				Budget:             "₹200 crores",
				Beneficiaries:      "Farmers willing to adopt organic practices",
				KeyFeatures:        []string{"Organic certification support", "Bio-fertilizer subsidies", "Premium price guarantee", "Export promotion"},
				ApplicationProcess: "District Agriculture Development Officer",
				Contact:            Contact{Phone: "0471-2305678", Email: "organic@kerala.gov.in", Website: "https://organickerala.gov.in"},
			},
			translations: map[domain.Language]localized{
				domain.LanguageMalayalam: {
					title:       "ഓർഗാനിക് കേരള മിഷൻ",
					description: "ജൈവകൃഷി രീതികൾ പ്രോത്സാഹിപ്പിക്കുന്നതിനുള്ള സംസ്ഥാനവ്യാപക സംരംഭം",
				},
			},
		},
		{
			scheme: Scheme{
				ID:                 "IN001",
				Title:              "PM-KISAN (Pradhan Mantri Kisan Samman Nidhi)",
				Description:        "Income support scheme providing ₹6000 per year to farmer families",
				Category:           "income_support",
				State:              "all_india",
				Department:         centralDept,
				LaunchedDate:       "2019-02-01",
				ValidUntil:         "ongoing",
				Budget:             "₹75,000 crores (2024-25)",
				Beneficiaries:      "Small and marginal farmer families",
				KeyFeatures:        []string{"Direct cash transfer", "Three installments per year", "Aadhaar-linked payments", "No paperwork for existing beneficiaries"},
				ApplicationProcess: "Online at pmkisan.gov.in or Common Service Centers",
				Contact:            Contact{Phone: "155261", Email: "pmkisan-ict@gov.in", Website: "https://pmkisan.gov.in"},
			},
		},
		{
			scheme: Scheme{
				ID:                 "IN002",
				Title:              "Pradhan Mantri Fasal Bima Yojana (PMFBY)",
				Description:        "Crop insurance scheme providing coverage against crop loss",
				Category:           "insurance",
				State:              "all_india",
				Department:         centralDept,
				LaunchedDate:       "2016-01-01",
				ValidUntil:         "ongoing",
				Budget:             "₹16,000 crores (2024-25)",
				Beneficiaries:      "All farmers including sharecroppers and tenant farmers",
				KeyFeatures:        []string{"Low premium rates", "Coverage for all stages of crop cycle", "Use of technology for quick settlement", "Voluntary for all farmers"},
				ApplicationProcess: "Banks, Insurance Companies, or online",
				Contact:            Contact{Phone: "011-20096742", Email: "pmfby@gov.in", Website: "https://pmfby.gov.in"},
			},
		},
	}
}

func seedCosts() []SeedCost {
	return []SeedCost{
		{Crop: "Rice", Variety: "Ponni", SeedType: "Hybrid", PricePerKg: 150, PricePerQuintal: 15000, Availability: "High", Quality: "Certified", Supplier: "Kerala State Seeds Corporation", Contact: "0471-2345678"},
		{Crop: "Rice", Variety: "Basmati", SeedType: "Pure", PricePerKg: 200, PricePerQuintal: 20000, Availability: "Medium", Quality: "Certified", Supplier: "Private Dealer", Contact: "9876543210"},
		{Crop: "Coconut", Variety: "Dwarf", SeedType: "Seedlings", PricePerPiece: 45, Availability: "High", Quality: "Good", Supplier: "Local Nursery", Contact: "9876543211"},
		{Crop: "Banana", Variety: "Robusta", SeedType: "Tissue Culture", PricePerPiece: 12, Availability: "High", Quality: "Excellent", Supplier: "Horticorp Kerala", Contact: "0471-2567890"},
	}
}
