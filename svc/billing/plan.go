package billing

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/bugtrackerhq/entitlements/svc/account"
)

// Unlimited marks a limit with no cap (-1 chosen for SQL compatibility).
const Unlimited = -1

// Plan describes what a subscription tier entitles an account to.
type Plan struct {
	ID              account.Plan
	Name            string
	PriceCents      int64 // monthly price in the smallest currency unit, 0 for free tiers
	ReportsPerMonth int   // -1 represents unlimited
	FileAttachments int
	MaxFileSize     int64 // bytes
	AIAnalysis      bool
	PrioritySupport bool
}

// AllowsReports reports whether a plan permits another report after the
// given number has already been submitted this period.
func (p Plan) AllowsReports(used int) bool {
	return p.ReportsPerMonth == Unlimited || used < p.ReportsPerMonth
}

// Catalog holds every known plan keyed by its identifier.
type Catalog map[account.Plan]Plan

// Get returns the plan with the given identifier.
func (c Catalog) Get(id account.Plan) (Plan, bool) {
	p, ok := c[id]
	return p, ok
}

// For returns the plan for the given identifier, falling back to the
// freemium tier for identifiers the catalog does not know. Accounts are
// never left without limits.
func (c Catalog) For(id account.Plan) Plan {
	if p, ok := c[id]; ok {
		return p
	}
	return c[account.PlanFreemium]
}

// Paid lists the purchasable plans ordered by price, cheapest first.
func (c Catalog) Paid() []Plan {
	plans := make([]Plan, 0, len(c))
	for _, p := range c {
		if p.PriceCents > 0 {
			plans = append(plans, p)
		}
	}
	slices.SortFunc(plans, func(a, b Plan) int {
		return cmp.Compare(a.PriceCents, b.PriceCents)
	})
	return plans
}

func (c Catalog) validate() error {
	if _, ok := c[account.PlanFreemium]; !ok {
		return fmt.Errorf("%w: freemium plan is required", ErrFailedToLoadPlans)
	}
	for id, p := range c {
		if !id.Valid() {
			return fmt.Errorf("%w: unknown plan id %q", ErrFailedToLoadPlans, id)
		}
		if p.ReportsPerMonth < Unlimited {
			return fmt.Errorf("%w: plan %q has invalid report limit %d", ErrFailedToLoadPlans, id, p.ReportsPerMonth)
		}
	}
	return nil
}

// DefaultCatalog returns the built-in plan tiers.
func DefaultCatalog() Catalog {
	return Catalog{
		account.PlanFreemium: {
			ID:              account.PlanFreemium,
			Name:            "Freemium",
			ReportsPerMonth: 5,
			FileAttachments: 1,
			MaxFileSize:     5 << 20,
		},
		account.PlanStandard: {
			ID:              account.PlanStandard,
			Name:            "Standard",
			PriceCents:      999,
			ReportsPerMonth: 50,
			FileAttachments: 5,
			MaxFileSize:     25 << 20,
			AIAnalysis:      true,
		},
		account.PlanPremium: {
			ID:              account.PlanPremium,
			Name:            "Premium",
			PriceCents:      2999,
			ReportsPerMonth: Unlimited,
			FileAttachments: 10,
			MaxFileSize:     100 << 20,
			AIAnalysis:      true,
			PrioritySupport: true,
		},
	}
}

// PlanSource defines how the plan catalog is loaded into the service.
type PlanSource interface {
	Load(ctx context.Context) (Catalog, error)
}

// StaticPlanSource serves a catalog built in code.
type StaticPlanSource struct {
	catalog Catalog
}

// NewStaticPlanSource wraps an in-memory catalog as a PlanSource.
func NewStaticPlanSource(c Catalog) *StaticPlanSource {
	return &StaticPlanSource{catalog: c}
}

func (s *StaticPlanSource) Load(_ context.Context) (Catalog, error) {
	return s.catalog, nil
}

// FilePlanSource loads the catalog from a YAML file so plan limits can
// be tuned without a rebuild.
type FilePlanSource struct {
	path string
}

// NewFilePlanSource creates a PlanSource reading from the given path.
func NewFilePlanSource(path string) *FilePlanSource {
	return &FilePlanSource{path: path}
}

func (s *FilePlanSource) Load(_ context.Context) (Catalog, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var doc struct {
		Plans []struct {
			ID              string `yaml:"id"`
			Name            string `yaml:"name"`
			PriceCents      int64  `yaml:"price_cents"`
			ReportsPerMonth int    `yaml:"reports_per_month"`
			FileAttachments int    `yaml:"file_attachments"`
			MaxFileSize     int64  `yaml:"max_file_size"`
			AIAnalysis      bool   `yaml:"ai_analysis"`
			PrioritySupport bool   `yaml:"priority_support"`
		} `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	catalog := make(Catalog, len(doc.Plans))
	for _, p := range doc.Plans {
		id := account.Plan(p.ID)
		catalog[id] = Plan{
			ID:              id,
			Name:            p.Name,
			PriceCents:      p.PriceCents,
			ReportsPerMonth: p.ReportsPerMonth,
			FileAttachments: p.FileAttachments,
			MaxFileSize:     p.MaxFileSize,
			AIAnalysis:      p.AIAnalysis,
			PrioritySupport: p.PrioritySupport,
		}
	}
	if err := catalog.validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}
