// Package service prices one membership year for one member: it walks
// the person's memberships, instantiates the position catalogs and
// produces the itemized, priced invoice lines.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"cairn/internal/fee/catalog"
	"cairn/internal/fee/config"
	feemetrics "cairn/internal/fee/metrics"
	feemodels "cairn/internal/fee/models"
	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
)

// Generator derives fee positions from the member snapshot and the
// configured fee tables. Pure with respect to stored state: it only
// reads configuration.
type Generator struct {
	configs config.Lookup
	logger  *slog.Logger
	metrics *feemetrics.Metrics
}

type Option func(g *Generator)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

func WithMetrics(m *feemetrics.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// New constructs a Generator.
func New(configs config.Lookup, opts ...Option) *Generator {
	g := &Generator{configs: configs}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// resolvedConfigs carries the fee tables one generation works against.
type resolvedConfigs struct {
	national *feemodels.NationalConfig
	sections map[id.GroupID]*feemodels.SectionConfig
}

// Generate produces the ordered fee positions for one membership year.
//
// Positions appear national-first, then per membership in input order.
// Errors: CodeConfigurationMissing when a fee table is not provisioned,
// CodeInvalidFeeCategory on corrupt category data. On error no partial
// list is returned.
func (g *Generator) Generate(ctx context.Context, member *feemodels.Member, memberships []feemodels.Membership, year int, newEntry bool) ([]feemodels.FeePosition, error) {
	start := time.Now()
	defer g.observeGenerate(start)

	cfgs, err := g.resolveConfigs(ctx, memberships, year)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConfigurationMissing) {
			g.incrementConfigurationMissing()
		}
		return nil, err
	}

	positions, err := g.price(member, memberships, cfgs, newEntry, nil)
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// GenerateWithOverrides is the manual-override variant: positions are
// generated by the same catalogs and active filters, but each amount is
// replaced by the matching manually supplied value, defaulting to zero
// for an otherwise-active position without one.
func (g *Generator) GenerateWithOverrides(ctx context.Context, member *feemodels.Member, memberships []feemodels.Membership, year int, newEntry bool, overrides *Overrides) ([]feemodels.FeePosition, error) {
	start := time.Now()
	defer g.observeGenerate(start)

	cfgs, err := g.resolveConfigs(ctx, memberships, year)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConfigurationMissing) {
			g.incrementConfigurationMissing()
		}
		return nil, err
	}
	if overrides == nil {
		overrides = NewOverrides()
	}
	return g.price(member, memberships, cfgs, newEntry, overrides)
}

// Quote generates the positions and applies the date-based discount:
// the per-position amounts stay undiscounted, the discount shows up as
// an explicit negative line, and entry fees are never discounted.
func (g *Generator) Quote(ctx context.Context, member *feemodels.Member, memberships []feemodels.Membership, year int, newEntry bool) (*feemodels.Quote, error) {
	positions, err := g.Generate(ctx, member, memberships, year, newEntry)
	if err != nil {
		return nil, err
	}
	var discounts feemodels.DiscountSchedule
	if feemodels.MainMembership(memberships) != nil {
		national, err := g.configs.NationalConfig(ctx, year)
		if err != nil {
			return nil, err
		}
		discounts = national.Discounts
	}

	annual := decimal.Zero
	entry := decimal.Zero
	for _, p := range positions {
		if p.Entry {
			entry = entry.Add(p.Amount)
		} else {
			annual = annual.Add(p.Amount)
		}
	}

	quote := &feemodels.Quote{Positions: positions}
	factor := discounts.Factor(member.ReferenceDate)
	total := annual
	if !factor.Equal(decimal.NewFromInt(1)) {
		discount := annual.Mul(factor).Sub(annual) // negative
		quote.Discount = &feemodels.FeePosition{
			Name:   "date_discount",
			Kind:   feemodels.PositionDiscount,
			Amount: discount,
		}
		total = annual.Add(discount)
	}
	quote.Total = total.Add(entry)

	g.incrementQuoteGenerated()
	return quote, nil
}

// resolveConfigs fetches the national table and every referenced
// section table, in parallel with shared cancellation.
func (g *Generator) resolveConfigs(ctx context.Context, memberships []feemodels.Membership, year int) (*resolvedConfigs, error) {
	cfgs := &resolvedConfigs{sections: make(map[id.GroupID]*feemodels.SectionConfig)}
	var mu sync.Mutex

	grp, ctx := errgroup.WithContext(ctx)
	if feemodels.MainMembership(memberships) != nil {
		grp.Go(func() error {
			national, err := g.configs.NationalConfig(ctx, year)
			if err != nil {
				return err
			}
			mu.Lock()
			cfgs.national = national
			mu.Unlock()
			return nil
		})
	}
	for _, ms := range memberships {
		grp.Go(func() error {
			section, err := g.configs.SectionConfig(ctx, ms.GroupID, year)
			if err != nil {
				return err
			}
			mu.Lock()
			cfgs.sections[ms.GroupID] = section
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// price walks the catalogs and turns active specs into priced lines.
func (g *Generator) price(member *feemodels.Member, memberships []feemodels.Membership, cfgs *resolvedConfigs, newEntry bool, overrides *Overrides) ([]feemodels.FeePosition, error) {
	if !member.FeeCategory.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidFeeCategory, "unknown fee category %q", member.FeeCategory)
	}

	var specs []catalog.Spec
	if main := feemodels.MainMembership(memberships); main != nil {
		specs = append(specs, catalog.National(cfgs.national, member, newEntry)...)
	}
	for _, ms := range memberships {
		specs = append(specs, catalog.Section(cfgs.sections[ms.GroupID], member, ms, newEntry)...)
	}

	positions := make([]feemodels.FeePosition, 0, len(specs))
	for _, spec := range specs {
		if !spec.Active() {
			continue
		}
		var amount decimal.Decimal
		if overrides != nil {
			amount = overrides.Amount(spec.Name, spec.GroupID)
		} else {
			var err error
			amount, err = spec.Gross()
			if err != nil {
				return nil, err
			}
		}
		positions = append(positions, feemodels.FeePosition{
			Name:       spec.Name,
			Kind:       spec.Kind,
			Amount:     amount,
			ArticleRef: spec.ArticleRef,
			GroupID:    spec.GroupID,
			Entry:      spec.Entry,
		})
	}
	return positions, nil
}

func (g *Generator) incrementQuoteGenerated() {
	if g.metrics != nil {
		g.metrics.IncrementQuoteGenerated()
	}
}

func (g *Generator) incrementConfigurationMissing() {
	if g.metrics != nil {
		g.metrics.IncrementConfigurationMissing()
	}
}

func (g *Generator) observeGenerate(start time.Time) {
	if g.metrics != nil {
		g.metrics.ObserveGenerate(start)
	}
}
