package service

import (
	"context"
	"fmt"

	"github.com/okian/tradelink/internal/adapters/repository"
	"github.com/okian/tradelink/internal/domain/consistency"
	"github.com/okian/tradelink/pkg/logger"
	"github.com/okian/tradelink/pkg/metrics"
)

// RepairResult is the outcome of repairing one inconsistent provider.
// Outcome is one of metrics.RepairRepaired, RepairSkipped or RepairFailed;
// dry runs report RepairSkipped for providers that would be repaired.
type RepairResult struct {
	ProviderID string
	Rule       string
	Outcome    string
	Err        error
}

// SkillMaintainer validates and repairs stored skill data in bulk.
type SkillMaintainer struct {
	store   repository.SkillStore
	catalog consistency.SkillCatalog
	logger  logger.Logger
}

// NewSkillMaintainer creates a maintainer. A nil catalog resolves through
// the store itself.
func NewSkillMaintainer(store repository.SkillStore, catalog consistency.SkillCatalog, l logger.Logger) *SkillMaintainer {
	if catalog == nil {
		catalog = store
	}
	if l == nil {
		l = logger.Discard()
	}
	return &SkillMaintainer{store: store, catalog: catalog, logger: l}
}

// Validate checks every provider and returns one report each, in store order.
func (m *SkillMaintainer) Validate(ctx context.Context) ([]ConsistencyReport, error) {
	ps, err := m.store.ListProviders(ctx)
	if err != nil {
		return nil, storageError("list_providers", err)
	}

	reports := make([]ConsistencyReport, 0, len(ps))
	for _, p := range ps {
		resolved, err := consistency.ResolveSkillRefs(ctx, p, m.catalog)
		if err != nil {
			return nil, storageError("lookup_skills", err)
		}
		rep := ConsistencyReport{ProviderID: p.ID, Consistent: true}
		if err := consistency.CheckUserSkillConsistency(resolved); err != nil {
			rep.Consistent = false
			rep.Rule = consistency.RuleOf(err)
			rep.Detail = err.Error()
			metrics.RecordConsistencyViolation(rep.Rule)
		}
		reports = append(reports, rep)
	}
	metrics.RecordConsistencyAudit()
	return reports, nil
}

// Repair rebuilds the derived skill arrays of every inconsistent provider
// from its structured list. A provider is saved only when the rebuilt data
// validates; with dryRun nothing is saved. Consistent providers are not
// reported. Per-provider failures are reported, not returned.
func (m *SkillMaintainer) Repair(ctx context.Context, dryRun bool) ([]RepairResult, error) {
	ps, err := m.store.ListProviders(ctx)
	if err != nil {
		return nil, storageError("list_providers", err)
	}

	var results []RepairResult
	for _, p := range ps {
		resolved, err := consistency.ResolveSkillRefs(ctx, p, m.catalog)
		if err != nil {
			return results, storageError("lookup_skills", err)
		}
		violation := consistency.CheckUserSkillConsistency(resolved)
		if violation == nil {
			continue
		}

		res := RepairResult{ProviderID: p.ID, Rule: consistency.RuleOf(violation)}
		fixed, err := consistency.RepairUserSkillSync(resolved)
		switch {
		case err != nil:
			res.Outcome, res.Err = metrics.RepairFailed, err
		case dryRun:
			res.Outcome = metrics.RepairSkipped
		default:
			if err := m.store.SaveProviderSkills(ctx, fixed); err != nil {
				metrics.RecordStorageError("save_provider_skills")
				res.Outcome, res.Err = metrics.RepairFailed, fmt.Errorf("save: %w", err)
			} else {
				res.Outcome = metrics.RepairRepaired
			}
		}

		if err := metrics.RecordRepair(res.Outcome); err != nil {
			m.logger.Debug(ctx, "repair metric not recorded", logger.Error(err))
		}
		fields := []logger.Field{
			logger.String("providerID", res.ProviderID),
			logger.String("rule", res.Rule),
			logger.String("outcome", res.Outcome),
			logger.Bool("dryRun", dryRun),
		}
		if res.Err != nil {
			m.logger.Warn(ctx, "skill repair failed", append(fields, logger.Error(res.Err))...)
		} else {
			m.logger.Info(ctx, "skill repair", fields...)
		}
		results = append(results, res)
	}
	return results, nil
}
