package dashboard

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-crm/odyssey-crm/internal/deals"
	"github.com/odyssey-crm/odyssey-crm/internal/leads"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
)

const reportEntity = "report"

// LeadFunnel reports lead counts per status for the whole tenant.
func (s *Service) LeadFunnel(ctx context.Context) (*LeadFunnel, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermAccessReports, reportEntity)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.LeadCounts(ctx, access.Scope, uuid.Nil)
	if err != nil {
		return nil, err
	}
	funnel := &LeadFunnel{Statuses: orderStatuses(counts)}
	var won int
	for _, c := range funnel.Statuses {
		funnel.Total += c.Count
		if c.Status == string(leads.StatusWon) {
			won = c.Count
		}
	}
	if funnel.Total > 0 {
		funnel.ConversionRate = float64(won) / float64(funnel.Total)
	}
	return funnel, nil
}

// Pipeline reports deal counts and values per stage for the whole tenant.
func (s *Service) Pipeline(ctx context.Context) (*PipelineReport, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermAccessReports, reportEntity)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.Pipeline(ctx, access.Scope, uuid.Nil)
	if err != nil {
		return nil, err
	}
	report := &PipelineReport{Stages: orderStages(totals)}
	for _, st := range report.Stages {
		report.TotalDeals += st.Count
		switch deals.Stage(st.Stage) {
		case deals.StageClosedWon:
			report.WonValue += st.Value
		case deals.StageClosedLost:
		default:
			report.OpenValue += st.Value
			report.Weighted += st.Weighted
		}
	}
	return report, nil
}

// Performance reports lead and deal results per member of the tenant.
func (s *Service) Performance(ctx context.Context) ([]RepPerformance, error) {
	access, err := s.guard.Authorize(ctx, rbac.PermAccessReports, reportEntity)
	if err != nil {
		return nil, err
	}
	var (
		repLeads []RepLeads
		repDeals []RepDeals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		repLeads, err = s.repo.RepLeads(gctx, access.Scope)
		return err
	})
	g.Go(func() error {
		var err error
		repDeals, err = s.repo.RepDeals(gctx, access.Scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergePerformance(repLeads, repDeals), nil
}

func mergePerformance(repLeads []RepLeads, repDeals []RepDeals) []RepPerformance {
	byUser := make(map[uuid.UUID]*RepPerformance)
	get := func(id uuid.UUID, name string) *RepPerformance {
		if p, ok := byUser[id]; ok {
			return p
		}
		p := &RepPerformance{UserID: id, Name: name}
		byUser[id] = p
		return p
	}
	for _, rl := range repLeads {
		p := get(rl.UserID, rl.Name)
		p.Leads, p.LeadsWon = rl.Leads, rl.Won
	}
	for _, rd := range repDeals {
		p := get(rd.UserID, rd.Name)
		p.Deals, p.DealsWon, p.WonValue = rd.Deals, rd.Won, rd.WonValue
	}
	out := make([]RepPerformance, 0, len(byUser))
	for _, p := range byUser {
		if p.Deals > 0 {
			p.WinRate = float64(p.DealsWon) / float64(p.Deals)
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WonValue != out[j].WonValue {
			return out[i].WonValue > out[j].WonValue
		}
		return out[i].Name < out[j].Name
	})
	return out
}
