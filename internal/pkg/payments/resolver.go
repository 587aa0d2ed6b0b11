package payments

import (
	"context"
	"errors"

	"github.com/cardlinkhq/cardlink/app/models"
	"github.com/cardlinkhq/cardlink/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// ResolveEntitlement computes the effective plan for a user: whitelist
// override, then own paid plan with lazy expiry downgrade, then org-inherited
// upgrade, then the rank comparison. It runs on every authorization-sensitive
// request, so results are cached briefly and the one side effect (the
// downgrade write) is idempotent under concurrency.
func (s *Service) ResolveEntitlement(ctx context.Context, userID uint) (Entitlement, error) {
	if s.cache != nil {
		if ent, ok := s.cache.Get(userID); ok {
			return *ent, nil
		}
	}

	ent, err := s.resolveEntitlement(ctx, userID)
	if err != nil {
		return Entitlement{}, err
	}
	if s.cache != nil {
		s.cache.Set(userID, ent)
	}
	return ent, nil
}

func (s *Service) resolveEntitlement(ctx context.Context, userID uint) (Entitlement, error) {
	_ = ctx
	user, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Callers may race with account deletion; default, don't fail.
			return freeEntitlement(), nil
		}
		return Entitlement{}, err
	}

	if s.isWhitelisted(user.Email) {
		return Entitlement{
			Plan:   entitlements.PlanEnterprise,
			Limits: entitlements.LimitsFor(entitlements.PlanEnterprise),
		}, nil
	}

	candidate := entitlements.Normalize(user.Plan)
	var backing *models.Payment
	if candidate != entitlements.PlanFree {
		payment, err := s.repo.LatestCurrentApproved(user.ID, s.now())
		switch {
		case err == nil:
			backing = payment
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Stale cache: no live approved payment backs the stored plan.
			// Best effort downgrade; writing free twice is harmless.
			if werr := s.users.UpdatePlan(user.ID, string(entitlements.PlanFree)); werr != nil {
				log.Warnf("[Payments] lazy downgrade of user %d failed: %v", user.ID, werr)
			}
			candidate = entitlements.PlanFree
		default:
			return Entitlement{}, err
		}
	}

	inherited := s.inheritedOrgPlan(user.ID)

	plan := candidate
	if entitlements.Rank(inherited) > entitlements.Rank(candidate) {
		plan = inherited
	}

	ent := Entitlement{Plan: plan, Limits: entitlements.LimitsFor(plan)}
	if backing != nil {
		// Inheritance is a standing grant tied to membership, not time, so
		// the expiry shown is always the candidate's own.
		ent.ExpiresAt = backing.ExpiresAt
	}
	return ent, nil
}

// inheritedOrgPlan returns the highest business-or-above plan among the
// owners of the user's organizations. Owners are resolved by whitelist and
// stored plan only, never through their own org memberships, so
// mutually-owning organizations cannot recurse.
func (s *Service) inheritedOrgPlan(userID uint) entitlements.Plan {
	memberships, err := s.orgs.MembershipsOf(userID)
	if err != nil {
		log.Warnf("[Payments] membership read failed for user %d: %v", userID, err)
		return entitlements.PlanFree
	}
	if len(memberships) == 0 {
		return entitlements.PlanFree
	}

	orgIDs := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		orgIDs = append(orgIDs, m.OrgID)
	}

	owners, err := s.orgs.OwnersOf(orgIDs)
	if err != nil {
		log.Warnf("[Payments] owner read failed for orgs of user %d: %v", userID, err)
		return entitlements.PlanFree
	}

	best := entitlements.PlanFree
	for i := range owners {
		ownerPlan := s.resolveOwnerPlan(&owners[i])
		if entitlements.Rank(ownerPlan) < entitlements.Rank(entitlements.PlanBusiness) {
			// Inheritance only flows from business+ owners.
			continue
		}
		if entitlements.Rank(ownerPlan) > entitlements.Rank(best) {
			best = ownerPlan
		}
	}
	return best
}

func (s *Service) resolveOwnerPlan(owner *models.User) entitlements.Plan {
	if s.isWhitelisted(owner.Email) {
		return entitlements.PlanEnterprise
	}
	return entitlements.Normalize(owner.Plan)
}

func freeEntitlement() Entitlement {
	return Entitlement{
		Plan:   entitlements.PlanFree,
		Limits: entitlements.LimitsFor(entitlements.PlanFree),
	}
}

func (s *Service) invalidateEntitlement(userID uint) {
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
}
