package payments

import (
	"context"

	"github.com/cardlinkhq/cardlink/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
)

// ExpireLapsedPlans downgrades every non-free, non-whitelisted user with no
// live approved payment. It is the safety net for subscriptions whose expiry
// passed without a gateway event; the resolver performs the same downgrade
// lazily on read, and both must reach the same answer for the same input.
func (s *Service) ExpireLapsedPlans(ctx context.Context) (int, error) {
	users, err := s.users.ListNonFree()
	if err != nil {
		return 0, err
	}

	now := s.now()
	downgraded := 0
	for i := range users {
		select {
		case <-ctx.Done():
			return downgraded, ctx.Err()
		default:
		}

		user := &users[i]
		if s.isWhitelisted(user.Email) {
			continue
		}

		current, err := s.repo.HasCurrentApproved(user.ID, now)
		if err != nil {
			log.Warnf("[Payments] sweep: payment check failed for user %d: %v", user.ID, err)
			continue
		}
		if current {
			continue
		}

		if err := s.users.UpdatePlan(user.ID, string(entitlements.PlanFree)); err != nil {
			log.Warnf("[Payments] sweep: downgrade of user %d failed: %v", user.ID, err)
			continue
		}
		s.invalidateEntitlement(user.ID)
		log.Infof("[Payments] sweep: downgraded user %d (%s) from %s", user.ID, user.Email, user.Plan)
		downgraded++
	}
	return downgraded, nil
}
