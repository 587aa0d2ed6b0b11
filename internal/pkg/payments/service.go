package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cardlinkhq/cardlink/app/models"
	"github.com/cardlinkhq/cardlink/app/repository"
	"github.com/cardlinkhq/cardlink/internal/pkg/entitlements"
	"github.com/cardlinkhq/cardlink/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSubscriptionTerm is the flat term granted per approved payment.
// Terms do not prorate and do not stack with a prior subscription.
const DefaultSubscriptionTerm = 365 * 24 * time.Hour

// Mailer sends the payment confirmation. Fire-and-forget; a failure never
// blocks the state transition.
type Mailer interface {
	SendPaymentConfirmation(email, name, plan string) error
}

// Options is the injected configuration of the payments service.
type Options struct {
	WhitelistEmails  []string
	Prices           map[entitlements.Plan]float64
	Currency         string
	SubscriptionTerm time.Duration
	WebhookSecret    string
	NotificationURL  string
	BackURL          string
}

// OptionsFromEnv builds service options from environment configuration.
func OptionsFromEnv() Options {
	prices := map[entitlements.Plan]float64{}
	for plan, key := range map[entitlements.Plan]string{
		entitlements.PlanPro:        "PLAN_PRICE_PRO",
		entitlements.PlanBusiness:   "PLAN_PRICE_BUSINESS",
		entitlements.PlanEnterprise: "PLAN_PRICE_ENTERPRISE",
	} {
		raw := strings.TrimSpace(env.GetEnv(key, ""))
		if raw == "" {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price <= 0 {
			log.Warnf("[Payments] ignoring invalid %s=%q", key, raw)
			continue
		}
		prices[plan] = price
	}

	var whitelist []string
	for _, email := range strings.Split(env.GetEnv("PLAN_WHITELIST_EMAILS", ""), ",") {
		if e := strings.TrimSpace(email); e != "" {
			whitelist = append(whitelist, e)
		}
	}

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	notificationURL := strings.TrimSpace(env.GetEnv("MP_NOTIFICATION_URL", ""))
	if notificationURL == "" && base != "" {
		notificationURL = base + "/webhooks/mercadopago"
	}

	return Options{
		WhitelistEmails:  whitelist,
		Prices:           prices,
		Currency:         env.GetEnv("PLAN_CURRENCY", "ARS"),
		SubscriptionTerm: DefaultSubscriptionTerm,
		WebhookSecret:    env.GetEnv("MP_WEBHOOK_SECRET", ""),
		NotificationURL:  notificationURL,
		BackURL:          base + "/checkout/result",
	}
}

// Service owns every write to User.Plan and Payment.Status.
type Service struct {
	repo      Repository
	users     repository.UserRepository
	orgs      repository.OrganizationRepository
	gateway   Gateway
	mailer    Mailer
	cache     EntitlementCache
	opts      Options
	whitelist map[string]struct{}
	now       func() time.Time
}

// NewService creates a payments service from injected collaborators. Mailer
// and cache may be nil.
func NewService(repo Repository, users repository.UserRepository, orgs repository.OrganizationRepository, gateway Gateway, mailer Mailer, cache EntitlementCache, opts Options) *Service {
	if opts.SubscriptionTerm <= 0 {
		opts.SubscriptionTerm = DefaultSubscriptionTerm
	}
	whitelist := make(map[string]struct{}, len(opts.WhitelistEmails))
	for _, email := range opts.WhitelistEmails {
		whitelist[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &Service{
		repo:      repo,
		users:     users,
		orgs:      orgs,
		gateway:   gateway,
		mailer:    mailer,
		cache:     cache,
		opts:      opts,
		whitelist: whitelist,
		now:       time.Now,
	}
}

// NewServiceFromDB wires a service against GORM-backed repositories and the
// env-configured gateway client.
func NewServiceFromDB(db *gorm.DB, mailer Mailer, cache EntitlementCache) *Service {
	factory := repository.NewFactory(db)
	return NewService(
		NewRepository(db),
		factory.GetUserRepository(),
		factory.GetOrganizationRepository(),
		NewMercadoPagoClientFromEnv(),
		mailer,
		cache,
		OptionsFromEnv(),
	)
}

func (s *Service) isWhitelisted(email string) bool {
	_, ok := s.whitelist[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// StartCheckout creates a pending payment and opens a checkout session at the
// gateway. The payment UUID travels as the gateway external reference.
func (s *Service) StartCheckout(ctx context.Context, userID uint, email, targetPlan string) (*CheckoutSession, error) {
	if !entitlements.IsKnown(targetPlan) || entitlements.Normalize(targetPlan) == entitlements.PlanFree {
		return nil, ErrUnknownPlan
	}
	target := entitlements.Normalize(targetPlan)

	price, ok := s.opts.Prices[target]
	if !ok {
		return nil, ErrPlanNotPriced
	}

	current, err := s.ResolveEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Plan != entitlements.PlanFree && entitlements.Rank(current.Plan) >= entitlements.Rank(target) {
		return nil, ErrAlreadyEntitled
	}

	payment := &models.Payment{
		UUID:       uuid.NewString(),
		UserID:     userID,
		Amount:     price,
		Currency:   s.opts.Currency,
		Plan:       string(target),
		Status:     models.PaymentStatusPending,
		PayerEmail: strings.TrimSpace(email),
	}
	if err := s.repo.CreatePayment(payment); err != nil {
		return nil, err
	}

	pref, err := s.gateway.CreatePreference(ctx, PreferenceRequest{
		Title:             fmt.Sprintf("CardLink %s (1 year)", target),
		Amount:            price,
		Currency:          s.opts.Currency,
		PayerEmail:        payment.PayerEmail,
		ExternalReference: payment.UUID,
		NotificationURL:   s.opts.NotificationURL,
		BackURL:           s.opts.BackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout session creation failed: %w", err)
	}
	if err := s.repo.SetPreferenceID(payment.ID, pref.ID); err != nil {
		return nil, err
	}

	return &CheckoutSession{RedirectURL: pref.InitPoint, PaymentUUID: payment.UUID}, nil
}

// ProcessWebhook handles one inbound gateway notification. Non-payment
// events, unknown references and gateway read failures are absorbed: the
// gateway retries on its own schedule and the poll path exists as a backstop.
func (s *Service) ProcessWebhook(ctx context.Context, n WebhookNotification) error {
	if !n.IsPaymentEvent() {
		log.Infof("[Payments] dropping non-payment webhook: type=%q action=%q", n.Type, n.Action)
		return nil
	}
	if strings.TrimSpace(s.opts.WebhookSecret) != "" {
		if !VerifyWebhookSignature(n.Signature, n.RequestID, n.DataID, s.opts.WebhookSecret) {
			// Not blocking: the authoritative status comes from the direct
			// gateway read below, not from the push body.
			log.Warnf("[Payments] webhook signature mismatch for data id %q", n.DataID)
		}
	}
	if strings.TrimSpace(n.DataID) == "" {
		log.Infof("[Payments] dropping payment webhook without data id: action=%q", n.Action)
		return nil
	}
	return s.ApplyGatewayPaymentID(ctx, n.DataID)
}

// ApplyGatewayPaymentID refetches a payment from the gateway and applies it.
// Gateway unavailability is logged and absorbed, never surfaced.
func (s *Service) ApplyGatewayPaymentID(ctx context.Context, gatewayPaymentID string) error {
	gp, err := s.gateway.GetPayment(ctx, gatewayPaymentID)
	if err != nil {
		log.Warnf("[Payments] gateway read failed for payment %s: %v", gatewayPaymentID, err)
		return nil
	}
	_, err = s.applyGatewayPayment(ctx, gp)
	return err
}

// VerifyPendingPayments is the pull path: it searches the gateway for each of
// the user's pending payments, newest first, and feeds any hit into the same
// transition logic as the webhook path. It returns how many rows actually
// transitioned; drops and duplicates do not count.
func (s *Service) VerifyPendingPayments(ctx context.Context, userID uint) (int, error) {
	pending, err := s.repo.ListPendingByUser(userID)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, payment := range pending {
		results, err := s.gateway.SearchByExternalReference(ctx, payment.UUID)
		if err != nil {
			log.Warnf("[Payments] gateway search failed for payment %s: %v", payment.UUID, err)
			continue
		}
		for i := range results {
			changed, err := s.applyGatewayPayment(ctx, &results[i])
			if err != nil {
				return applied, err
			}
			if changed {
				applied++
			}
		}
	}
	return applied, nil
}

// ListPayments returns the user's payment history, newest first.
func (s *Service) ListPayments(ctx context.Context, userID uint) ([]models.Payment, error) {
	_ = ctx
	return s.repo.ListByUser(userID)
}

// applyGatewayPayment is the single transition point both delivery paths
// converge on. The conditional update in ApplyGatewayResult makes "decide to
// approve" and "commit the approval" atomic, so duplicate deliveries and
// racing callers can apply the plan-sync and mail side effects at most once.
// It reports whether a row actually transitioned.
func (s *Service) applyGatewayPayment(ctx context.Context, gp *GatewayPayment) (bool, error) {
	_ = ctx
	target := mapGatewayStatus(gp.Status)

	ref := strings.TrimSpace(gp.ExternalReference)
	if ref == "" {
		log.Infof("[Payments] dropping gateway payment %s without external reference", gp.ID)
		return false, nil
	}

	payment, err := s.repo.GetPaymentByUUID(ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infof("[Payments] dropping gateway payment %s: unknown external reference %q", gp.ID, ref)
			return false, nil
		}
		return false, err
	}

	if payment.Status == models.PaymentStatusApproved {
		// Approved is final for this path. A later refunded/charged_back
		// event lands here and is deliberately inert; see DESIGN.md.
		log.Infof("[Payments] payment %s already approved, ignoring gateway status %q", payment.UUID, gp.Status)
		return false, nil
	}
	if payment.ExternalPaymentID == gp.ID && payment.Status == target {
		log.Infof("[Payments] duplicate delivery for payment %s (status %q)", payment.UUID, target)
		return false, nil
	}

	upd := GatewayResultUpdate{
		Status:            target,
		ExternalPaymentID: gp.ID,
		RawPayloadJSON:    gp.RawJSON,
	}
	if target == models.PaymentStatusApproved {
		paidAt := s.now()
		if gp.DateApproved != nil {
			paidAt = *gp.DateApproved
		}
		expiresAt := paidAt.Add(s.opts.SubscriptionTerm)
		upd.PaidAt = &paidAt
		upd.ExpiresAt = &expiresAt
	}

	rows, err := s.repo.ApplyGatewayResult(payment.ID, upd)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		// A concurrent invocation already settled this payment; nothing
		// more to do here.
		log.Infof("[Payments] lost transition race for payment %s, skipping side effects", payment.UUID)
		return false, nil
	}

	log.Infof("[Payments] payment %s transitioned to %s (gateway id %s)", payment.UUID, target, gp.ID)
	if target == models.PaymentStatusApproved {
		s.syncPlanAfterApproval(payment)
	}
	return true, nil
}

func (s *Service) syncPlanAfterApproval(payment *models.Payment) {
	plan := entitlements.Normalize(payment.Plan)
	if strings.TrimSpace(payment.Plan) == "" || plan == entitlements.PlanFree {
		// Legacy rows recorded no plan; they were all pro purchases.
		plan = entitlements.PlanPro
	}

	if err := s.users.UpdatePlan(payment.UserID, string(plan)); err != nil {
		log.Errorf("[Payments] plan sync failed for user %d: %v", payment.UserID, err)
		return
	}
	s.invalidateEntitlement(payment.UserID)

	if s.mailer == nil {
		return
	}
	email := payment.PayerEmail
	name := ""
	if user, err := s.users.GetByID(payment.UserID); err == nil {
		name = user.Name
		if email == "" {
			email = user.Email
		}
	}
	if email == "" {
		return
	}
	go func() {
		if err := s.mailer.SendPaymentConfirmation(email, name, string(plan)); err != nil {
			log.Warnf("[Payments] confirmation mail to %s failed: %v", email, err)
		}
	}()
}

// GrantPlan is the operator-authoritative override: it writes the user plan
// directly and records a zero-amount approved payment as the audit trail for
// any non-free grant. It never touches the reconciler's conditional update.
func (s *Service) GrantPlan(ctx context.Context, operatorID uint, targetEmail, plan string, days int) (*models.User, error) {
	_ = ctx
	if !entitlements.IsKnown(plan) {
		return nil, ErrUnknownPlan
	}
	granted := entitlements.Normalize(plan)

	user, err := s.users.GetByEmail(targetEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.users.UpdatePlan(user.ID, string(granted)); err != nil {
		return nil, err
	}
	user.Plan = string(granted)
	s.invalidateEntitlement(user.ID)

	if granted != entitlements.PlanFree {
		term := s.opts.SubscriptionTerm
		if days > 0 {
			term = time.Duration(days) * 24 * time.Hour
		}
		paidAt := s.now()
		expiresAt := paidAt.Add(term)
		audit := &models.Payment{
			UUID:       uuid.NewString(),
			UserID:     user.ID,
			Amount:     0,
			Currency:   s.opts.Currency,
			Plan:       string(granted),
			Status:     models.PaymentStatusApproved,
			PayerEmail: user.Email,
			PaidAt:     &paidAt,
			ExpiresAt:  &expiresAt,
		}
		if err := s.repo.CreatePayment(audit); err != nil {
			return nil, err
		}
	}

	log.Infof("[Payments] operator %d granted %s to user %d (%s)", operatorID, granted, user.ID, user.Email)
	return user, nil
}
