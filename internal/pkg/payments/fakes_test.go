package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cardlinkhq/cardlink/app/models"
	"github.com/cardlinkhq/cardlink/internal/pkg/entitlements"
)

// In-memory collaborators for service tests. They mirror the semantics of the
// GORM-backed implementations, including the conditional status transition.

type memRepo struct {
	mu       sync.Mutex
	nextID   uint
	payments map[uint]*models.Payment

	// beforeApply runs between the caller's read and the conditional write,
	// which is where a concurrent winner would land.
	beforeApply func(paymentID uint)
}

func newMemRepo() *memRepo {
	return &memRepo{payments: map[uint]*models.Payment{}}
}

func (r *memRepo) CreatePayment(p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *memRepo) GetPaymentByUUID(uuid string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.UUID == uuid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) SetPreferenceID(paymentID uint, preferenceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[paymentID]; ok {
		p.PreferenceID = preferenceID
	}
	return nil
}

func (r *memRepo) LatestCurrentApproved(userID uint, now time.Time) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Payment
	for _, p := range r.payments {
		if p.UserID != userID || p.Status != models.PaymentStatusApproved {
			continue
		}
		if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
			continue
		}
		if best == nil || (p.PaidAt != nil && best.PaidAt != nil && p.PaidAt.After(*best.PaidAt)) {
			best = p
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *memRepo) HasCurrentApproved(userID uint, now time.Time) (bool, error) {
	_, err := r.LatestCurrentApproved(userID, now)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *memRepo) ListPendingByUser(userID uint) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.UserID == userID && p.Status == models.PaymentStatusPending {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memRepo) ListByUser(userID uint) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memRepo) ApplyGatewayResult(paymentID uint, upd GatewayResultUpdate) (int64, error) {
	if r.beforeApply != nil {
		r.beforeApply(paymentID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok || p.Status == models.PaymentStatusApproved {
		return 0, nil
	}
	p.Status = upd.Status
	p.ExternalPaymentID = upd.ExternalPaymentID
	p.RawPayloadJSON = upd.RawPayloadJSON
	if upd.PaidAt != nil {
		p.PaidAt = upd.PaidAt
	}
	if upd.ExpiresAt != nil {
		p.ExpiresAt = upd.ExpiresAt
	}
	return 1, nil
}

func (r *memRepo) mustGet(id uint) models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.payments[id]
}

func (r *memRepo) markApproved(paymentID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[paymentID]; ok {
		p.Status = models.PaymentStatusApproved
	}
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

type memUsers struct {
	mu         sync.Mutex
	users      map[uint]*models.User
	planWrites []string // "<id>:<plan>" in write order
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{users: map[uint]*models.User{}}
	for _, u := range users {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *memUsers) GetByID(id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) GetByEmail(email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) UpdatePlan(userID uint, plan string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Plan = plan
	}
	m.planWrites = append(m.planWrites, planWrite(userID, plan))
	return nil
}

func (m *memUsers) ListNonFree() ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.Plan != "" && u.Plan != "free" {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) planOf(id uint) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].Plan
}

func (m *memUsers) writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.planWrites...)
}

func planWrite(userID uint, plan string) string {
	return fmt.Sprintf("%d:%s", userID, plan)
}

type memOrgs struct {
	memberships map[uint][]models.OrganizationMembership
	ownersByOrg map[uint][]models.User
}

func newMemOrgs() *memOrgs {
	return &memOrgs{
		memberships: map[uint][]models.OrganizationMembership{},
		ownersByOrg: map[uint][]models.User{},
	}
}

func (m *memOrgs) addMember(orgID, userID uint) {
	m.memberships[userID] = append(m.memberships[userID], models.OrganizationMembership{
		OrgID:  orgID,
		UserID: userID,
		Role:   models.OrgRoleMember,
	})
}

func (m *memOrgs) addOwner(orgID uint, owner models.User) {
	m.ownersByOrg[orgID] = append(m.ownersByOrg[orgID], owner)
}

func (m *memOrgs) MembershipsOf(userID uint) ([]models.OrganizationMembership, error) {
	return m.memberships[userID], nil
}

func (m *memOrgs) OwnersOf(orgIDs []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range orgIDs {
		out = append(out, m.ownersByOrg[id]...)
	}
	return out, nil
}

type fakeGateway struct {
	mu          sync.Mutex
	byID        map[string]GatewayPayment
	byRef       map[string][]GatewayPayment
	getErr      error
	searchErr   error
	prefErr     error
	getCalls    int
	prefRequest *PreferenceRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		byID:  map[string]GatewayPayment{},
		byRef: map[string][]GatewayPayment{},
	}
}

func (g *fakeGateway) add(gp GatewayPayment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byID[gp.ID] = gp
	g.byRef[gp.ExternalReference] = append(g.byRef[gp.ExternalReference], gp)
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	if gp, ok := g.byID[paymentID]; ok {
		return &gp, nil
	}
	return nil, errors.New("gateway payment not found")
}

func (g *fakeGateway) SearchByExternalReference(ctx context.Context, externalReference string) ([]GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.searchErr != nil {
		return nil, g.searchErr
	}
	return append([]GatewayPayment(nil), g.byRef[externalReference]...), nil
}

func (g *fakeGateway) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.prefErr != nil {
		return nil, g.prefErr
	}
	cp := req
	g.prefRequest = &cp
	return &Preference{ID: "pref-1", InitPoint: "https://gateway.test/checkout/pref-1"}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendPaymentConfirmation(email, name, plan string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email+":"+plan)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeCache struct {
	mu           sync.Mutex
	entries      map[uint]Entitlement
	invalidated  []uint
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[uint]Entitlement{}}
}

func (c *fakeCache) Get(userID uint) (*Entitlement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.entries[userID]; ok {
		return &ent, true
	}
	return nil, false
}

func (c *fakeCache) Set(userID uint, ent Entitlement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = ent
}

func (c *fakeCache) Invalidate(userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.invalidated = append(c.invalidated, userID)
}

type testEnv struct {
	svc     *Service
	repo    *memRepo
	users   *memUsers
	orgs    *memOrgs
	gateway *fakeGateway
	mailer  *fakeMailer
	cache   *fakeCache
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(opts Options, users ...*models.User) *testEnv {
	env := &testEnv{
		repo:    newMemRepo(),
		users:   newMemUsers(users...),
		orgs:    newMemOrgs(),
		gateway: newFakeGateway(),
		mailer:  &fakeMailer{},
		cache:   newFakeCache(),
	}
	if opts.Currency == "" {
		opts.Currency = "ARS"
	}
	env.svc = NewService(env.repo, env.users, env.orgs, env.gateway, env.mailer, env.cache, opts)
	env.svc.now = func() time.Time { return testNow }
	return env
}

func testPrices() map[entitlements.Plan]float64 {
	return map[entitlements.Plan]float64{
		entitlements.PlanPro:        10,
		entitlements.PlanBusiness:   25,
		entitlements.PlanEnterprise: 60,
	}
}
