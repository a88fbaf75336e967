package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/storefront-auth/internal/mailer/mailertest"
	"github.com/iliyamo/storefront-auth/internal/model"
	"github.com/iliyamo/storefront-auth/internal/queue/queuetest"
	"github.com/iliyamo/storefront-auth/internal/repository"
	"github.com/iliyamo/storefront-auth/internal/utils"
)

const testSecret = "test-secret"

type fixture struct {
	svc    *AuthService
	users  *repository.MemoryUserStore
	mail   *mailertest.Recorder
	events *queuetest.Recorder
	tokens *utils.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := repository.NewMemoryUserStore()
	mail := mailertest.New()
	events := &queuetest.Recorder{}
	tokens := utils.NewTokenService(testSecret)
	log := zap.NewNop().Sugar()
	v := NewVerifier(users, tokens, mail, events, 24*time.Hour, log)
	svc := NewAuthService(users, utils.NewPasswordCodec(bcrypt.MinCost), tokens, v, events, time.Hour, log)
	return &fixture{svc: svc, users: users, mail: mail, events: events, tokens: tokens}
}

func anaInput() RegisterInput {
	return RegisterInput{
		Username: "ana",
		Email:    "ana@x.com",
		Password: "Secr3t!@",
		Origin:   "http://localhost:5000",
	}
}

var tokenInLink = regexp.MustCompile(`token=([^"&]+)`)

// mailedToken extracts the activation token from the last sent email.
func (f *fixture) mailedToken(t *testing.T) string {
	t.Helper()
	msg, ok := f.mail.Last()
	require.True(t, ok, "no email sent")
	m := tokenInLink.FindStringSubmatch(msg.HTML)
	require.Len(t, m, 2, msg.HTML)
	tok, err := url.QueryUnescape(m[1])
	require.NoError(t, err)
	return tok
}

// registerVerified creates an account and redeems its activation link.
func (f *fixture) registerVerified(t *testing.T, in RegisterInput) *model.User {
	t.Helper()
	res, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	_, err = f.svc.Verify(context.Background(), f.mailedToken(t))
	require.NoError(t, err)
	return res.User
}

func (f *fixture) sessionFor(t *testing.T, u *model.User) string {
	t.Helper()
	tok, err := f.tokens.Issue(u.ID, u.Role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func TestRegister_AnaEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, anaInput())
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.True(t, res.VerificationSent)
	assert.Equal(t, model.RoleCustomer, res.User.Role)
	assert.False(t, res.User.Verified)

	stored, err := f.users.FindByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.Verified)
	assert.NotEqual(t, "Secr3t!@", stored.PasswordHash)
	assert.True(t, utils.NewPasswordCodec(bcrypt.MinCost).Verify("Secr3t!@", stored.PasswordHash))

	msg, ok := f.mail.Last()
	require.True(t, ok)
	assert.Equal(t, "ana@x.com", msg.To)
	assert.Contains(t, msg.HTML, "http://localhost:5000/auth/verify?token=")

	claims, err := f.tokens.Verify(f.mailedToken(t))
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.Subject)
	assert.Empty(t, claims.Role, "activation token must not carry a role")

	reg, _ := f.events.Counts()
	require.Equal(t, 1, reg)
	assert.Equal(t, res.User.ID, f.events.Registered[0].UserID)
	assert.True(t, f.events.Registered[0].VerificationSent)
}

func TestRegister_DuplicateHandleConflictsWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, anaInput())
	require.NoError(t, err)
	sent := len(f.mail.Sent())

	in := anaInput()
	in.Email = "other@x.com"
	_, err = f.svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.users.Len())
	assert.Len(t, f.mail.Sent(), sent)

	in = anaInput()
	in.Username = "ana2"
	in.Email = "ANA@x.com"
	_, err = f.svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, f.users.Len())
}

func TestRegister_ConcurrentSameHandleOneWins(t *testing.T) {
	f := newFixture(t)
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := anaInput()
			in.Email = "ana" + string(rune('a'+i)) + "@x.com"
			_, errs[i] = f.svc.Register(context.Background(), in)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.users.Len())
}

func TestRegister_EmailFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.mail.Fail()

	res, err := f.svc.Register(context.Background(), anaInput())
	require.NoError(t, err)
	assert.False(t, res.VerificationSent)
	assert.Equal(t, 1, f.users.Len())
	assert.False(t, f.events.Registered[0].VerificationSent)
}

func TestRegister_InvalidRole(t *testing.T) {
	f := newFixture(t)
	in := anaInput()
	in.Role = "superuser"
	_, err := f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, f.users.Len())
}

func TestRegister_RoleEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// First admin needs no bearer.
	boot := anaInput()
	boot.Username, boot.Email, boot.Role = "root", "root@x.com", "admin"
	res, err := f.svc.Register(ctx, boot)
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, res.User.Role)
	admin := res.User

	cust := anaInput()
	res, err = f.svc.Register(ctx, cust)
	require.NoError(t, err)
	customer := res.User

	adminToken := f.sessionFor(t, admin)
	customerToken := f.sessionFor(t, customer)
	expired, err := f.tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).
		Issue(admin.ID, model.RoleAdmin, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		role   string
		bearer string
		want   model.Role
		err    error
	}{
		{"second admin without bearer", "admin", "", "", ErrForbidden},
		{"second admin with customer token", "admin", customerToken, "", ErrForbidden},
		{"second admin with garbage token", "admin", "not.a.jwt", "", ErrUnauthenticated},
		{"second admin with expired admin token", "admin", expired.Token, "", ErrUnauthenticated},
		{"second admin with admin token", "admin", adminToken, model.RoleAdmin, nil},
		{"courier without bearer", "courier", "", "", ErrForbidden},
		{"courier with admin token", "COURIER", adminToken, model.RoleCourier, nil},
		{"explicit customer ignores bearer", "customer", "garbage", model.RoleCustomer, nil},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := anaInput()
			in.Username = "user" + string(rune('a'+i))
			in.Email = in.Username + "@x.com"
			in.Role = tc.role
			in.Bearer = tc.bearer
			before := f.users.Len()

			res, err := f.svc.Register(ctx, in)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Equal(t, before, f.users.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.User.Role)
		})
	}
}

func TestRolePolicy_CourierNeedsAdminEvenWithoutAdmins(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.policy.DecideRole(context.Background(), model.RoleCourier, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, anaInput())
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "nobody", "", "Secr3t!@")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = f.svc.Login(ctx, "", "", "Secr3t!@")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = f.svc.Login(ctx, "ana", "", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = f.svc.Login(ctx, "ana", "", "Secr3t!@")
	assert.ErrorIs(t, err, ErrUnverified)
	assert.False(t, errors.Is(err, ErrBadCredentials))

	_, err = f.svc.Verify(ctx, f.mailedToken(t))
	require.NoError(t, err)

	for _, c := range []struct{ username, email string }{
		{"ana", ""},
		{"", "ana@x.com"},
		{"", " ANA@X.COM "},
		{"someone-else", "ana@x.com"},
	} {
		out, err := f.svc.Login(ctx, c.username, c.email, "Secr3t!@")
		require.NoError(t, err, c)
		claims, err := f.tokens.Verify(out.Token.Token)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, claims.Subject)
		assert.Equal(t, model.RoleCustomer, claims.Role)
		assert.WithinDuration(t, time.Now().Add(time.Hour), out.Token.Exp, 5*time.Second)
	}
}

func TestLogin_UsernameShapedLikeAnotherEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	squatter := f.registerVerified(t, RegisterInput{
		Username: "victim@x.com", Email: "attacker@x.com", Password: "Attack3r!", Origin: "http://localhost",
	})
	owner := f.registerVerified(t, RegisterInput{
		Username: "victim", Email: "victim@x.com", Password: "Secr3t!@", Origin: "http://localhost",
	})

	out, err := f.svc.Login(ctx, "", "victim@x.com", "Secr3t!@")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, out.User.ID)

	out, err = f.svc.Login(ctx, "victim@x.com", "", "Attack3r!")
	require.NoError(t, err)
	assert.Equal(t, squatter.ID, out.User.ID)

	_, err = f.svc.Login(ctx, "", "victim@x.com", "Attack3r!")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestVerify_DoubleRedemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, anaInput())
	require.NoError(t, err)
	tok := f.mailedToken(t)

	u, err := f.svc.Verify(ctx, tok)
	require.NoError(t, err)
	assert.True(t, u.Verified)

	u, err = f.svc.Verify(ctx, tok)
	require.NoError(t, err)
	assert.True(t, u.Verified)

	_, verified := f.events.Counts()
	assert.Equal(t, 1, verified)
}

func TestVerify_BadTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Register(ctx, anaInput())
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	other := utils.NewTokenService("other-secret")
	forged, err := other.Issue(res.User.ID, "", time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, forged.Token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	old, err := f.tokens.WithClock(func() time.Time { return time.Now().Add(-25 * time.Hour) }).
		Issue(res.User.ID, "", 24*time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, old.Token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = f.svc.Verify(ctx, f.sessionFor(t, res.User))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	stored, _ := f.users.FindByID(ctx, res.User.ID)
	assert.False(t, stored.Verified)
}

func TestVerify_DeletedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Register(ctx, anaInput())
	require.NoError(t, err)
	tok := f.mailedToken(t)

	_, err = f.users.DeleteByID(ctx, res.User.ID)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, tok)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.registerVerified(t, anaInput())
	bobIn := anaInput()
	bobIn.Username, bobIn.Email = "bob", "bob@x.com"
	bob := f.registerVerified(t, bobIn)

	name := "Mallory"
	_, err := f.svc.UpdateUser(ctx, model.Identity{ID: bob.ID, Role: model.RoleCustomer}, ana.ID, model.UserPatch{FirstName: &name})
	assert.ErrorIs(t, err, ErrForbidden)
	stored, _ := f.users.FindByID(ctx, ana.ID)
	assert.Empty(t, stored.FirstName)

	name = "Ana"
	admin := model.RoleAdmin
	u, err := f.svc.UpdateUser(ctx, model.Identity{ID: ana.ID, Role: model.RoleCustomer}, ana.ID, model.UserPatch{FirstName: &name, Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.FirstName)
	assert.Equal(t, model.RoleCustomer, u.Role, "role is not editable through profile update")

	phone := "555"
	u, err = f.svc.UpdateUser(ctx, model.Identity{ID: "someone", Role: model.RoleAdmin}, bob.ID, model.UserPatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "555", u.Phone)

	_, err = f.svc.UpdateUser(ctx, model.Identity{ID: ana.ID, Role: model.RoleCustomer}, ana.ID, model.UserPatch{})
	assert.ErrorIs(t, err, ErrValidation)

	taken := "bob@x.com"
	_, err = f.svc.UpdateUser(ctx, model.Identity{ID: ana.ID, Role: model.RoleCustomer}, ana.ID, model.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.UpdateUser(ctx, model.Identity{ID: "x", Role: model.RoleAdmin}, "missing", model.UserPatch{Phone: &phone})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangeRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.registerVerified(t, anaInput())

	_, err := f.svc.ChangeRole(ctx, model.Identity{ID: ana.ID, Role: model.RoleCustomer}, ana.ID, model.RoleAdmin)
	assert.ErrorIs(t, err, ErrForbidden)

	adminID := model.Identity{ID: "root", Role: model.RoleAdmin}
	u, err := f.svc.ChangeRole(ctx, adminID, ana.ID, model.RoleCourier)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCourier, u.Role)

	_, err = f.svc.ChangeRole(ctx, adminID, ana.ID, model.Role("root"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.ChangeRole(ctx, adminID, "missing", model.RoleCourier)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.registerVerified(t, anaInput())
	bobIn := anaInput()
	bobIn.Username, bobIn.Email = "bob", "bob@x.com"
	bob := f.registerVerified(t, bobIn)

	_, err := f.svc.DeleteUser(ctx, model.Identity{ID: bob.ID, Role: model.RoleCustomer}, ana.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 2, f.users.Len())

	u, err := f.svc.DeleteUser(ctx, model.Identity{ID: ana.ID, Role: model.RoleCustomer}, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, ana.ID, u.ID)

	_, err = f.svc.DeleteUser(ctx, model.Identity{ID: "root", Role: model.RoleAdmin}, ana.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.DeleteUser(ctx, model.Identity{ID: "root", Role: model.RoleAdmin}, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.users.Len())
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ana := f.registerVerified(t, anaInput())

	u, err := f.svc.Profile(context.Background(), model.Identity{ID: ana.ID, Role: ana.Role})
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Username)

	_, err = f.svc.Profile(context.Background(), model.Identity{ID: "gone"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanActOn(t *testing.T) {
	assert.NoError(t, CanActOn(model.Identity{ID: "a", Role: model.RoleCustomer}, "a"))
	assert.NoError(t, CanActOn(model.Identity{ID: "a", Role: model.RoleAdmin}, "b"))
	assert.ErrorIs(t, CanActOn(model.Identity{ID: "a", Role: model.RoleCourier}, "b"), ErrForbidden)
	assert.ErrorIs(t, CanActOn(model.Identity{}, ""), ErrForbidden)
}
