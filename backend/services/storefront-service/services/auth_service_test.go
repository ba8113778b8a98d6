package services

import (
	"context"
	"testing"

	"github.com/bloomsisters/storefront/backend/services/common/auth"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- Mocks for Dependencies ---

type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.user(m.Called(ctx, username))
}

func (m *MockUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return m.user(m.Called(ctx, googleID))
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

type MockTokenIssuer struct{ mock.Mock }

func (m *MockTokenIssuer) Generate(c auth.Claims) (string, error) {
	args := m.Called(c)
	return args.String(0), args.Error(1)
}

type MockGoogleVerifier struct{ mock.Mock }

func (m *MockGoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GoogleIdentity), args.Error(1)
}

func newAuthTestService() (*MockUserRepository, *MockTokenIssuer, *MockGoogleVerifier, AuthService) {
	users := new(MockUserRepository)
	tokens := new(MockTokenIssuer)
	google := new(MockGoogleVerifier)
	return users, tokens, google, NewAuthService(users, tokens, google, zap.NewNop())
}

// --- Tests ---

func TestRegister_Success(t *testing.T) {
	users, tokens, _, svc := newAuthTestService()
	ctx := context.Background()

	users.On("FindByEmail", ctx, "ayu@example.com").Return(nil, gorm.ErrRecordNotFound)
	users.On("FindByUsername", ctx, "ayu").Return(nil, gorm.ErrRecordNotFound)
	users.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil)
	tokens.On("Generate", mock.MatchedBy(func(c auth.Claims) bool {
		return c.Email == "ayu@example.com" && c.Role == "USER"
	})).Return("jwt-token", nil)

	res, serr := svc.Register(ctx, &models.RegisterRequest{Username: "ayu", Email: " Ayu@Example.com ", Password: "Melati2024"})
	require.Nil(t, serr)
	assert.Equal(t, "jwt-token", res.Token)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.User.Password), []byte("Melati2024")))
	users.AssertExpectations(t)
}

func TestRegister_WeakPassword(t *testing.T) {
	users, _, _, svc := newAuthTestService()

	_, serr := svc.Register(context.Background(), &models.RegisterRequest{Username: "ayu", Email: "ayu@example.com", Password: "Password1"})
	require.NotNil(t, serr)
	assert.Equal(t, 400, serr.StatusCode)
	assert.Equal(t, map[string]string{"password": ErrPasswordCommon.Error()}, serr.Details)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users, _, _, svc := newAuthTestService()
	ctx := context.Background()
	users.On("FindByEmail", ctx, "ayu@example.com").Return(&models.User{ID: uuid.New()}, nil)

	_, serr := svc.Register(ctx, &models.RegisterRequest{Username: "ayu", Email: "ayu@example.com", Password: "Melati2024"})
	require.NotNil(t, serr)
	assert.Equal(t, 409, serr.StatusCode)
}

func TestLogin(t *testing.T) {
	users, tokens, _, svc := newAuthTestService()
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("Melati2024"), bcrypt.MinCost)
	user := &models.User{ID: uuid.New(), Username: "ayu", Email: "ayu@example.com", Password: string(hash), Role: models.RoleAdmin}

	users.On("FindByEmail", ctx, "ayu@example.com").Return(user, nil)
	users.On("FindByEmail", ctx, "ghost@example.com").Return(nil, gorm.ErrRecordNotFound)
	tokens.On("Generate", mock.Anything).Return("jwt-token", nil)

	res, serr := svc.Login(ctx, &models.LoginRequest{Email: "ayu@example.com", Password: "Melati2024"})
	require.Nil(t, serr)
	assert.Equal(t, "jwt-token", res.Token)

	_, serr = svc.Login(ctx, &models.LoginRequest{Email: "ayu@example.com", Password: "wrong"})
	require.NotNil(t, serr)
	assert.Equal(t, 401, serr.StatusCode)

	_, serr = svc.Login(ctx, &models.LoginRequest{Email: "ghost@example.com", Password: "Melati2024"})
	require.NotNil(t, serr)
	assert.Equal(t, "Invalid email or password", serr.Message)
}

func TestLogin_GoogleOnlyAccount(t *testing.T) {
	users, _, _, svc := newAuthTestService()
	ctx := context.Background()
	gid := "google-sub"
	users.On("FindByEmail", ctx, "ayu@example.com").Return(&models.User{ID: uuid.New(), GoogleID: &gid}, nil)

	_, serr := svc.Login(ctx, &models.LoginRequest{Email: "ayu@example.com", Password: ""})
	require.NotNil(t, serr)
	assert.Equal(t, 401, serr.StatusCode)
}

func TestGoogleLogin_LinksExistingEmail(t *testing.T) {
	users, tokens, google, svc := newAuthTestService()
	ctx := context.Background()
	existing := &models.User{ID: uuid.New(), Username: "ayu", Email: "ayu@example.com", Role: models.RoleUser}

	google.On("Verify", ctx, "id-token").Return(&GoogleIdentity{Subject: "sub-1", Email: "Ayu@example.com"}, nil)
	users.On("FindByGoogleID", ctx, "sub-1").Return(nil, gorm.ErrRecordNotFound)
	users.On("FindByEmail", ctx, "ayu@example.com").Return(existing, nil)
	users.On("Update", ctx, existing).Return(nil)
	tokens.On("Generate", mock.Anything).Return("jwt-token", nil)

	res, serr := svc.GoogleLogin(ctx, "id-token")
	require.Nil(t, serr)
	require.NotNil(t, res.User.GoogleID)
	assert.Equal(t, "sub-1", *res.User.GoogleID)
	users.AssertCalled(t, "Update", ctx, existing)
}

func TestGoogleLogin_CreatesUserWithFreeUsername(t *testing.T) {
	users, tokens, google, svc := newAuthTestService()
	ctx := context.Background()

	google.On("Verify", ctx, "id-token").Return(&GoogleIdentity{Subject: "sub-2", Email: "rina.putri@example.com"}, nil)
	users.On("FindByGoogleID", ctx, "sub-2").Return(nil, gorm.ErrRecordNotFound)
	users.On("FindByEmail", ctx, "rina.putri@example.com").Return(nil, gorm.ErrRecordNotFound)
	users.On("FindByUsername", ctx, "rinaputri").Return(&models.User{}, nil)
	users.On("FindByUsername", ctx, "rinaputri1").Return(nil, gorm.ErrRecordNotFound)
	users.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil)
	tokens.On("Generate", mock.Anything).Return("jwt-token", nil)

	res, serr := svc.GoogleLogin(ctx, "id-token")
	require.Nil(t, serr)
	assert.Equal(t, "rinaputri1", res.User.Username)
	assert.Empty(t, res.User.Password)
}

func TestGoogleLogin_InvalidToken(t *testing.T) {
	_, _, google, svc := newAuthTestService()
	ctx := context.Background()
	google.On("Verify", ctx, "bad").Return(nil, ErrInvalidGoogleToken)

	_, serr := svc.GoogleLogin(ctx, "bad")
	require.NotNil(t, serr)
	assert.Equal(t, 401, serr.StatusCode)
}

func TestVerify(t *testing.T) {
	users, _, _, svc := newAuthTestService()
	ctx := context.Background()
	id := uuid.New()
	users.On("FindByID", ctx, id).Return(&models.User{ID: id}, nil)

	user, serr := svc.Verify(ctx, id.String())
	require.Nil(t, serr)
	assert.Equal(t, id, user.ID)

	_, serr = svc.Verify(ctx, "garbage")
	require.NotNil(t, serr)
	assert.Equal(t, 401, serr.StatusCode)
}

func TestPasswordValidator(t *testing.T) {
	pv := NewPasswordValidator()
	assert.ErrorIs(t, pv.ValidatePassword("Ab1"), ErrPasswordTooShort)
	assert.ErrorIs(t, pv.ValidatePassword("melati2024"), ErrPasswordNoUpper)
	assert.ErrorIs(t, pv.ValidatePassword("MELATI2024"), ErrPasswordNoLower)
	assert.ErrorIs(t, pv.ValidatePassword("MelatiMawar"), ErrPasswordNoNumber)
	assert.ErrorIs(t, pv.ValidatePassword("Password123"), ErrPasswordCommon)
	assert.NoError(t, pv.ValidatePassword("Melati2024"))
}
