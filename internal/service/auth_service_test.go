package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
)

type authUserRepoStub struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	tokens        map[string]*models.RefreshToken
	students      []*models.User
	profiles      []*models.StudentProfile
	auditLogs     []*models.AuditLog
	revokedAll    int
	revokedTokens []string
}

func (s *authUserRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authUserRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.usersByID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authUserRepoStub) CreateStudent(ctx context.Context, user *models.User, profile *models.StudentProfile) error {
	user.ID = "user-new"
	profile.ID = "student-new"
	profile.UserID = user.ID
	s.students = append(s.students, user)
	s.profiles = append(s.profiles, profile)
	return nil
}

func (s *authUserRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (s *authUserRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if user, ok := s.usersByID[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (s *authUserRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revokedAll++
	return nil
}

func (s *authUserRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if s.tokens == nil {
		s.tokens = map[string]*models.RefreshToken{}
	}
	s.tokens[token.Token] = token
	return nil
}

func (s *authUserRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := s.tokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authUserRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	s.revokedTokens = append(s.revokedTokens, id)
	return nil
}

func (s *authUserRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.auditLogs = append(s.auditLogs, log)
	return nil
}

type authProfileRepoStub struct {
	studentsByUser map[string]*models.StudentProfile
	takenNumbers   map[string]bool
}

func (s authProfileRepoStub) FindStudentByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	if profile, ok := s.studentsByUser[userID]; ok {
		return profile, nil
	}
	return nil, sql.ErrNoRows
}

func (s authProfileRepoStub) FindStaffByUserID(ctx context.Context, userID string) (*models.StaffProfile, error) {
	return nil, sql.ErrNoRows
}

func (s authProfileRepoStub) ExistsByStudentNumber(ctx context.Context, studentNumber string) (bool, error) {
	return s.takenNumbers[studentNumber], nil
}

func authConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "wilddocs-test",
	}
}

func activeStudentUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "juana@cit.edu",
		PasswordHash: string(hash),
		FullName:     "Juana Dela Cruz",
		Role:         models.RoleStudent,
		Active:       true,
	}
}

func TestAuthServiceLoginIssuesTokensWithProfileClaim(t *testing.T) {
	user := activeStudentUser(t, "sekret1")
	repo := &authUserRepoStub{usersByEmail: map[string]*models.User{user.Email: user}}
	profiles := authProfileRepoStub{studentsByUser: map[string]*models.StudentProfile{
		"user-1": {ID: "student-1", UserID: "user-1", StudentNumber: "21-1234-567"},
	}}
	svc := NewAuthService(repo, profiles, nil, zap.NewNop(), authConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "sekret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "student-1", resp.User.ProfileID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "student-1", claims.ProfileID)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	user := activeStudentUser(t, "sekret1")
	repo := &authUserRepoStub{usersByEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(repo, authProfileRepoStub{}, nil, zap.NewNop(), authConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong99"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeStudentUser(t, "sekret1")
	user.Active = false
	repo := &authUserRepoStub{usersByEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(repo, authProfileRepoStub{}, nil, zap.NewNop(), authConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "sekret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	repo := &authUserRepoStub{}
	svc := NewAuthService(repo, authProfileRepoStub{}, nil, zap.NewNop(), authConfig())

	info, err := svc.RegisterStudent(context.Background(), models.RegisterStudentRequest{
		Email:         "Pedro@CIT.edu",
		Password:      "sekret1",
		FullName:      "Pedro Penduko",
		StudentNumber: "22-5678-901",
		Program:       "BS Computer Science",
		YearLevel:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, info.Role)
	assert.Equal(t, "pedro@cit.edu", info.Email)
	assert.Equal(t, "student-new", info.ProfileID)
	require.Len(t, repo.profiles, 1)
	assert.Equal(t, "22-5678-901", repo.profiles[0].StudentNumber)
}

func TestAuthServiceRegisterStudentNumberFormat(t *testing.T) {
	svc := NewAuthService(&authUserRepoStub{}, authProfileRepoStub{}, nil, zap.NewNop(), authConfig())

	for _, number := range []string{"221-5678-901", "22-567-901", "22-5678-9012", "abcdefgh"} {
		_, err := svc.RegisterStudent(context.Background(), models.RegisterStudentRequest{
			Email:         "pedro@cit.edu",
			Password:      "sekret1",
			FullName:      "Pedro Penduko",
			StudentNumber: number,
			Program:       "BS Computer Science",
			YearLevel:     3,
		})
		require.Error(t, err, number)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestAuthServiceRegisterConflicts(t *testing.T) {
	user := activeStudentUser(t, "sekret1")
	repo := &authUserRepoStub{usersByEmail: map[string]*models.User{user.Email: user}}
	profiles := authProfileRepoStub{takenNumbers: map[string]bool{"22-5678-901": true}}
	svc := NewAuthService(repo, profiles, nil, zap.NewNop(), authConfig())

	_, err := svc.RegisterStudent(context.Background(), models.RegisterStudentRequest{
		Email:         user.Email,
		Password:      "sekret1",
		FullName:      "Imposter",
		StudentNumber: "23-0000-111",
		Program:       "BS IT",
		YearLevel:     1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.RegisterStudent(context.Background(), models.RegisterStudentRequest{
		Email:         "new@cit.edu",
		Password:      "sekret1",
		FullName:      "Taken Number",
		StudentNumber: "22-5678-901",
		Program:       "BS IT",
		YearLevel:     1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	user := activeStudentUser(t, "sekret1")
	repo := &authUserRepoStub{
		usersByID: map[string]*models.User{"user-1": user},
		tokens: map[string]*models.RefreshToken{
			"old-token": {ID: "rt-1", UserID: "user-1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := NewAuthService(repo, authProfileRepoStub{}, nil, zap.NewNop(), authConfig())

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revokedTokens, "rt-1")
}

func TestAuthServiceRefreshRejectsExpired(t *testing.T) {
	repo := &authUserRepoStub{
		tokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt-1", UserID: "user-1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Minute)},
		},
	}
	svc := NewAuthService(repo, authProfileRepoStub{}, nil, zap.NewNop(), authConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	user := activeStudentUser(t, "oldpass")
	repo := &authUserRepoStub{usersByID: map[string]*models.User{"user-1": user}}
	svc := NewAuthService(repo, authProfileRepoStub{}, nil, zap.NewNop(), authConfig())

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "oldpass",
		NewPassword: "newpass",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.revokedAll)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpass")))
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	user := activeStudentUser(t, "sekret1")
	repo := &authUserRepoStub{usersByEmail: map[string]*models.User{user.Email: user}}
	svc := NewAuthService(repo, authProfileRepoStub{}, nil, zap.NewNop(), authConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "sekret1"})
	require.NoError(t, err)

	other := NewAuthService(repo, authProfileRepoStub{}, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
