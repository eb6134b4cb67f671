package auth

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/errors"
)

type Config struct {
	DB     *pgxpool.Pool
	Tokens *TokenProvider
}

type Service struct {
	db     *pgxpool.Pool
	tokens *TokenProvider
}

func NewService(c Config) *Service {
	return &Service{
		db:     c.DB,
		tokens: c.Tokens,
	}
}

type SignUpRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// SignUp registers a new account. The password is stored as an Argon2id hash.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*domain.User, error) {
	if len(req.Name) < 3 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("name must be at least 3 characters"))
	}
	if req.Email == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("email is required"))
	}
	if len(req.Password) < 6 {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("password must be at least 6 characters"))
	}

	role := req.Role
	switch role {
	case "":
		role = domain.RoleUser
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown role %q", req.Role))
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, errors.Internal(err)
	}

	const stmt = `INSERT INTO users (name, email, password, role) VALUES ($1, $2, $3, $4) RETURNING id;`

	u := domain.User{Name: req.Name, Email: req.Email, Role: role}
	err = s.db.QueryRow(ctx, stmt, req.Name, req.Email, hash, role).Scan(&u.ID)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("email already registered"),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &u, nil
}

type SignInRequest struct {
	Email    string
	Password string
}

type SignInResponse struct {
	Token string
	User  domain.User
}

// SignIn verifies credentials and issues a token.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResponse, error) {
	const stmt = `SELECT id, name, email, password, role FROM users WHERE email = $1;`

	var (
		u    domain.User
		hash string
	)
	err := s.db.QueryRow(ctx, stmt, req.Email).Scan(&u.ID, &u.Name, &u.Email, &hash, &u.Role)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("Invalid credentials"))
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	ok, err := VerifyPassword(hash, req.Password)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("Invalid credentials"))
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &SignInResponse{Token: token, User: u}, nil
}

// Profile returns the account row for an authenticated user.
func (s *Service) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	const stmt = `SELECT id, name, email, role FROM users WHERE id = $1;`

	var u domain.User
	err := s.db.QueryRow(ctx, stmt, userID).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("user not found"))
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &u, nil
}

// Verify exposes token verification for transports that only hold the service.
func (s *Service) Verify(token string) (domain.Identity, error) {
	return s.tokens.Verify(token)
}
