package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/internal/repository"
	"github.com/noah-isme/enrollment-finance-api/pkg/config"
	"github.com/noah-isme/enrollment-finance-api/pkg/database"
	"github.com/noah-isme/enrollment-finance-api/pkg/logger"
)

type adminRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type options struct {
	Email    string
	Password string
	FullName string
	Role     models.UserRole
}

func main() {
	var opts options
	var role string
	flag.StringVar(&opts.Email, "email", "admin@example.com", "Administrator email")
	flag.StringVar(&opts.Password, "password", os.Getenv("ADMIN_PASSWORD"), "Administrator password (defaults to $ADMIN_PASSWORD)")
	flag.StringVar(&opts.FullName, "name", "Administrador", "Display name")
	flag.StringVar(&role, "role", string(models.RoleSuperAdmin), "SUPERADMIN or ADMIN")
	flag.Parse()
	opts.Role = models.UserRole(strings.ToUpper(role))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	user, created, err := createAdmin(context.Background(), repository.NewUserRepository(db), opts)
	if err != nil {
		logr.Fatal("failed to create administrator", zap.Error(err))
	}
	if !created {
		fmt.Printf("administrator %s already exists (role %s, active %t)\n", user.Email, user.Role, user.Active)
		return
	}
	fmt.Printf("administrator %s created with role %s\n", user.Email, user.Role)
}

// createAdmin inserts the administrator unless the email is already taken, in which case
// the existing account is returned untouched.
func createAdmin(ctx context.Context, repo adminRepository, opts options) (*models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if email == "" {
		return nil, false, errors.New("email is required")
	}
	if !opts.Role.IsAdmin() {
		return nil, false, fmt.Errorf("unsupported role %q", opts.Role)
	}

	existing, err := repo.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	if len(opts.Password) < 8 {
		return nil, false, errors.New("password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(opts.FullName),
		Role:         opts.Role,
		Active:       true,
	}
	if err := repo.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}
