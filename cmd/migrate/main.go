// Command migrate applies or reverts the embedded schema migrations and can
// bootstrap the first administrator account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/credential"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-backoffice/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-backoffice/pkg/database"
	"github.com/ovaphlow/pitchfork/service-backoffice/pkg/utilities"
)

func main() {
	_ = godotenv.Load()

	down := flag.Bool("down", false, "revert the most recent migration instead of applying")
	adminUser := flag.String("admin-user", os.Getenv("ADMIN_USERNAME"), "create this administrator when missing")
	adminPass := flag.String("admin-password", os.Getenv("ADMIN_PASSWORD"), "password for -admin-user")
	flag.Parse()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *down {
		if err := database.Rollback(ctx, db.DB); err != nil {
			sugar.Fatalf("rollback: %v", err)
		}
		sugar.Info("rolled back one migration")
		return
	}
	if err := database.Migrate(ctx, db.DB); err != nil {
		sugar.Fatalf("migrate: %v", err)
	}
	sugar.Info("migrations applied")

	if *adminUser == "" {
		return
	}
	login := user.ConfigFromEnv()
	if err := bootstrapAdmin(ctx, userrepo.NewUserRepo(db), credential.BcryptHasher{Cost: login.BcryptCost},
		login.AdminRoleID, *adminUser, *adminPass); err != nil {
		sugar.Fatalf("bootstrap admin: %v", err)
	}
	sugar.Infow("administrator ready", "username", *adminUser)
}

type adminStore interface {
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) (int64, error)
}

// bootstrapAdmin creates the administrator unless the username exists.
func bootstrapAdmin(ctx context.Context, repo adminStore, hasher credential.Hasher, roleID int64, username, password string) error {
	if _, err := repo.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !userrepo.IsNotFound(err) {
		return err
	}
	if ok, msg := credential.ValidateStrength(password); !ok {
		return errors.New(msg)
	}
	h, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = repo.Create(ctx, &entity.User{
		Username:     username,
		PasswordHash: h,
		FullName:     "Administrator",
		RoleID:       roleID,
		Active:       true,
	})
	return err
}
