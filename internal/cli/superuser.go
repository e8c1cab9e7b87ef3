package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/iliyamo/recipe-api/internal/repository"
	"github.com/iliyamo/recipe-api/internal/service"
)

func newCreateSuperuserCmd(a *app) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create a user with staff and superuser flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = a.cfg.SuperuserPassword
			}
			if password == "" {
				return errors.New("a password is required (--password or SUPERUSER_PASSWORD)")
			}
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			users := service.NewUserService(repository.NewUserRepo(db), repository.NewTokenRepo(db), authConfig(a))
			u, err := users.CreateSuperuser(ctx, service.UserInput{Email: email, Password: &password, Name: &name})
			if err != nil {
				return err
			}
			a.logger.Info("superuser created", "id", u.ID, "email", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address of the new superuser")
	cmd.Flags().StringVar(&password, "password", "", "Password (falls back to SUPERUSER_PASSWORD)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func authConfig(a *app) service.AuthConfig {
	return service.AuthConfig{
		JWTSecret:      a.cfg.JWT.Secret,
		AccessTTLMin:   a.cfg.JWT.AccessTTLMin,
		RefreshTTLDays: a.cfg.JWT.RefreshTTLDays,
		BcryptCost:     a.cfg.BcryptCost,
	}
}
