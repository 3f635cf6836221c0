package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/omegashop/storefront/internal/services"
)

func createAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-admin",
		Usage: "create an ADMIN account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"SHOP_ADMIN_PASSWORD"}},
			&cli.StringFlag{Name: "full-name"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer closeStore()

			users := services.NewUserService(st, time.Now)
			admin, err := users.Bootstrap(c.Context, services.RegisterInput{
				Username: c.String("username"),
				Email:    c.String("email"),
				Password: c.String("password"),
				FullName: c.String("full-name"),
			})
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"userId": admin.ID, "username": admin.Username}).Info("admin created")
			return nil
		},
	}
}
