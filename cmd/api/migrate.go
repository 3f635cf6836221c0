package main

import (
	"github.com/urfave/cli/v2"

	"github.com/omegashop/storefront/internal/database"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply the embedded database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "down", Usage: "roll every migration back"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireDSN(); err != nil {
				return err
			}
			db, err := database.OpenDB(cfg.DBDSN, 1)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(db, c.Bool("down"))
		},
	}
}
