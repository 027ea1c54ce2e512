package main

import (
	"context"
	"os"
	"time"

	"bitbucket.org/etuitionbd/backend/api"
	"bitbucket.org/etuitionbd/backend/db/migrations"
	"bitbucket.org/etuitionbd/backend/logging"
	"bitbucket.org/etuitionbd/backend/server"
	"github.com/joho/godotenv"
	"github.com/lithammer/shortuuid/v3"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func main() {
	_ = godotenv.Load("dev.env")

	app := cli.NewApp()
	app.Name = "eTuitionBd backend"
	app.Usage = "Tuition marketplace API and payment settlement"
	app.Version = "1.00"
	app.Compiled = time.Now()
	app.Commands = []cli.Command{
		{
			Name:  "backend-up",
			Usage: "This command starts the backend service",
			Action: func(c *cli.Context) error {
				StartServer(api.GetRoutes())
				return nil
			},
		},
		{
			Name:  "migrate",
			Usage: "Applies the pending database migrations",
			Action: func(c *cli.Context) error {
				ctx := server.GetAppContext()
				ctx.CreateSQLConnection()
				defer ctx.Context.SQLConn.Close()

				return migrations.Up(ctx.Context.SQLConn.DB, ctx.Context.Config.SQL.Driver)
			},
		},
		{
			Name:  "reconcile-payments",
			Usage: "Fails orphaned pending payments and confirms paid ones",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "older-than",
					Usage: "minutes a pending payment must be old to be checked, defaults to ORPHAN_PAYMENT_TTL_MINUTES",
				},
			},
			Action: func(c *cli.Context) error {
				return ReconcilePayments(c.Int("older-than"))
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func StartServer(routes []*server.Route) {
	ctx := server.GetAppContext()
	ctx.CreateSQLConnection()
	ctx.CreateSMTPConnection()
	ctx.CreateNewAwsSession()
	ctx.CreateStripeIntegration()
	ctx.CreateSettlementService()

	server.UpServer(routes, ctx)
}

func ReconcilePayments(olderThanMinutes int) error {
	wrapper := server.GetAppContext()
	wrapper.CreateSQLConnection()
	defer wrapper.Context.SQLConn.Close()
	wrapper.CreateSMTPConnection()
	wrapper.CreateNewAwsSession()
	wrapper.CreateStripeIntegration()
	wrapper.CreateSettlementService()

	if olderThanMinutes <= 0 {
		olderThanMinutes = wrapper.Context.Config.Reconcile.OrphanPaymentTTLMinutes
	}

	logger := log.WithFields(log.Fields{
		"run_id":     shortuuid.New(),
		"older_than": olderThanMinutes,
	})
	ctx := logging.WithLogger(context.Background(), logger)

	report, err := wrapper.Context.Settlement.ReconcilePending(ctx, time.Duration(olderThanMinutes)*time.Minute)
	if err != nil {
		return err
	}
	if wrapper.Context.Receipts != nil {
		wrapper.Context.Receipts.Wait()
	}

	logger.WithFields(log.Fields{
		"checked":   report.Checked,
		"completed": report.Completed,
		"failed":    report.Failed,
		"errors":    report.Errors,
	}).Info("reconciliation finished")
	return nil
}
