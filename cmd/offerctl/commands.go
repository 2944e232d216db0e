package main

import (
	"fmt"

	"github.com/spf13/cobra"

	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	"github.com/coursedesk/offerd/internal/repository/schema"
	"github.com/coursedesk/offerd/internal/version"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if err := schema.Migrate(e.db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(schema.Models()))
			return nil
		},
	}
}

func newSeedCmd(flags *globalFlags) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample courses and coupons",
		Long: `Inserts a small catalog of sample courses and coupons.
Rows that already exist (same course name or coupon code) are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if migrate {
				if err := schema.Migrate(e.db); err != nil {
					return err
				}
			}
			res, err := seed(cmd.Context(), e.app())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "courses: %d created, %d skipped\ncoupons: %d created, %d skipped\n",
				res.coursesCreated, res.coursesSkipped, res.couponsCreated, res.couponsSkipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "migrate the schema first")
	return cmd
}

func newSweepCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Cancel unpaid orders past the payment timeout and expire stale coupons and discounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			rep, err := e.app().Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "orders cancelled: %d\ncoupons expired: %d\ndiscounts expired: %d\n",
				rep.OrdersCancelled, rep.CouponsExpired, rep.DiscountsExpired)
			return err
		},
	}
}

func newGuidanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guidance",
		Short: "Print the discount guidance given to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), domdiscount.DefaultCatalog().PromptGuidance())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "offerctl", version.String())
		},
	}
}
