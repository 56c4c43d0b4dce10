package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/metadata"

	"github.com/GGmuzem/formula-engine/internal/auth"
	"github.com/GGmuzem/formula-engine/internal/calculate"
	"github.com/GGmuzem/formula-engine/internal/catalog"
	"github.com/GGmuzem/formula-engine/internal/config"
	"github.com/GGmuzem/formula-engine/internal/engine"
	"github.com/GGmuzem/formula-engine/internal/plot"
	"github.com/GGmuzem/formula-engine/pkg/models"
)

func (o *options) remoteContext(ctx context.Context) context.Context {
	if o.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+o.token)
	}
	return ctx
}

func resolveCmd(opts *options) *cobra.Command {
	var formulaSlug, target string
	var sets []string
	var precision int

	c := &cobra.Command{
		Use:   "resolve",
		Short: "Compute one variable of a catalog formula",
		Example: `  formulactl resolve -f gravity-force -t F -s m=2 -s g=9.8
  formulactl resolve -f uniform-motion -t s -s "v=1, 2, 3" -s t=10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}

			if opts.remote != "" {
				client, conn, err := opts.dial()
				if err != nil {
					return err
				}
				defer conn.Close()
				res, err := client.Resolve(opts.remoteContext(cmd.Context()), &models.ResolveRequest{
					Formula: formulaSlug, Target: target, Values: values, Precision: precision,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", res.Target, res.Result)
				return nil
			}

			e, err := opts.localEngine()
			if err != nil {
				return err
			}
			res, err := e.Resolve(cmd.Context(), nil, engine.FormulaRequest{
				Formula: formulaSlug, Target: target, Values: values, Precision: precision,
			})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", res.Target, res.Format())
			return nil
		},
	}

	c.Flags().StringVarP(&formulaSlug, "formula", "f", "", "Formula slug (required)")
	c.Flags().StringVarP(&target, "target", "t", "", "Variable to compute (required)")
	c.Flags().StringArrayVarP(&sets, "set", "s", nil, "Known value name=value; a comma-separated value is a batch")
	c.Flags().IntVarP(&precision, "precision", "p", 0, "Digits after the decimal point (0 keeps full precision)")
	_ = c.MarkFlagRequired("formula")
	_ = c.MarkFlagRequired("target")
	return c
}

func solveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "solve EQUATION...",
		Short:   "Solve a system of linear equations",
		Example: `  formulactl solve "x + y = 10" "x - y = 2"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.remote != "" {
				client, conn, err := opts.dial()
				if err != nil {
					return err
				}
				defer conn.Close()
				res, err := client.Solve(opts.remoteContext(cmd.Context()), &models.SolveRequest{Equations: args})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Result)
				return nil
			}

			e, err := opts.localEngine()
			if err != nil {
				return err
			}
			sol, err := e.Solve(cmd.Context(), engine.EquationRequest{Equations: args})
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sol.String())
			return nil
		},
	}
}

func plotCmd(opts *options) *cobra.Command {
	var functions []string
	var xmin, xmax, ymin, ymax, out string

	c := &cobra.Command{
		Use:     "plot",
		Short:   "Render up to four functions of x to a PNG file",
		Example: `  formulactl plot --fn "x^2" --fn "sin(x)" --xmin -3 --xmax 3 -o plot.png`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := models.PlotRequest{Functions: functions, XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax}

			var data []byte
			if opts.remote != "" {
				client, conn, err := opts.dial()
				if err != nil {
					return err
				}
				defer conn.Close()
				res, err := client.Plot(opts.remoteContext(cmd.Context()), &req)
				if err != nil {
					return err
				}
				data = res.PNG
			} else {
				e, err := opts.localEngine()
				if err != nil {
					return err
				}
				data, _, err = e.Plot(cmd.Context(), nil, engine.PlotRequest{
					Functions: req.Functions, XMin: req.XMin, XMax: req.XMax, YMin: req.YMin, YMax: req.YMax,
				})
				if err != nil {
					return describe(err)
				}
			}

			if err := plot.WriteFile(out, data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	c.Flags().StringArrayVar(&functions, "fn", nil, "Function of x (repeatable, at most 4)")
	c.Flags().StringVar(&xmin, "xmin", "", "Lower x bound (required)")
	c.Flags().StringVar(&xmax, "xmax", "", "Upper x bound (required)")
	c.Flags().StringVar(&ymin, "ymin", "", "Lower y bound (optional, with --ymax)")
	c.Flags().StringVar(&ymax, "ymax", "", "Upper y bound (optional, with --ymin)")
	c.Flags().StringVarP(&out, "output", "o", "plot.png", "Output PNG file")
	return c
}

func evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval EXPRESSION",
		Short: "Evaluate a constant expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := calculate.Evaluate(args[0])
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func catalogCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog tools",
	}

	c.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check that every formula form parses and covers its variables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap *catalog.Snapshot
			var err error
			if len(args) == 0 {
				snap, err = catalog.Default()
			} else {
				snap, err = catalog.LoadFile(args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d sciences, %d formulas\n", len(snap.Sciences()), len(snap.FormulaSlugs()))
			return nil
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "list [FILE]",
		Short: "List formulas and the variables each can be solved for",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &options{}
			if len(args) == 1 {
				opts.catalogPath = args[0]
			}
			snap, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			for _, slug := range snap.FormulaSlugs() {
				f, _ := snap.Formula(slug)
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-24s %v\n", f.Slug, f.Display, f.Definition.Targets())
			}
			return nil
		},
	})
	return c
}

func tokenCmd() *cobra.Command {
	var userID int
	var login, secret string
	var ttl time.Duration

	c := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if secret == "" {
				secret = cfg.JWTSecret
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}
			if userID <= 0 {
				return fmt.Errorf("--user-id must be positive")
			}
			token, err := auth.NewManager(secret, ttl).GenerateToken(models.User{ID: userID, Login: login})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	c.Flags().IntVar(&userID, "user-id", 0, "User id (required)")
	c.Flags().StringVar(&login, "login", "", "User login")
	c.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET)")
	c.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to TOKEN_TTL_MINUTES)")
	_ = c.MarkFlagRequired("user-id")
	return c
}

// describe дополняет ошибку вычисления сообщением её категории
func describe(err error) error {
	if engine.IsCalcError(err) {
		return fmt.Errorf("%s: %w", calculate.CategoryOf(err).Message, err)
	}
	return err
}
