package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/peoplebook/peoplebook/internal/app"
	"github.com/peoplebook/peoplebook/internal/auth"
	"github.com/peoplebook/peoplebook/internal/config"
	"github.com/peoplebook/peoplebook/internal/person"
	"github.com/peoplebook/peoplebook/internal/person/service"
	"github.com/spf13/cobra"
)

// opener returns the runtime a command works against.
type opener func(ctx context.Context) (*app.Runtime, *config.Config, error)

func openRuntime(ctx context.Context) (*app.Runtime, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	rt, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return rt, cfg, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "peoplectl",
		Short:         "Run person store operations from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(demoCmd(open))
	root.AddCommand(findCmd(open))
	root.AddCommand(removeManyCmd(open))
	root.AddCommand(tokenCmd())
	return root
}

// withService opens the runtime, runs fn and closes the runtime again.
func withService(cmd *cobra.Command, open opener, fn func(ctx context.Context, svc *service.Service, cfg *config.Config) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, cfg, err := open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	return fn(ctx, rt.Service, cfg)
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

var demoPeople = []*person.Person{
	{Name: "Mary", Age: person.IntPtr(24), FavoriteFoods: []string{"pizza"}},
	{Name: "Mary", Age: person.IntPtr(31), FavoriteFoods: []string{"salad"}},
	{Name: "Pablo", Age: person.IntPtr(26), FavoriteFoods: []string{"burrito", "hot-dog"}},
	{Name: "Ashley", Age: person.IntPtr(32), FavoriteFoods: []string{"steak", "burrito"}},
}

func demoCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run every person operation once, in order, and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				return runDemo(ctx, svc, cmd.OutOrStdout())
			})
		},
	}
}

func runDemo(ctx context.Context, svc *service.Service, w io.Writer) error {
	step := func(n int, name string, v interface{}) error {
		fmt.Fprintf(w, "== %d. %s\n", n, name)
		return printJSON(w, v)
	}

	sample, err := svc.CreateAndSavePerson(ctx)
	if err != nil {
		return err
	}
	if err := step(1, "createAndSavePerson", sample); err != nil {
		return err
	}

	seed := make([]*person.Person, 0, len(demoPeople))
	for _, p := range demoPeople {
		seed = append(seed, p.Clone())
	}
	many, err := svc.CreateManyPeople(ctx, seed)
	if err != nil {
		return err
	}
	if err := step(2, "createManyPeople", many); err != nil {
		return err
	}

	byName, err := svc.FindPeopleByName(ctx, sample.Name)
	if err != nil {
		return err
	}
	if err := step(3, "findPeopleByName", byName); err != nil {
		return err
	}

	byFood, err := svc.FindOneByFood(ctx, sample.FavoriteFoods[0])
	if err != nil {
		return err
	}
	if err := step(4, "findOneByFood", byFood); err != nil {
		return err
	}

	byID, err := svc.FindPersonByID(ctx, sample.ID.Hex())
	if err != nil {
		return err
	}
	if err := step(5, "findPersonById", byID); err != nil {
		return err
	}

	edited, err := svc.FindEditThenSave(ctx, sample.ID.Hex())
	if err != nil {
		return err
	}
	if err := step(6, "findEditThenSave", edited); err != nil {
		return err
	}

	updated, err := svc.FindAndUpdate(ctx, sample.Name)
	if err != nil {
		return err
	}
	if err := step(7, "findAndUpdate", updated); err != nil {
		return err
	}

	removed, err := svc.RemoveByID(ctx, sample.ID.Hex())
	if err != nil {
		return err
	}
	if err := step(8, "removeById", removed); err != nil {
		return err
	}

	res, err := svc.RemoveManyPeople(ctx, "")
	if err != nil {
		return err
	}
	if err := step(9, "removeManyPeople", res); err != nil {
		return err
	}

	chain, err := svc.QueryChain(ctx)
	if err != nil {
		return err
	}
	return step(10, "queryChain", chain)
}

func findCmd(open opener) *cobra.Command {
	var (
		name, food, sortSpec, selectSpec string
		limit, skip                      int64
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Run a chained query and print the people as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				var f person.Filter
				if cmd.Flags().Changed("name") {
					f.Name = &name
				}
				if cmd.Flags().Changed("food") {
					f.FavoriteFood = &food
				}
				q := svc.Find(f).Limit(limit).Skip(skip)
				if sortSpec != "" {
					q.Sort(sortSpec)
				}
				if selectSpec != "" {
					q.Select(selectSpec)
				}
				people, err := q.Exec(ctx)
				if err != nil {
					return err
				}
				renderTable(cmd.OutOrStdout(), people)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Exact name to match")
	cmd.Flags().StringVarP(&food, "food", "f", "", "Favorite food the person must have")
	cmd.Flags().StringVarP(&sortSpec, "sort", "s", "", `Sort fields, "-" for descending (e.g. "-age name")`)
	cmd.Flags().StringVar(&selectSpec, "select", "", `Projection (e.g. "-age")`)
	cmd.Flags().Int64VarP(&limit, "limit", "l", 0, "Maximum number of people, 0 for all")
	cmd.Flags().Int64Var(&skip, "skip", 0, "Number of people to skip")
	return cmd
}

func renderTable(w io.Writer, people []*person.Person) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetAutoFormatHeaders(false)
	tbl.SetBorder(false)
	tbl.SetHeader([]string{"ID", "Name", "Age", "Favorite foods"})
	for _, p := range people {
		age := ""
		if p.Age != nil {
			age = strconv.Itoa(*p.Age)
		}
		id := ""
		if !p.ID.IsZero() {
			id = p.ID.Hex()
		}
		tbl.Append([]string{id, p.Name, age, strings.Join(p.FavoriteFoods, ", ")})
	}
	tbl.Render()
}

func removeManyCmd(open opener) *cobra.Command {
	name := service.DefaultRemoveName
	cmd := &cobra.Command{
		Use:   "remove-many",
		Short: "Remove everyone with the given name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				res, err := svc.RemoveManyPeople(ctx, name)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", name, "Name of the people to remove")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		sub string
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the write API (needs JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			tok, err := auth.IssueToken(cfg.Auth.JWTSecret, sub, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&sub, "sub", os.Getenv("USER"), "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_TOKEN_TTL)")
	return cmd
}
