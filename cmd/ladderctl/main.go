/*
main.go - Offline tool for ladders and deviation distributions

PURPOSE:
  Checks ladder files and tries out distributions without a running server
  or database. Uses the same packages the server does.

COMMANDS:
  validate  Parse and validate a ladder file
  resolve   Level, rate and distance to the next level at given hours
  allocate  Build a deviation distribution from edits and show the result

EXAMPLES:
  ladderctl validate --file ladders.yaml
  ladderctl resolve --file ladders.yaml --ladder kitchen --hours 812.5
  ladderctl allocate --minutes 45 --set overtime_tier1=30 --set comp_time=10
  ladderctl allocate --minutes -30 --assign time_bank
*/
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/workforce-engine/deviation"
	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/ladder"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
	labelColor = color.New(color.FgCyan)
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "ladderctl",
		Short:         "Check wage ladders and deviation distributions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.AddCommand(
		newValidateCommand(out),
		newResolveCommand(out),
		newAllocateCommand(out),
	)
	return root
}

// =============================================================================
// LADDERS
// =============================================================================

func newValidateCommand(out io.Writer) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every ladder in a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ladders, err := factory.NewLadderFactory().LoadFile(file)
			if err != nil {
				return err
			}
			for _, l := range ladders {
				okColor.Fprint(out, "ok ")
				fmt.Fprintf(out, "%s (%d levels)\n", l.ID, len(l.Levels))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "ladder file (.json, .yaml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newResolveCommand(out io.Writer) *cobra.Command {
	var (
		file     string
		ladderID string
		hours    string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve accumulated hours on a ladder",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := decimal.NewFromString(hours)
			if err != nil {
				return fmt.Errorf("invalid --hours %q: %w", hours, err)
			}
			ladders, err := factory.NewLadderFactory().LoadFile(file)
			if err != nil {
				return err
			}
			l, err := pickLadder(ladders, ladderID)
			if err != nil {
				return err
			}
			p, err := l.Resolve(h)
			if err != nil {
				return err
			}
			printProgress(out, l.ID, h, p)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "ladder file (.json, .yaml)")
	cmd.Flags().StringVarP(&ladderID, "ladder", "l", "", "ladder ID (optional when the file has one ladder)")
	cmd.Flags().StringVar(&hours, "hours", "", "accumulated hours")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("hours")
	return cmd
}

func pickLadder(ladders []ladder.Ladder, id string) (ladder.Ladder, error) {
	if id == "" {
		if len(ladders) == 1 {
			return ladders[0], nil
		}
		ids := make([]string, len(ladders))
		for i, l := range ladders {
			ids[i] = l.ID
		}
		return ladder.Ladder{}, fmt.Errorf("file has %d ladders, pick one with --ladder (%s)", len(ladders), strings.Join(ids, ", "))
	}
	for _, l := range ladders {
		if l.ID == id {
			return l, nil
		}
	}
	return ladder.Ladder{}, fmt.Errorf("ladder %q not found", id)
}

func printProgress(out io.Writer, ladderID string, hours decimal.Decimal, p ladder.Progress) {
	labelColor.Fprintf(out, "%-10s", "ladder")
	fmt.Fprintln(out, ladderID)
	labelColor.Fprintf(out, "%-10s", "hours")
	fmt.Fprintln(out, hours.String())
	labelColor.Fprintf(out, "%-10s", "level")
	fmt.Fprintf(out, "%d at %s/h\n", p.Level, p.HourlyRate.StringFixed(2))
	labelColor.Fprintf(out, "%-10s", "next")
	if p.AtTerminal() {
		fmt.Fprintln(out, "top level")
		return
	}
	fmt.Fprintf(out, "%d at %s/h in %s hours\n", *p.NextLevel, p.NextHourlyRate.StringFixed(2), p.HoursToNextLevel.String())
}

// =============================================================================
// DEVIATION
// =============================================================================

func newAllocateCommand(out io.Writer) *cobra.Command {
	var (
		minutes     int
		sets        []string
		assign      string
		borrowOrder []string
	)
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Distribute a deviation across categories",
		Long: `Starts from the default distribution for --minutes, applies --assign,
then each --set in order, and prints the buckets and whether the
distribution can be committed.

Categories: ` + strings.Join(categoryKeys(), ", "),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []deviation.Option
			if len(borrowOrder) > 0 {
				order, err := parseCategories(borrowOrder)
				if err != nil {
					return err
				}
				opts = append(opts, deviation.WithBorrowOrder(order...))
			}
			s, err := deviation.NewSession(minutes, opts...)
			if err != nil {
				return err
			}
			if assign != "" {
				c, err := deviation.ParseCategory(assign)
				if err != nil {
					return err
				}
				if err := s.QuickAssignAll(c); err != nil {
					return err
				}
			}
			for _, kv := range sets {
				c, v, err := parseSet(kv)
				if err != nil {
					return err
				}
				if err := s.SetBucket(c, v); err != nil {
					return err
				}
			}
			printSession(out, s)
			return nil
		},
	}
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "signed deviation in minutes")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "category=minutes, applied in order")
	cmd.Flags().StringVar(&assign, "assign", "", "put the whole deviation in one category first")
	cmd.Flags().StringSliceVar(&borrowOrder, "borrow-order", nil, "categories drained when a bucket is raised")
	return cmd
}

func parseSet(kv string) (deviation.Category, int, error) {
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --set %q, want category=minutes", kv)
	}
	c, err := deviation.ParseCategory(strings.TrimSpace(key))
	if err != nil {
		return 0, 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --set %q: %w", kv, err)
	}
	return c, v, nil
}

func parseCategories(keys []string) ([]deviation.Category, error) {
	out := make([]deviation.Category, 0, len(keys))
	for _, k := range keys {
		c, err := deviation.ParseCategory(strings.TrimSpace(k))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func categoryKeys() []string {
	keys := make([]string, 0, len(deviation.Categories()))
	for _, c := range deviation.Categories() {
		keys = append(keys, c.String())
	}
	return keys
}

func printSession(out io.Writer, s *deviation.Session) {
	for _, c := range deviation.Categories() {
		labelColor.Fprintf(out, "%-16s", c.Label())
		fmt.Fprintf(out, "%4d\n", s.Buckets.Get(c))
	}
	fmt.Fprintln(out, s.Summary())
	if s.IsFullyDistributed() {
		okColor.Fprintln(out, "ready to commit")
		return
	}
	warnColor.Fprintf(out, "cannot commit: %d minutes unassigned\n", s.Remaining())
}
