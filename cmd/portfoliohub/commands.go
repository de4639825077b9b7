package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/portfoliohub/internal/app"
	"github.com/bobmcallan/portfoliohub/internal/common"
	"github.com/bobmcallan/portfoliohub/internal/models"
)

var configPath = flag.String("config", "", "path to portfoliohub.toml (defaults to PORTFOLIOHUB_CONFIG)")

// Overridden in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	openApp          = func(ctx context.Context) (*app.App, error) {
		return app.NewApp(ctx, *configPath)
	}
)

var commands = []subcommands.Command{
	&addCmd{},
	&removeCmd{},
	&positionsCmd{},
	&refreshCmd{},
	&summaryCmd{},
	&newsCmd{},
	&calendarCmd{},
}

// withApp opens the app, runs fn and closes the app.
func withApp(ctx context.Context, fn func(*app.App) error) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(a); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func money(d decimal.Decimal) string {
	return common.FormatMoney(d, common.DefaultCurrency)
}

func printResults(w io.Writer, results []models.RefreshResult) {
	for _, r := range results {
		line := fmt.Sprintf("  %-9s %-8s %s", r.Feed, r.Symbol, r.Status)
		if r.Error != "" {
			line += ": " + r.Error
		}
		fmt.Fprintln(w, line)
	}
}

// --- add ---

type addCmd struct {
	name     string
	acquired string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a buy of a symbol" }
func (*addCmd) Usage() string {
	return `add [-name <display name>] [-date YYYY-MM-DD] <symbol> <quantity> <price>

  Adds a new position or increases an existing one, blending the price into
  the weighted-average cost. The symbol's quote, dividends and news are
  refreshed afterwards.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "display name (defaults to the quote provider's instrument name)")
	f.StringVar(&c.acquired, "date", "", "acquisition date (defaults to today)")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprintln(stderr, "add requires <symbol> <quantity> <price>")
		return subcommands.ExitUsageError
	}
	qty, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "invalid quantity %q\n", f.Arg(1))
		return subcommands.ExitUsageError
	}
	price, err := decimal.NewFromString(f.Arg(2))
	if err != nil {
		fmt.Fprintf(stderr, "invalid price %q\n", f.Arg(2))
		return subcommands.ExitUsageError
	}
	req := app.AddPositionRequest{Symbol: f.Arg(0), Quantity: qty, PricePaid: price, DisplayName: c.name}
	if c.acquired != "" {
		d, err := time.Parse(models.DateLayout, c.acquired)
		if err != nil {
			fmt.Fprintf(stderr, "invalid date %q, want YYYY-MM-DD\n", c.acquired)
			return subcommands.ExitUsageError
		}
		req.AcquiredDate = d
	}

	return withApp(ctx, func(a *app.App) error {
		res, err := a.AddPosition(ctx, req)
		if err != nil {
			return err
		}
		p := res.Position
		fmt.Fprintf(stdout, "%s: %s shares @ %s average cost\n", p.Symbol, p.Quantity, money(p.AverageCost))
		printResults(stdout, res.Refresh)
		return nil
	})
}

// --- remove ---

type removeCmd struct{}

func (*removeCmd) Name() string           { return "remove" }
func (*removeCmd) Synopsis() string       { return "fully exit a position" }
func (*removeCmd) Usage() string          { return "remove <symbol>\n" }
func (*removeCmd) SetFlags(*flag.FlagSet) {}

func (c *removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(stderr, "remove requires <symbol>")
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(a *app.App) error {
		err := a.RemovePosition(ctx, f.Arg(0))
		if common.IsNotFound(err) {
			fmt.Fprintf(stdout, "warning: %v\n", err)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "removed %s\n", models.NormalizeSymbol(f.Arg(0)))
		return nil
	})
}

// --- positions ---

type positionsCmd struct{}

func (*positionsCmd) Name() string           { return "positions" }
func (*positionsCmd) Synopsis() string       { return "list held positions by market value" }
func (*positionsCmd) Usage() string          { return "positions\n" }
func (*positionsCmd) SetFlags(*flag.FlagSet) {}

func (c *positionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app.App) error {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tNAME\tQTY\tAVG COST\tPRICE\tVALUE")
		for _, p := range a.Ledger.CurrentPositions() {
			price := "-"
			if p.CurrentPrice != nil {
				price = money(*p.CurrentPrice)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				p.Symbol, p.DisplayName, p.Quantity, money(p.AverageCost), price, money(p.MarketValue()))
		}
		return tw.Flush()
	})
}

// --- refresh ---

type refreshCmd struct {
	feed string
}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "refresh feeds for every held symbol" }
func (*refreshCmd) Usage() string {
	return "refresh [-feed quotes|dividends|news|all]\n"
}

func (c *refreshCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.feed, "feed", app.FeedAll, "feed to refresh")
}

func (c *refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if _, err := app.ParseFeed(c.feed); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitUsageError
	}
	return withApp(ctx, func(a *app.App) error {
		reports, err := a.Refresh(ctx, c.feed)
		if err != nil {
			return err
		}
		for _, r := range reports {
			fmt.Fprintf(stdout, "%s (%s)\n", r.Feed, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
			printResults(stdout, r.Results)
		}
		return nil
	})
}

// --- summary ---

type summaryCmd struct {
	asJSON bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show portfolio value, gain and dividend income" }
func (*summaryCmd) Usage() string    { return "summary [-json]\n" }

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "print the summary as JSON")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app.App) error {
		s := a.Summary()
		if c.asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}

		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Value\t%s\n", money(s.TotalCurrentValue))
		fmt.Fprintf(tw, "Cost basis\t%s\n", money(s.TotalCostBasis))
		fmt.Fprintf(tw, "Return\t%s (%s%%)\n", money(s.TotalReturn), s.PercentageGain.StringFixed(2))
		fmt.Fprintf(tw, "Shares\t%s\n", s.TotalShares)
		fmt.Fprintf(tw, "Annual income\t%s\n", money(s.AnnualIncome))
		fmt.Fprintf(tw, "Monthly income\t%s\n", money(s.MonthlyIncome))
		fmt.Fprintf(tw, "Daily income\t%s\n", money(s.DailyIncome))
		fmt.Fprintf(tw, "Yield\t%s%%\n", s.Yield.StringFixed(2))
		fmt.Fprintf(tw, "Yield on cost\t%s%%\n", s.YieldOnCost.StringFixed(2))
		for _, ch := range s.DividendChanges {
			dir := "cut"
			if ch.Increased() {
				dir = "raised"
			}
			fmt.Fprintf(tw, "Dividend %s\t%s %s -> %s\n", dir, ch.Symbol, money(ch.Old), money(ch.New))
		}
		return tw.Flush()
	})
}

// --- news ---

type newsCmd struct {
	symbol string
}

func (*newsCmd) Name() string     { return "news" }
func (*newsCmd) Synopsis() string { return "list cached news for held symbols" }
func (*newsCmd) Usage() string    { return "news [-symbol SYM]\n" }

func (c *newsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "only show articles for this symbol")
}

func (c *newsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app.App) error {
		articles := a.NewsFeed()
		if c.symbol != "" {
			articles = a.News.Articles(c.symbol)
		}
		for _, n := range articles {
			fmt.Fprintf(stdout, "%s  %-6s %-8s %s (%s)\n",
				n.PublishedAt.Format("2006-01-02 15:04"), n.Symbol, n.Sentiment, n.Title, n.Publisher)
		}
		return nil
	})
}

// --- calendar ---

type calendarCmd struct {
	from, to string
}

func (*calendarCmd) Name() string     { return "calendar" }
func (*calendarCmd) Synopsis() string { return "list acquisition, ex-dividend and pay dates" }
func (*calendarCmd) Usage() string    { return "calendar [-from YYYY-MM-DD] [-to YYYY-MM-DD]\n" }

func (c *calendarCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "first date to include")
	f.StringVar(&c.to, "to", "", "last date to include")
}

func (c *calendarCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var from, to time.Time
	for _, p := range []struct {
		raw string
		dst *time.Time
	}{{c.from, &from}, {c.to, &to}} {
		if p.raw == "" {
			continue
		}
		d, err := time.Parse(models.DateLayout, p.raw)
		if err != nil {
			fmt.Fprintf(stderr, "invalid date %q, want YYYY-MM-DD\n", p.raw)
			return subcommands.ExitUsageError
		}
		*p.dst = d
	}

	return withApp(ctx, func(a *app.App) error {
		cal := a.Calendar(from, to)
		for _, day := range cal.Dates() {
			labels := make([]string, 0, len(cal[day]))
			for _, e := range cal[day] {
				switch e.Kind {
				case models.CalendarExDividend:
					labels = append(labels, e.Label+" ex-dividend")
				case models.CalendarPayDate:
					labels = append(labels, e.Symbol+" pays "+e.Label)
				default:
					labels = append(labels, e.Label)
				}
			}
			fmt.Fprintf(stdout, "%s  %s\n", day, strings.Join(labels, "; "))
		}
		return nil
	})
}
