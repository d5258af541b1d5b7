package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/GoPolymarket/dutchauction/internal/config"
	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
	"github.com/GoPolymarket/dutchauction/internal/service"
	"github.com/GoPolymarket/dutchauction/internal/strategy"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const usage = `auctionctl <command> [flags]

Commands:
  validate   load the config and lot catalog and report problems
  simulate   run rounds offline with no tick delays and print each outcome
`

// maxTicks bounds one simulated round. A valid lot always reaches its floor
// well before this.
const maxTicks = 100000

func main() {
	_ = godotenv.Load()
	logger.Init("error")

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:], os.Stdout)
	case "simulate":
		err = runSimulate(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// setup builds the catalog and roster the server would build from cfg.
func setup(cfg *config.Config) (*service.LotCatalog, *service.BidderRegistry, error) {
	lots, err := service.LoadLots(cfg)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := service.NewLotCatalog(lots)
	if err != nil {
		return nil, nil, err
	}
	registry, err := service.NewBidderRegistry(service.BiddersFromConfig(cfg.Bidders), cfg.Auction.HumanBidderID, cfg.Auction.HumanRate)
	if err != nil {
		return nil, nil, err
	}
	return catalog, registry, nil
}

func runValidate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (default: config.yaml in . or ./configs)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	catalog, registry, err := setup(cfg)
	if err != nil {
		return err
	}
	if _, err := service.ParseLotSelection(cfg.Auction.LotSelection); err != nil {
		return err
	}
	if _, err := service.NewWinnerSelector(cfg.Auction.TieBreak, cfg.Auction.TieBreakTopN, cfg.Auction.TieBreakBestProbability); err != nil {
		return err
	}
	if catalog.Len() == 0 {
		return apperrors.New(apperrors.ErrEmptyCatalog, "lot catalog is empty", nil)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOT\tSTART\tFLOOR\tSTEP\tTICK\tDEMAND")
	for _, lot := range catalog.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			lot.Name, lot.StartingPrice, lot.FloorPrice, lot.PriceStep, lot.TickInterval, lot.DemandIndex)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "BIDDER\tNAME\tSTRATEGY\tBALANCE")
	for _, b := range registry.List() {
		strat := string(b.Strategy)
		if b.Human {
			strat = "human"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Name, strat, b.Balance)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nok: %d lots, %d bidders\n", catalog.Len(), len(registry.List()))
	return nil
}

func runSimulate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (default: config.yaml in . or ./configs)")
	rounds := fs.Int("rounds", 5, "number of rounds to run")
	seed := fs.Int64("seed", 1, "random seed; the same seed replays the same rounds")
	humanAt := fs.String("human-buy-at", "", "the human buys once the price is at or below this value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rounds <= 0 {
		return errors.New("rounds must be positive")
	}
	var humanLimit *decimal.Decimal
	if *humanAt != "" {
		v, err := decimal.NewFromString(*humanAt)
		if err != nil {
			return fmt.Errorf("human-buy-at: %w", err)
		}
		humanLimit = &v
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	catalog, registry, err := setup(cfg)
	if err != nil {
		return err
	}
	return simulate(context.Background(), cfg, catalog, registry, *rounds, *seed, humanLimit, out)
}

func simulate(ctx context.Context, cfg *config.Config, catalog *service.LotCatalog, registry *service.BidderRegistry,
	rounds int, seed int64, humanLimit *decimal.Decimal, out io.Writer) error {
	rng := strategy.NewLockedRand(seed)
	selection, err := service.ParseLotSelection(cfg.Auction.LotSelection)
	if err != nil {
		return err
	}
	selector, err := service.NewWinnerSelector(cfg.Auction.TieBreak, cfg.Auction.TieBreakTopN, cfg.Auction.TieBreakBestProbability)
	if err != nil {
		return err
	}

	state := service.NewRoundStateManager(catalog, registry, service.StateOptions{Selection: selection, Rand: rng})
	engine := service.NewEngine(state, registry, selector, rng, service.EngineConfig{})
	svc := service.NewAuctionService(state, engine, registry, nil)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROUND\tLOT\tOUTCOME\tWINNER\tPRICE\tTICKS")
	for i := 0; i < rounds; i++ {
		if _, err := state.ResetRound(); err != nil {
			return err
		}
		view, ticks, err := playRound(ctx, svc, engine, humanLimit)
		if err != nil {
			return err
		}
		price := "-"
		if view.SettlePrice != nil {
			price = view.SettlePrice.String()
		}
		winner := view.WinnerName
		if winner == "" {
			winner = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", view.RoundID, view.Lot.Name, view.Outcome, winner, price, ticks)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	balances, err := svc.Bidders()
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	for _, b := range balances {
		fmt.Fprintf(out, "%-16s %s\n", b.ID, b.Balance)
	}
	return nil
}

// playRound ticks one round to its end and returns the settled view.
func playRound(ctx context.Context, svc *service.AuctionService, engine *service.Engine, humanLimit *decimal.Decimal) (model.RoundView, int, error) {
	for ticks := 1; ticks <= maxTicks; ticks++ {
		view, err := svc.GetState()
		if err != nil {
			return view, ticks, err
		}
		if humanLimit != nil && view.Running && view.CurrentPrice.LessThanOrEqual(*humanLimit) {
			_, err := svc.HumanBuy(ctx, svc.HumanBidderID(), view.RoundID)
			if err != nil && !errors.Is(err, apperrors.InsufficientBalance) && !errors.Is(err, apperrors.AlreadySettled) {
				return view, ticks, err
			}
		}
		res, err := engine.Tick(ctx)
		if err != nil {
			return view, ticks, err
		}
		if res.Ended {
			final, err := svc.GetState()
			return final, ticks, err
		}
	}
	return model.RoundView{}, maxTicks, fmt.Errorf("round did not end within %d ticks", maxTicks)
}
