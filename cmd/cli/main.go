package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/app"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/config"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

const usage = "expected 'export', 'import', 'dashboard' or 'events' subcommands"

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	logger := app.NewLogger(cfg)
	logger.SetOutput(os.Stderr)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to db")
	}
	defer a.Close()

	if err := run(ctx, a.Links, a.Stats, logger, os.Args[1:], os.Stdout); err != nil {
		logger.WithError(err).Error("command failed")
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, links ports.LinkService, stats ports.StatsService, logger logrus.FieldLogger, args []string, out io.Writer) error {
	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	dashboardCmd := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	period := dashboardCmd.String("period", string(domain.PeriodAll), "1d, 7d, 30d, 90d or all")
	eventsCmd := flag.NewFlagSet("events", flag.ContinueOnError)
	linkID := eventsCmd.Int64("link", 0, "link id")
	pageSize := eventsCmd.Int("page", 100, "events fetched per round trip")

	switch args[0] {
	case "export":
		if err := exportCmd.Parse(args[1:]); err != nil {
			return err
		}
		return doExport(ctx, links, out)
	case "import":
		if err := importCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.PrintDefaults()
			return errors.New("-file is required")
		}
		f, err := os.Open(*importFile)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		_, err = doImport(ctx, links, logger, f)
		return err
	case "dashboard":
		if err := dashboardCmd.Parse(args[1:]); err != nil {
			return err
		}
		return doDashboard(ctx, stats, *period, out)
	case "events":
		if err := eventsCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *linkID <= 0 {
			eventsCmd.PrintDefaults()
			return errors.New("-link is required")
		}
		return doEvents(ctx, stats, *linkID, *pageSize, out)
	default:
		return errors.New(usage)
	}
}

// doExport writes every link, counters included, as one JSON array.
func doExport(ctx context.Context, links ports.LinkService, out io.Writer) error {
	all, err := links.List(ctx, domain.LinkFilter{})
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(all)
}

// doImport recreates links under their original codes. Counters are not
// carried over; they only move with recorded events.
func doImport(ctx context.Context, links ports.LinkService, logger logrus.FieldLogger, in io.Reader) (int, error) {
	var exported []domain.TrackingLink
	if err := json.NewDecoder(in).Decode(&exported); err != nil {
		return 0, fmt.Errorf("decode import: %w", err)
	}

	count := 0
	for _, l := range exported {
		log := logger.WithField("code", l.Code)

		created, err := links.Create(ctx, domain.CreateLinkInput{
			Name:        l.Name,
			Description: l.Description,
			TargetURL:   l.TargetURL,
			Code:        l.Code,
		})
		switch {
		case errors.Is(err, domain.ErrDuplicateCode):
			log.Info("Skipping existing code")
			continue
		case err != nil:
			log.WithError(err).Warn("Failed to import link")
			continue
		}

		if !l.Active {
			inactive := false
			if _, err := links.Update(ctx, created.ID, domain.LinkPatch{Active: &inactive}); err != nil {
				log.WithError(err).Warn("Imported link left active")
			}
		}
		count++
	}
	logger.WithField("imported", count).Info("Import finished")
	return count, nil
}

func doDashboard(ctx context.Context, stats ports.StatsService, rawPeriod string, out io.Writer) error {
	period, err := domain.ParsePeriod(rawPeriod)
	if err != nil {
		return err
	}
	totals, err := stats.DashboardTotals(ctx, period)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "period:      %s\nlinks:       %d (%d active)\nclicks:      %d\nlogins:      %d\nconversion:  %.2f%%\n",
		totals.Period, totals.TotalLinks, totals.ActiveLinks, totals.TotalClicks, totals.TotalLogins, totals.ConversionRate*100)
	return err
}

// doEvents streams the full timeline, newest first, one JSON object per line.
func doEvents(ctx context.Context, stats ports.StatsService, linkID int64, pageSize int, out io.Writer) error {
	encoder := json.NewEncoder(out)
	for ev, err := range stats.IterateEvents(ctx, linkID, pageSize) {
		if err != nil {
			return err
		}
		if err := encoder.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
