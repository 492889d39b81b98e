package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/payload"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

func newSearchCmd() *cobra.Command {
	var (
		limit   int
		pages   bool
		prefix  bool
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "search <payload> <query>",
		Short: "Query a payload without running searchd",
		Long: `Builds an index from the payload (a path or http(s) URL) and prints
the best matches for query.

Examples:
  docsearch search build/search_index.js "sort"
  docsearch search https://docs.example.org/stable/search_index.js "interp" --prefix`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			idx, err := loadIndex(ctx, args[0])
			if err != nil {
				return err
			}
			opts := executor.DefaultOptions()
			opts.Prefix = prefix
			out := cmd.OutOrStdout()
			if pages {
				hits, err := executor.SearchPages(idx, args[1], limit, opts)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, hits)
				}
				printPages(out, hits)
				return nil
			}
			results, err := executor.Search(idx, args[1], limit, opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, results)
			}
			printEntries(out, results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	cmd.Flags().BoolVar(&pages, "pages", false, "group results by page")
	cmd.Flags().BoolVar(&prefix, "prefix", false, "expand the last term as a prefix")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "payload fetch timeout")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "inspect <payload>",
		Short: "Validate a payload and summarise its index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			idx, err := loadIndex(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printInspect(cmd.OutOrStdout(), idx, top)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of most frequent terms to list")
	return cmd
}

func newPublishCmd() *cobra.Command {
	var (
		version    string
		source     string
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "publish [payload]",
		Short: "Broadcast a payload reload to every searchd node over Kafka",
		Long: `Validates the payload and publishes it on the reload topic. With
--source the nodes fetch the payload themselves and no file is needed;
nodes ignore a source that differs from the one configured for the version.

Brokers and topics come from --config and DS_KAFKA_* variables.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			if (len(args) == 0) == (source == "") {
				return fmt.Errorf("give either a payload file or --source")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexReload)
			defer producer.Close()
			pub := publisher.New(producer)

			var event *ingestion.ReloadEvent
			if source != "" {
				event, err = pub.PublishSource(cmd.Context(), version, source)
			} else {
				var data []byte
				data, err = payload.Fetch(cmd.Context(), args[0])
				if err == nil {
					event, err = pub.PublishPayload(cmd.Context(), version, data)
				}
			}
			if err != nil {
				return err
			}
			printPublished(cmd.OutOrStdout(), event, cfg.Kafka.Topics.IndexReload)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "documentation version to reload (required)")
	cmd.Flags().StringVar(&source, "source", "", "path or URL the nodes fetch instead of an inline payload")
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func printPublished(w io.Writer, event *ingestion.ReloadEvent, topic string) {
	fmt.Fprintf(w, "published reload for %s to %s\n", event.Version, topic)
	if event.Digest != "" {
		fmt.Fprintf(w, "  digest: %s (%d bytes)\n", event.Digest, len(event.Payload))
	}
	if event.Source != "" {
		fmt.Fprintf(w, "  source: %s\n", event.Source)
	}
}

func setupLogging(cmd *cobra.Command) {
	logger.SetupWriter(cmd.ErrOrStderr(), logLevel, "text")
}

// loadIndex fetches, validates and indexes a payload.
func loadIndex(ctx context.Context, src string) (*index.Index, error) {
	data, err := payload.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	raws, err := payload.Decode(data)
	if err != nil {
		return nil, err
	}
	st, err := store.Load(raws)
	if err != nil {
		return nil, err
	}
	return index.Build(st), nil
}

func printEntries(w io.Writer, results []ranker.ScoredEntry) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tCATEGORY\tTITLE\tLOCATION")
	for _, r := range results {
		fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\n", r.Score, r.Entry.Category, oneLine(r.Entry.Title), r.Entry.Location)
	}
	tw.Flush()
}

func printPages(w io.Writer, hits []merger.PageHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%.4f  %s\n", h.Score, h.Page)
		for _, e := range h.Entries {
			fmt.Fprintf(w, "          %.4f  %s  %s\n", e.Score, oneLine(e.Entry.Title), e.Entry.Location)
		}
	}
}

func printInspect(w io.Writer, idx *index.Index, top int) {
	stats := idx.Stats()
	fmt.Fprintf(w, "entries:  %d\n", stats.Entries)
	fmt.Fprintf(w, "pages:    %d\n", stats.Pages)
	fmt.Fprintf(w, "terms:    %d\n", stats.Terms)
	fmt.Fprintf(w, "postings: %d\n", stats.Postings)

	cats := idx.Store().Categories()
	names := make([]string, 0, len(cats))
	for c := range cats {
		names = append(names, string(c))
	}
	sort.Strings(names)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "categories:")
	for _, c := range names {
		fmt.Fprintf(w, "  %-12s %d\n", c, cats[store.Category(c)])
	}

	if top > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "top terms:")
		for _, t := range idx.TopTerms(top) {
			fmt.Fprintf(w, "  %-20s %d\n", t.Term, len(t.Postings))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
