// Command pgrag is a CLI for the pgrag hybrid retrieval engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ragkit/pgrag/pkg/core"
	"github.com/ragkit/pgrag/pkg/terms"
)

var (
	dsn        string
	table      string
	dimensions int
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pgrag",
	Short: "Hybrid vector + keyword retrieval over Postgres/pgvector",
	Long: `A command-line interface for managing embedding rows and running
hybrid (vector + full-text) similarity searches against a PostgreSQL
database with the pgvector extension.

Configuration comes from PGRAG_-prefixed environment variables; flags
override the environment.`,
}

// loadConfig resolves environment configuration and applies flag overrides.
func loadConfig() (core.Config, error) {
	cfg, err := core.FromEnv()
	if err != nil {
		return cfg, err
	}
	if dsn != "" {
		cfg.DSN = dsn
	}
	if table != "" {
		cfg.Table = table
	}
	if dimensions > 0 {
		cfg.Dimensions = dimensions
	}
	if verbose {
		cfg.Debug = true
	}
	return cfg, nil
}

func newLogger(cfg core.Config) *zap.Logger {
	if cfg.Debug {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openStore(ctx context.Context) (*core.PgStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := core.New(cfg, core.WithLogger(newLogger(cfg)))
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate connectivity to the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := core.New(cfg, core.WithLogger(newLogger(cfg)))
		if err != nil {
			return err
		}

		res := store.ValidateConnection(cmd.Context())
		if !res.Success {
			return fmt.Errorf("connection check failed: %s", res.Error)
		}
		fmt.Println("connection ok")
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the embedding table and enable the vector extension",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Printf("initialized table with %d dimensions\n", dimensions)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <namespace> <rows.json>",
	Short: "Insert embedding rows from a JSON file in one batch",
	Long: `Reads a JSON array of {"id": "...", "vector": [...], "metadata": {...}}
objects and inserts them transactionally into the given namespace.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, path := args[0], args[1]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read rows file: %w", err)
		}
		var rows []core.EmbeddingRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("invalid rows JSON: %w", err)
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if !store.UpsertBatch(cmd.Context(), namespace, rows, dimensions) {
			return fmt.Errorf("batch insert failed; run with --verbose for details")
		}
		fmt.Printf("inserted %d rows into namespace %q\n", len(rows), namespace)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <namespace>",
	Short: "Run a similarity search",
	Long: `Searches a namespace with a query vector supplied as a comma-separated
list. When --query and --hybrid are given, lexical probe terms are
extracted from the query text and fused into the ranking.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace := args[0]
		vectorStr, _ := cmd.Flags().GetString("vector")
		queryText, _ := cmd.Flags().GetString("query")
		topN, _ := cmd.Flags().GetInt("top")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		hybrid, _ := cmd.Flags().GetBool("hybrid")
		alphaStr, _ := cmd.Flags().GetString("alpha")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		req := core.SearchRequest{
			Namespace: namespace,
			Query:     queryText,
			TopN:      topN,
			Threshold: threshold,
			Hybrid:    hybrid,
		}
		if alphaStr != "" {
			alpha := core.ParseAlpha(alphaStr, core.DefaultHybridAlpha)
			req.Alpha = &alpha
		}

		var resp *core.SearchResponse
		if queryText != "" {
			// The CLI has no embedding provider; the supplied vector
			// stands in for the embedded query text.
			resp, err = searchWithVector(cmd.Context(), store, req, vector)
		} else {
			sources, serr := store.SemanticSearch(cmd.Context(), namespace, vector, topN, threshold, nil)
			if serr != nil {
				return serr
			}
			resp = &core.SearchResponse{Sources: sources}
			err = nil
		}
		if err != nil {
			return err
		}
		if resp.Message != "" {
			return fmt.Errorf("search failed: %s", resp.Message)
		}

		out, err := json.MarshalIndent(resp.Sources, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete embedding rows by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteByIDs(cmd.Context(), args); err != nil {
			return err
		}
		fmt.Printf("deleted %d rows\n", len(args))
		return nil
	},
}

var dropNamespaceCmd = &cobra.Command{
	Use:   "drop-namespace <namespace>",
	Short: "Delete every row in a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		affected, err := store.DeleteNamespace(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d rows from namespace %q\n", affected, args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <namespace>",
	Short: "Show namespace statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.NamespaceStats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("namespace: %s\nvectors:   %d\n", stats.Name, stats.VectorCount)
		return nil
	},
}

var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "Probe-term dictionary operations",
}

var termsExtractCmd = &cobra.Command{
	Use:   "extract <text>",
	Short: "Extract probe terms from text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxTerms, _ := cmd.Flags().GetInt("max")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		library := terms.NewLibrary(cfg.Terms, newLogger(cfg))

		for _, term := range library.Extract(args[0], maxTerms) {
			fmt.Println(term)
		}
		return nil
	},
}

// searchWithVector runs the orchestrated search with a fixed query vector
// standing in for the external embedding provider.
func searchWithVector(ctx context.Context, store *core.PgStore, req core.SearchRequest, vector []float32) (*core.SearchResponse, error) {
	store.SetEmbedder(core.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return vector, nil
	}))
	return store.SimilaritySearch(ctx, req)
}

func parseVector(s string) ([]float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("vector is required")
	}
	parts := strings.Split(s, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		vector = append(vector, float32(val))
	}
	return vector, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres connection string (overrides PGRAG_DSN)")
	rootCmd.PersistentFlags().StringVar(&table, "table", "", "Embedding table name (overrides PGRAG_TABLE)")
	rootCmd.PersistentFlags().IntVarP(&dimensions, "dimensions", "n", 0, "Vector dimensionality")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	searchCmd.Flags().String("vector", "", "Comma-separated query vector")
	searchCmd.Flags().String("query", "", "Query text for term extraction and lexical ranking")
	searchCmd.Flags().Int("top", core.DefaultTopN, "Maximum results")
	searchCmd.Flags().Float64("threshold", 0, "Minimum similarity score")
	searchCmd.Flags().Bool("hybrid", false, "Enable hybrid search with rank fusion")
	searchCmd.Flags().String("alpha", "", "Hybrid blend weight in [0,1]")

	termsExtractCmd.Flags().Int("max", 3, "Maximum terms to extract")
	termsCmd.AddCommand(termsExtractCmd)

	rootCmd.AddCommand(
		validateCmd,
		initCmd,
		addCmd,
		searchCmd,
		deleteCmd,
		dropNamespaceCmd,
		statsCmd,
		termsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
