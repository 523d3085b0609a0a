package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/counselops/lexrag/internal/config"
	"github.com/counselops/lexrag/pkg/answer"
	"github.com/counselops/lexrag/pkg/chunker"
	"github.com/counselops/lexrag/pkg/extract"
	"github.com/counselops/lexrag/pkg/planner"
	"github.com/counselops/lexrag/pkg/provider"
	"github.com/counselops/lexrag/pkg/rag"
	"github.com/counselops/lexrag/pkg/record"
	"github.com/counselops/lexrag/pkg/vectorstore"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "lexrag",
	Short: "Legal document retrieval and question answering",
	Long:  `lexrag ingests legal documents and web pages into partitioned vector indexes and answers questions grounded in that material.`,
}

// app bundles the wired service with everything that needs closing.
type app struct {
	svc     *rag.Service
	records *record.Store
	index   *vectorstore.SQLiteBlobStore
	log     *zap.Logger
}

func (a *app) Close() {
	if a.index != nil {
		a.index.Close()
	}
	if a.records != nil {
		a.records.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func openApp(ctx context.Context) (*app, *config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, nil, fmt.Errorf("API key environment variable %s is not set", cfg.Provider.APIKeyEnv)
	}
	embedder, err := provider.NewOpenAIEmbedder(apiKey, cfg.Provider.EmbeddingModel)
	if err != nil {
		return nil, nil, err
	}
	completer, err := provider.NewOpenAICompleter(apiKey, cfg.Provider.CompletionModel)
	if err != nil {
		return nil, nil, err
	}

	records, err := record.Open(ctx, cfg.Storage.RecordDB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open record store: %w", err)
	}
	index, err := vectorstore.OpenSQLiteBlobStore(ctx, cfg.Storage.IndexDB)
	if err != nil {
		records.Close()
		return nil, nil, fmt.Errorf("failed to open index store: %w", err)
	}
	vectors := vectorstore.New(index, embedder, records, vectorstore.WithLogger(log))

	splitter, err := chunker.New(cfg.Chunker.TargetSize, cfg.Chunker.Overlap)
	if err != nil {
		index.Close()
		records.Close()
		return nil, nil, err
	}
	uploads, err := extract.NewDirContentStore(cfg.Storage.Documents)
	if err != nil {
		index.Close()
		records.Close()
		return nil, nil, err
	}

	svc := rag.New(rag.Config{
		Records:   records,
		Vectors:   vectors,
		Splitter:  splitter,
		Planner:   planner.New(records, vectors, embedder, planner.WithLogger(log)),
		Synth:     answer.New(completer, log),
		Completer: completer,
		Uploads:   uploads,
		Fetcher:   extract.NewFetcher(uploads, extract.WithFetchLogger(log)),
		Logger:    log,
	})
	return &app{svc: svc, records: records, index: index, log: log}, cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases",
}

var kbCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		ctx := cmd.Context()

		a, _, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		kb, err := a.svc.CreateKnowledgeBase(ctx, args[0], description)
		if err != nil {
			return fmt.Errorf("failed to create knowledge base: %w", err)
		}
		fmt.Printf("Knowledge base %q created (id %s, partition %s)\n", kb.Name, kb.ID, kb.Partition)
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, _, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		kbs, err := a.svc.ListKnowledgeBases(ctx)
		if err != nil {
			return fmt.Errorf("failed to list knowledge bases: %w", err)
		}
		if len(kbs) == 0 {
			fmt.Println("No knowledge bases.")
			return nil
		}
		for _, kb := range kbs {
			fmt.Printf("%s  %s  (%d documents)\n", kb.ID, kb.Name, kb.DocumentCount)
		}
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documents",
}

var ingestFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Ingest a local document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kbID, _ := cmd.Flags().GetString("kb")
		title, _ := cmd.Flags().GetString("title")
		fileType, _ := cmd.Flags().GetString("type")
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		if title == "" {
			title = args[0]
		}
		if fileType == "" {
			fileType = extensionType(args[0])
		}

		a, _, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.svc.IngestFile(ctx, rag.IngestFileInput{
			KnowledgeBaseID: kbID,
			Title:           title,
			Filename:        args[0],
			FileType:        fileType,
			Data:            data,
		})
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		fmt.Printf("Document %q ingested (id %s, status %s)\n", doc.Title, doc.ID, doc.Status)
		return nil
	},
}

var ingestURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Ingest a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kbID, _ := cmd.Flags().GetString("kb")
		title, _ := cmd.Flags().GetString("title")
		ctx := cmd.Context()

		a, _, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.svc.IngestURL(ctx, rag.IngestURLInput{
			KnowledgeBaseID: kbID,
			Title:           title,
			URL:             args[0],
		})
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		fmt.Printf("Page %q ingested (id %s, status %s)\n", doc.Title, doc.ID, doc.Status)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question against the indexed material",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kbID, _ := cmd.Flags().GetString("kb")
		topK, _ := cmd.Flags().GetInt("top-k")
		includeGlobal, _ := cmd.Flags().GetBool("global")
		conversationID, _ := cmd.Flags().GetString("conversation")
		ctx := cmd.Context()

		a, cfg, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if topK == 0 {
			topK = cfg.Query.TopK
		}
		question := strings.Join(args, " ")

		out, err := a.svc.Query(ctx, rag.QueryInput{
			Question:        question,
			ConversationID:  conversationID,
			KnowledgeBaseID: kbID,
			TopK:            topK,
			Temperature:     cfg.Query.Temperature,
			IncludeGlobal:   includeGlobal,
		})
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		if out.NoContext {
			fmt.Println(out.Message)
			return nil
		}
		fmt.Println(out.Answer.Text)
		fmt.Printf("\n(retrieval %dms, generation %dms)\n",
			out.Answer.Timing.RetrievalMS, out.Answer.Timing.GenerationMS)
		return nil
	},
}

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Manage legal cases",
}

var caseSummarizeCmd = &cobra.Command{
	Use:   "summarize <conversation-id>",
	Short: "Generate a legal analysis for a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, _, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		analysis, err := a.svc.SummarizeCase(ctx, args[0])
		if err != nil {
			return fmt.Errorf("summarization failed: %w", err)
		}
		fmt.Println(analysis)
		return nil
	},
}

func extensionType(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	kbCreateCmd.Flags().String("description", "", "Knowledge base description")
	kbCmd.AddCommand(kbCreateCmd, kbListCmd)

	ingestFileCmd.Flags().String("kb", "", "Knowledge base ID")
	ingestFileCmd.Flags().String("title", "", "Document title")
	ingestFileCmd.Flags().String("type", "", "File type (pdf, txt)")
	ingestURLCmd.Flags().String("kb", "", "Knowledge base ID")
	ingestURLCmd.Flags().String("title", "", "Document title")
	ingestCmd.AddCommand(ingestFileCmd, ingestURLCmd)

	queryCmd.Flags().String("kb", "", "Knowledge base ID to search first")
	queryCmd.Flags().Int("top-k", 0, "Number of passages to retrieve")
	queryCmd.Flags().Bool("global", true, "Include the global partition")
	queryCmd.Flags().String("conversation", "", "Conversation ID for scoped retrieval")

	caseCmd.AddCommand(caseSummarizeCmd)

	rootCmd.AddCommand(kbCmd, ingestCmd, queryCmd, caseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
