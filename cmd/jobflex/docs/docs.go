// Package docscmder provides the docs command, which manages the knowledge
// base behind the proxy's /api/rag-chat routes.
package docscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KimYongKuk/commercial-analysis/cmd/jobflex/backend"
	"github.com/KimYongKuk/commercial-analysis/pkg/cliui"
	"github.com/KimYongKuk/commercial-analysis/pkg/rag"
	"github.com/KimYongKuk/commercial-analysis/pkg/utils"
)

type docsCommander struct {
	topK       int
	jsonOutput bool
	debug      bool

	resolved *backend.Resolved
	logger   *slog.Logger
}

const docsLongDesc string = `Manage the document knowledge base.

Documents are split into chunks, embedded, and stored in the vector store
named by vector_store.provider. The proxy answers /api/rag-chat and
/api/rag-chat-stream from them.

Examples:
  jobflex docs add ./knowledge
  jobflex docs add 상권분석_가이드.md --vector-store-provider sqlite-vec --vector-store-target .jobflex/vectors.db
  jobflex docs search "강남역 유동인구"`

const docsShortDesc string = "Manage the document knowledge base"

func NewDocsCmd() *cobra.Command {
	cmder := &docsCommander{}

	cmd := &cobra.Command{
		Use:   "docs",
		Short: docsShortDesc,
		Long:  docsLongDesc,
	}

	add := &cobra.Command{
		Use:   "add <path>...",
		Short: "Index .txt and .md files, walking directories",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runAdd(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
		},
	}
	backend.AddFlags(add, backend.VectorFlags)

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks closest to a query",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runSearch(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
	backend.AddFlags(search, backend.VectorFlags)
	search.Flags().IntVarP(&cmder.topK, "top-k", "k", rag.DefaultTopK, "Number of chunks to show")
	search.Flags().BoolVar(&cmder.jsonOutput, "json", false, "Print results as JSON")

	cmd.AddCommand(add, search)
	return cmd
}

func (c *docsCommander) prepare(cmd *cobra.Command) error {
	var err error
	c.debug, err = cmd.Flags().GetBool("debug")
	if err != nil {
		return fmt.Errorf("could not get debug flag: %w", err)
	}
	c.logger = backend.NewCLILogger(c.debug, cmd.ErrOrStderr())

	c.resolved, err = backend.Resolve(cmd, backend.VectorFlags)
	return err
}

func (c *docsCommander) runAdd(ctx context.Context, stdout, stderr io.Writer, paths []string) error {
	cfg := c.resolved.Config

	driver, err := backend.NewVectorDriver(cfg, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	emb, err := backend.NewEmbedder(cfg.Embedding, c.logger)
	if err != nil {
		return err
	}
	defer emb.Close()

	ix := rag.NewIndexer(emb, driver, nil, c.logger)

	var stats rag.IndexStats
	err = cliui.Step(stderr, "indexing documents", func() error {
		stats, err = ix.Index(ctx, paths...)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s %d  %s %d  %s %d  %s %d\n",
		cliui.KeyStyle.Render("files"), stats.Files,
		cliui.KeyStyle.Render("chunks"), stats.Chunks,
		cliui.KeyStyle.Render("added"), stats.Added,
		cliui.KeyStyle.Render("unchanged"), stats.Skipped,
	)
	return nil
}

func (c *docsCommander) runSearch(ctx context.Context, stdout io.Writer, query string) error {
	cfg := c.resolved.Config

	driver, err := backend.NewVectorDriver(cfg, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	emb, err := backend.NewEmbedder(cfg.Embedding, c.logger)
	if err != nil {
		return err
	}
	defer emb.Close()

	vec, err := emb.Embed(ctx, query)
	if err != nil {
		return err
	}
	results, err := driver.Query(ctx, vec, c.topK)
	if err != nil {
		return err
	}
	sources := rag.Sources(results)

	if c.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(sources)
	}

	if len(sources) == 0 {
		fmt.Fprintln(stdout, cliui.DimStyle.Render("no matching documents"))
		return nil
	}
	for i, s := range sources {
		fmt.Fprintf(stdout, "%d. %s %s\n   %s\n",
			i+1,
			cliui.KeyStyle.Render(s.Metadata.Source),
			cliui.DimStyle.Render(fmt.Sprintf("(%.3f)", s.Score)),
			cliui.ValueStyle.Render(utils.Truncate(strings.Join(strings.Fields(s.Content), " "), 160)),
		)
	}
	return nil
}
