// Package askcmder provides the ask command, which runs a single chat turn
// and streams the reply to stdout.
package askcmder

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
	"github.com/KimYongKuk/commercial-analysis/pkg/conversation"
)

type askCommander struct {
	conversationID string
	jsonOutput     bool
	markdown       bool
	debug          bool

	resolved *backend.Resolved
	logger   *slog.Logger
}

const askLongDesc string = `Ask a single question through the JobFlex chat proxy.

The reply is printed as it streams in. The conversation id assigned by the
backend is printed to stderr afterwards; pass it back with
--conversation-id to continue the same conversation.

Examples:
  jobflex ask "이번 분기 채용 공고 추이를 요약해줘"
  jobflex ask --conversation-id c-123 "직무별로 나눠서 보여줘"
  jobflex ask --json "What changed since last week?"
  jobflex ask --markdown "직무별 평균 연봉을 표로 정리해줘"`

const askShortDesc string = "Ask a single question and stream the answer"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.resolved, err = backend.Resolve(cmd, backend.ClientFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.logger = backend.NewCLILogger(cmder.debug, cmd.ErrOrStderr())
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), strings.Join(args, " "))
		},
	}

	backend.AddFlags(cmd, backend.ClientFlags)
	cmd.Flags().StringVarP(&cmder.conversationID, "conversation-id", "c", "", "Continue an existing conversation")
	cmd.Flags().BoolVar(&cmder.jsonOutput, "json", false, "Print the final answer as JSON instead of streaming it")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Wait for the full answer and render it as markdown")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// askResult is the --json output.
type askResult struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
}

func (c *askCommander) run(ctx context.Context, stdout, stderr io.Writer, query string) error {
	cfg := c.resolved.Config

	cl, err := backend.NewClient(cfg.Client, c.logger)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	printer := cliui.NewReplyPrinter(stdout)
	opts := []conversation.Option{
		conversation.WithUser(cfg.Client.User),
		conversation.WithConversationID(c.conversationID),
		conversation.WithLogger(c.logger),
	}
	streaming := !c.jsonOutput && !c.markdown
	if streaming {
		opts = append(opts, conversation.WithObserver(func(snap conversation.Snapshot) {
			if last, ok := snap.Last(); ok && last.Sender == conversation.SenderAssistant {
				printer.Update(last.Text)
			}
		}))
	}

	engine := conversation.New(cl, opts...)
	submit := func() error { return engine.Submit(ctx, query) }
	if c.markdown {
		err = cliui.Step(stderr, "generating answer", submit)
	} else {
		err = submit()
	}
	if err != nil {
		return err
	}

	answer, _ := engine.Snapshot().Last()

	switch {
	case c.markdown:
		out, err := cliui.RenderMarkdown(answer.Text)
		if err != nil {
			c.logger.Debug("markdown render failed", "error", err)
		}
		fmt.Fprintln(stdout, strings.TrimRight(out, "\n"))
	case c.jsonOutput:
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(askResult{
			ConversationID: engine.ConversationID(),
			Answer:         answer.Text,
		})
	default:
		printer.Finish()
	}

	if id := engine.ConversationID(); id != "" {
		fmt.Fprintf(stderr, "conversation_id: %s\n", id)
	}
	return nil
}
