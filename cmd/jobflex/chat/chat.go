// Package chatcmder provides the chat command for interactive chat through
// the JobFlex proxy.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/KimYongKuk/commercial-analysis/cmd/jobflex/backend"
	"github.com/KimYongKuk/commercial-analysis/pkg/cliui"
	"github.com/KimYongKuk/commercial-analysis/pkg/conversation"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Render("jobflex> ")
)

type chatCommander struct {
	conversationID string
	plain          bool
	debug          bool

	resolved *backend.Resolved
	logger   *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session through the JobFlex proxy.

Each message is sent to the proxy together with the conversation id the
backend assigned to this session, so follow-up questions keep their context.
Replies stream in as they are generated.

On a terminal the session runs full screen; finished replies are rendered as
markdown. When stdin or stdout is not a terminal, or with --plain, a simple
line-oriented prompt is used instead. Type /exit or press Ctrl+D to quit.

Examples:
  jobflex chat
  jobflex chat --target http://localhost:8000 --user analyst-7
  jobflex chat --conversation-id c-123`

const chatShortDesc string = "Interactive chat through the JobFlex proxy"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.resolved, err = backend.Resolve(cmd, backend.ClientFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			if !cmder.plain && isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout()) {
				return cmder.runTUI(cmd.Context())
			}

			cmder.logger = backend.NewCLILogger(cmder.debug, cmd.ErrOrStderr())
			return cmder.runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	backend.AddFlags(cmd, backend.ClientFlags)
	cmd.Flags().StringVarP(&cmder.conversationID, "conversation-id", "c", "", "Resume an existing conversation")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Use the line-oriented prompt even on a terminal")

	return cmd
}

func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *chatCommander) newEngine(opts ...conversation.Option) (*conversation.Engine, error) {
	cfg := c.resolved.Config

	cl, err := backend.NewClient(cfg.Client, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	opts = append([]conversation.Option{
		conversation.WithUser(cfg.Client.User),
		conversation.WithConversationID(c.conversationID),
		conversation.WithWelcome(conversation.DefaultWelcome),
		conversation.WithLogger(c.logger),
	}, opts...)

	return conversation.New(cl, opts...), nil
}

// runREPL reads one message per line and streams each reply to out.
func (c *chatCommander) runREPL(ctx context.Context, in io.Reader, out io.Writer) error {
	printer := cliui.NewReplyPrinter(out)
	engine, err := c.newEngine(conversation.WithObserver(func(snap conversation.Snapshot) {
		if last, ok := snap.Last(); ok && last.Sender == conversation.SenderAssistant {
			printer.Update(last.Text)
		}
	}))
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	for _, msg := range engine.Transcript() {
		fmt.Fprintf(out, "%s%s\n", assistantPrompt, msg.Text)
	}
	fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		fmt.Fprint(out, assistantPrompt)
		if err := engine.Submit(ctx, input); err != nil {
			fmt.Fprintf(out, "%s %v\n", cliui.FailMark, err)
			continue
		}
		printer.Finish()
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	if id := engine.ConversationID(); id != "" {
		fmt.Fprintf(out, "conversation_id: %s\n", id)
	}
	return nil
}

// runTUI runs the full-screen session.
func (c *chatCommander) runTUI(ctx context.Context) error {
	closeLog, err := c.tuiLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	cliui.ConfigureColor(os.Stdout)
	style := cliui.MarkdownStyle()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	relay := &programRelay{}
	engine, err := c.newEngine(conversation.WithObserver(relay.send))
	if err != nil {
		return err
	}

	relay.program = tea.NewProgram(
		newChatModel(ctx, engine, style),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if _, err := relay.program.Run(); err != nil {
		return fmt.Errorf("running chat: %w", err)
	}

	if id := engine.ConversationID(); id != "" {
		fmt.Printf("conversation_id: %s\n", id)
	}
	return nil
}

// tuiLogger keeps diagnostics off the screen: with --debug they go to
// chat.log next to config.toml, otherwise they are dropped.
func (c *chatCommander) tuiLogger() (func(), error) {
	if !c.debug {
		c.logger = logger.Nop()
		return func() {}, nil
	}

	path := filepath.Join(filepath.Dir(c.resolved.Path), "chat.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening debug log: %w", err)
	}

	c.logger = logger.New(
		logger.WithDebug(true),
		logger.WithWriter(f),
		logger.WithPrefix("chat"),
	)
	return func() { f.Close() }, nil
}

// programRelay forwards engine snapshots into a running program. The
// program is assigned before Run, and the engine only notifies during a
// turn, which can only start once the program is running.
type programRelay struct {
	program *tea.Program
}

func (r *programRelay) send(snap conversation.Snapshot) {
	r.program.Send(snapshotMsg(snap))
}
