// Package jobflexcmder assembles the jobflex command tree.
package jobflexcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/KimYongKuk/commercial-analysis/cmd/jobflex/ask"
	chatcmder "github.com/KimYongKuk/commercial-analysis/cmd/jobflex/chat"
	configcmder "github.com/KimYongKuk/commercial-analysis/cmd/jobflex/config"
	docscmder "github.com/KimYongKuk/commercial-analysis/cmd/jobflex/docs"
	servecmder "github.com/KimYongKuk/commercial-analysis/cmd/jobflex/serve"
	versioncmder "github.com/KimYongKuk/commercial-analysis/cmd/version"
)

const jobflexLongDesc string = `JobFlex is a streaming chat assistant for commercial analysis results.

Talk to the assistant:
  jobflex chat           Interactive chat session
  jobflex ask <q>        Ask one question and stream the answer

Build the knowledge base:
  jobflex docs add <p>   Index documents for /api/rag-chat
  jobflex docs search    Show the chunks closest to a query

Run services using:
  jobflex serve api      Run the API server
  jobflex serve proxy    Run the chat proxy
  jobflex serve          Run both servers together

Settings live in .jobflex/config.toml (see "jobflex config") and can be
overridden with JOBFLEX_* environment variables or flags.`

const jobflexShortDesc string = "JobFlex - streaming chat assistant"

func NewJobflexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "jobflex",
		Short:        jobflexShortDesc,
		Long:         jobflexLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.jobflex or ~/.jobflex)")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(docscmder.NewDocsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
