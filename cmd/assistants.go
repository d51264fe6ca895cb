package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"datemate/pkg/config"
	"datemate/pkg/logger"
	"datemate/pkg/persona"
	"datemate/pkg/vapi"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	assistantsLimit     int
	assistantsPageToken string
)

var assistantsCmd = &cobra.Command{
	Use:   "assistants",
	Short: "List persona assistants",
	Long:  "Lists the persona assistants stored on the voice platform as a table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		if err := validateLimit(assistantsLimit); err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.assistants")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := vapi.New(cfg.Vapi, log)
		page, err := client.ListAssistants(ctx, assistantsLimit, assistantsPageToken)
		if err != nil {
			return err
		}

		summaries := make([]persona.Summary, 0, len(page.Assistants))
		now := time.Now()
		for _, assistant := range page.Assistants {
			summary, err := persona.Summarize(assistant, now)
			if err != nil {
				log.Warn("Skipping invalid assistant", "assistant_id", assistant.ID, "error", err)
				continue
			}
			summaries = append(summaries, summary)
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), renderAssistants(summaries, page.Skipped, page.NextPageToken))
		return err
	},
}

func init() {
	assistantsCmd.Flags().IntVarP(&assistantsLimit, "limit", "l", 20, "Maximum number of assistants to list (1-100)")
	assistantsCmd.Flags().StringVar(&assistantsPageToken, "page-token", "", "Page token from a previous listing")
	rootCmd.AddCommand(assistantsCmd)
}

func validateLimit(limit int) error {
	if limit < 1 || limit > 100 {
		return fmt.Errorf("--limit must be between 1 and 100, got %d", limit)
	}
	return nil
}

// tableTheme groups the styles used by the assistants listing.
type tableTheme struct {
	header lipgloss.Style
	cell   lipgloss.Style
	border lipgloss.Style
	footer lipgloss.Style
}

func defaultTableTheme() tableTheme {
	return tableTheme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("88")),
		cell: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")),
		border: lipgloss.NewStyle().
			Foreground(lipgloss.Color("130")),
		footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("180")),
	}
}

// renderAssistants formats persona summaries as a bordered table with a
// short footer.
func renderAssistants(summaries []persona.Summary, skipped int, nextPageToken string) string {
	theme := defaultTableTheme()
	if len(summaries) == 0 {
		return theme.footer.Render("No persona assistants found.")
	}

	rows := make([][]string, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, []string{
			summary.ID,
			summary.Name,
			dashIfEmpty(summary.Personality),
			dashIfEmpty(summary.Difficulty),
			dashIfEmpty(summary.VoiceModel),
			summary.CreationDate.UTC().Format("2006-01-02"),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(theme.border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.header
			}
			return theme.cell
		}).
		Headers("ID", "NAME", "PERSONALITY", "DIFFICULTY", "VOICE", "CREATED").
		Rows(rows...)

	footer := []string{fmt.Sprintf("%d assistant(s)", len(summaries))}
	if skipped > 0 {
		footer = append(footer, fmt.Sprintf("%d skipped", skipped))
	}
	if nextPageToken != "" {
		footer = append(footer, "next page: "+nextPageToken)
	}

	return t.String() + "\n" + theme.footer.Render(strings.Join(footer, " · "))
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
