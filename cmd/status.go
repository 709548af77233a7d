package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/inovacc/trafficr/internal/config"
	"github.com/inovacc/trafficr/internal/journal"
	"github.com/inovacc/trafficr/internal/model"
	"github.com/inovacc/trafficr/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local archive state",
	Long: `Show, per configured repository, how many days of traffic are
archived locally, the most recent archived day, and how many records are
still waiting to be uploaded.

This is a read-only view of the local store; it never talks to GitHub or
the remote database.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type repoStatus struct {
	uid     string
	records int
	pending int
	lastDay string
	uploads int
	loadErr error
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, _ = cmd, args

	cfg, err := config.Load(config.Locate(cfgPath))
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	jnl, err := journal.Open(filepath.Join(cfg.Storage.Path, "journal.bolt"))
	if err != nil {
		return fmt.Errorf("failed to open upload journal: %w", err)
	}
	defer func() { _ = jnl.Close() }()

	statuses := make([]repoStatus, 0, len(cfg.Repositories))

	for _, repo := range cfg.Repositories {
		statuses = append(statuses, collectStatus(st, jnl, repo))
	}

	printStatusTable(statuses)

	return nil
}

func collectStatus(st store.Store, jnl *journal.Journal, repo model.RepositoryConfig) repoStatus {
	rs := repoStatus{uid: repo.UID(), lastDay: "-"}

	records, err := st.Load(repo.UID())
	if err != nil {
		rs.loadErr = err

		return rs
	}

	rs.records = len(records)
	if len(records) > 0 {
		rs.lastDay = records[len(records)-1].Day()
	}

	pending, err := st.Pending(repo.UID())
	if err != nil {
		rs.loadErr = err

		return rs
	}

	rs.pending = len(pending)

	if n, err := jnl.Count(repo.UID()); err == nil {
		rs.uploads = n
	}

	return rs
}

func printStatusTable(statuses []repoStatus) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cleanStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	maxRepo := 10
	for _, rs := range statuses {
		if len(rs.uid) > maxRepo {
			maxRepo = len(rs.uid)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout)
	_, _ = fmt.Fprintf(os.Stdout, "%s  %s  %s  %s  %s\n",
		headerStyle.Render(padRight("REPOSITORY", maxRepo)),
		headerStyle.Render(padRight("DAYS", 6)),
		headerStyle.Render(padRight("LAST", 12)),
		headerStyle.Render(padRight("PENDING", 9)),
		headerStyle.Render("UPLOADS"),
	)
	_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("-", maxRepo+40))

	for _, rs := range statuses {
		if rs.loadErr != nil {
			_, _ = fmt.Fprintf(os.Stdout, "%s  %s\n",
				padRight(rs.uid, maxRepo),
				errStyle.Render(rs.loadErr.Error()))

			continue
		}

		pendingCell := cleanStyle.Render(padRight("0", 9))
		if rs.pending > 0 {
			pendingCell = pendingStyle.Render(padRight(fmt.Sprintf("%d", rs.pending), 9))
		}

		_, _ = fmt.Fprintf(os.Stdout, "%s  %s  %s  %s  %d\n",
			padRight(rs.uid, maxRepo),
			padRight(fmt.Sprintf("%d", rs.records), 6),
			padRight(rs.lastDay, 12),
			pendingCell,
			rs.uploads,
		)
	}

	_, _ = fmt.Fprintln(os.Stdout)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}

	return s + strings.Repeat(" ", width-len(s))
}
