package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/jfile/internal/cli/output"
	"github.com/marmos91/jfile/pkg/jfile"
	"github.com/spf13/cobra"
)

var fsckJournalDir string

var fsckCmd = &cobra.Command{
	Use:   "fsck <file>",
	Short: "Check and repair a file's journal",
	Long: `Check the journal of a file and finish whatever a crash interrupted.

Committed records are re-applied to the data file and removed; records a
crash left unfinished or unreadable are counted and discarded. The pass
is safe to repeat.

Examples:
  # Check the default journal location
  jfile fsck data.db

  # Check a journal kept elsewhere
  jfile fsck data.db --journal /backup/journals/data.db.jfile`,
	Args: cobra.ExactArgs(1),
	RunE: runFsck,
}

func init() {
	fsckCmd.Flags().StringVar(&fsckJournalDir, "journal", "",
		"Journal directory (default: hidden sibling of the data file)")
}

func runFsck(cmd *cobra.Command, args []string) error {
	name := args[0]

	jdir := fsckJournalDir
	if jdir == "" {
		jdir = cfg.Journal.Dir
	}

	res, err := jfile.Fsck(name, jdir)
	switch {
	case errors.Is(err, jfile.ErrNoJournal):
		fmt.Printf("%s: no journal, nothing to do\n", name)
		return nil
	case errors.Is(err, jfile.ErrNoFile):
		return fmt.Errorf("%s: no such file", name)
	case err != nil:
		return err
	}

	table := output.NewTableData("CLASS", "COUNT")
	table.AddRow("total", strconv.Itoa(res.Total))
	table.AddRow("reapplied", strconv.Itoa(res.Reapplied))
	table.AddRow("in progress", strconv.Itoa(res.InProgress))
	table.AddRow("broken", strconv.Itoa(res.Broken))
	table.AddRow("corrupt", strconv.Itoa(res.Corrupt))
	table.AddRow("invalid", strconv.Itoa(res.Invalid))
	table.AddRow("apply errors", strconv.Itoa(res.ApplyError))
	if err := table.Print(os.Stdout); err != nil {
		return err
	}

	if res.ApplyError > 0 {
		return fmt.Errorf("%d records could not be re-applied", res.ApplyError)
	}
	return nil
}
