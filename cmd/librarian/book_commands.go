package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"librarian/internal/api"
	"librarian/internal/config"
	"librarian/internal/logging"
	"librarian/internal/profile"
	"librarian/internal/queue"
	"librarian/internal/services"
)

func newBookCommand(ctx *commandContext) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Inspect tracked books",
	}

	bookCmd.AddCommand(newBookListCommand(ctx))
	bookCmd.AddCommand(newBookShowCommand(ctx))
	bookCmd.AddCommand(newLockCommand(ctx))

	return bookCmd
}

func newBookListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked books",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				books, err := store.ListBooks(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.BookListResponse{Books: api.FromBooks(books)})
				}
				out := cmd.OutOrStdout()
				if len(books) == 0 {
					fmt.Fprintln(out, "No books found")
					return nil
				}
				rows := make([][]string, 0, len(books))
				for _, b := range books {
					rows = append(rows, []string{
						fmt.Sprintf("%d", b.ID),
						string(b.Status),
						itoa(b.Confidence),
						b.CurrentAuthor,
						b.CurrentTitle,
						b.Path,
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Status", "Conf", "Author", "Title", "Path"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Only list books with this status (repeatable)")
	return cmd
}

func newBookShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show BOOK_ID",
		Short: "Show a book, its profile and fix history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				if ctx.jsonOutput() {
					resp, err := api.NewQueueService(store).Describe(cmd.Context(), id)
					if err != nil {
						return err
					}
					if resp == nil {
						return fmt.Errorf("book %d not found", id)
					}
					return writeJSON(cmd, resp)
				}
				book, err := store.GetBook(cmd.Context(), id)
				if err != nil {
					if errors.Is(err, services.ErrNotFound) {
						return fmt.Errorf("book %d not found", id)
					}
					return err
				}
				history, err := store.ListHistory(cmd.Context(), id, 10)
				if err != nil {
					return err
				}
				return printBook(cmd, book, history)
			})
		},
	}
}

func printBook(cmd *cobra.Command, book *queue.Book, history []*queue.HistoryEntry) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(fmt.Sprintf("Book %d", book.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	status := string(book.Status)
	if book.Reason != "" {
		status += " (" + book.Reason + ")"
	}
	fmt.Fprintln(out, renderStatusLine("Status", bookStatusKind(book.Status), status, colorize))
	fmt.Fprintln(out, renderStatusLine("Path", statusInfo, book.Path, colorize))
	fmt.Fprintln(out, renderStatusLine("Author", statusInfo, book.CurrentAuthor, colorize))
	fmt.Fprintln(out, renderStatusLine("Title", statusInfo, book.CurrentTitle, colorize))
	fmt.Fprintln(out, renderStatusLine("Confidence", statusInfo, itoa(book.Confidence), colorize))
	fmt.Fprintln(out, renderStatusLine("Layer reached", statusInfo, book.MaxLayerReached.String(), colorize))
	fmt.Fprintln(out, renderStatusLine("Attempts", statusInfo, itoa(book.AttemptCount), colorize))
	fmt.Fprintln(out, renderStatusLine("Locked", statusInfo, yesNo(book.UserLocked), colorize))

	p, err := book.Profile()
	if err != nil {
		return err
	}
	if p != nil {
		fmt.Fprintln(out)
		fmt.Fprint(out, profileTable(out, p))
	}
	if len(history) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, historyTable(out, history))
	}
	return nil
}

func newLockCommand(ctx *commandContext) *cobra.Command {
	var values = map[profile.Field]*string{}
	cmd := &cobra.Command{
		Use:   "lock BOOK_ID",
		Short: "Pin field values for a book and stop automatic identification",
		Long:  "Records the given values as user observations at full confidence, locks those fields and takes the book off the queue.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			pinned := make(map[profile.Field]string)
			for f, v := range values {
				if s := strings.TrimSpace(*v); s != "" {
					pinned[f] = s
				}
			}
			if len(pinned) == 0 {
				return errors.New("nothing to lock: pass at least one of --author, --title, --narrator, --series, --series-num, --year")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				existing, err := store.LoadProfile(cmd.Context(), id)
				if err != nil {
					if errors.Is(err, services.ErrNotFound) {
						return fmt.Errorf("book %d not found", id)
					}
					return err
				}
				logger := ctx.loggerValue()
				engine := profile.NewEngine(profile.ConfigFromSettings(cfg.Consensus), logger)
				locked := engine.Lock(existing, pinned)
				if err := store.LockBook(cmd.Context(), id, locked); err != nil {
					return err
				}
				logger.Info("book locked",
					logging.Int64("book_id", id),
					logging.Int("fields", len(pinned)),
				)
				if ctx.jsonOutput() {
					return writeJSON(cmd, locked)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Locked book %d\n", id)
				fmt.Fprint(out, profileTable(out, locked))
				return nil
			})
		},
	}
	flags := []struct {
		field profile.Field
		name  string
	}{
		{profile.FieldAuthor, "author"},
		{profile.FieldTitle, "title"},
		{profile.FieldNarrator, "narrator"},
		{profile.FieldSeries, "series"},
		{profile.FieldSeriesNum, "series-num"},
		{profile.FieldYear, "year"},
	}
	for _, f := range flags {
		v := new(string)
		values[f.field] = v
		cmd.Flags().StringVar(v, f.name, "", "Value to pin for "+string(f.field))
	}
	return cmd
}
