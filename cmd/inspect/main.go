// Command inspect dumps the message log of a conversation from BadgerDB
// and optionally runs a full-text query against the bluge index.
// Read-only; safe to run while the engine holds the database lock.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"duplex/domain"
	"duplex/repositories"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	BlugeFilepath  string `envconfig:"BLUGE_FILEPATH"`
}

func main() {
	conversation := flag.String("conversation", "", "Conversation id to dump")
	search := flag.String("search", "", "Full-text query against the message index")
	limit := flag.Int("limit", 50, "Maximum messages to list")
	flag.Parse()

	if *conversation == "" {
		log.Fatal("missing -conversation")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	db, err := openDB(cfg.BadgerFilepath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := repositories.NewStore(db, logger, limit)
	conversationID := domain.ConversationID(*conversation)

	if *search != "" {
		if cfg.BlugeFilepath == "" {
			log.Fatal("BLUGE_FILEPATH is required for -search")
		}
		runSearch(cfg.BlugeFilepath, logger, conversationID, *search)
		return
	}

	messages, cursor, err := store.MessagesFor(context.Background(), conversationID, nil)
	if err != nil {
		log.Fatalf("Failed to list messages: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Message ID", "Sender", "Type", "Delivered", "Read", "Content"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetTablePadding("\t")

	for _, m := range messages {
		table.Append([]string{
			m.CreatedAt.Format("15:04:05"),
			m.ID.String()[:8],
			m.SenderID,
			string(m.Type),
			strings.Join(receiptUsers(m.DeliveredTo), ","),
			strings.Join(receiptUsers(m.ReadBy), ","),
			m.Content,
		})
	}
	table.Render()

	color.Green.Printf("\n%d message(s)", len(messages))
	if cursor != nil && *cursor != "" {
		color.Gray.Printf("  next cursor: %s", *cursor)
	}
	fmt.Println()
}

func receiptUsers(receipts []domain.Receipt) []string {
	return lo.Map(receipts, func(r domain.Receipt, _ int) string { return r.UserID })
}

func runSearch(blugePath string, logger *slog.Logger, conversationID domain.ConversationID, query string) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(blugePath))
	if err != nil {
		log.Fatalf("Failed to open bluge index: %v", err)
	}
	defer writer.Close()

	index := repositories.NewMessageIndex(writer, logger)
	hits, total, err := index.SearchPaginated(context.Background(), query, conversationID, 0)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	for _, hit := range hits {
		color.Cyan.Printf("%s  ", hit.MessageID.String()[:8])
		fmt.Printf("%s: %s\n", hit.SenderID, hit.Content)
	}
	color.Green.Printf("\n%d match(es)\n", total)
}

// openDB opens badger read-only; BypassLockGuard allows opening while the
// engine process holds the lock.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
