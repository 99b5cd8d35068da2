package main

import (
	"chat-relay/clock"
	"chat-relay/domain"
	"chat-relay/repositories"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	// INSPECT_COLOURS colours the message type column
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Error while reading config: ", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	what := flag.String("what", "messages", "What to dump: messages or participants")
	limit := flag.Int("limit", 50, "Number of latest messages to show, 0 for all")
	flag.Parse()
	color.Enable = config.Colours

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	switch *what {
	case "participants":
		participants, err := repositories.NewParticipantRepository(db, logger, clock.Real()).List()
		if err != nil {
			log.Fatal(err)
		}
		renderParticipants(os.Stdout, participants)
	case "messages":
		messages, err := repositories.NewMessageReader(db, logger).Tail(*limit)
		if err != nil {
			log.Fatal(err)
		}
		renderMessages(os.Stdout, messages)
	default:
		log.Fatalf("unknown -what %q, expected messages or participants", *what)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func renderParticipants(w io.Writer, participants []domain.Participant) {
	table := newTable(w, "Name", "Last seen", "Unix ms")
	for _, p := range participants {
		table.Append([]string{
			p.Name,
			p.LastSeen.Format(domain.TimeLayout),
			strconv.FormatInt(p.LastSeen.UnixMilli(), 10),
		})
	}
	table.Render()
}

func renderMessages(w io.Writer, messages []domain.Message) {
	table := newTable(w, "Seq", "Time", "Type", "From", "To", "Lang", "Text")
	for _, m := range messages {
		table.Append([]string{
			strconv.FormatUint(m.Sequence, 10),
			m.Time,
			colourType(m.Type),
			m.From,
			m.To,
			m.Lang,
			m.Text,
		})
	}
	table.Render()
}

func colourType(t domain.MessageType) string {
	switch t {
	case domain.StatusMessage:
		return color.New(color.FgYellow).Render(string(t))
	case domain.PrivateMessage:
		return color.New(color.FgMagenta).Render(string(t))
	default:
		return color.New(color.FgGreen).Render(string(t))
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed relay leaves a value log that needs truncating, which read-only mode refuses.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)
			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
