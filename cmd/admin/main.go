package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andy6609/roomcast/internal/admin"
	"github.com/andy6609/roomcast/internal/config"
	"github.com/andy6609/roomcast/internal/logging"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

const usage = `roomcast-admin - queue moderation actions for a running roomcast server

Usage:
  roomcast-admin <command> [options]

Commands:
  kick <username> [reason...]       Send a player back to the lobby
  move <username> <room>            Force a player into another room
  announce [-room id] <text...>     Message one room, or everyone
  list [-all]                       Show pending (or all) queued actions
  cleanup [-retention d]            Purge executed actions older than retention

Every command accepts -queue <path> (default $ADMIN_QUEUE_PATH).
`

// now is replaced in tests.
var now = time.Now

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 1
	}

	switch args[1] {
	case "kick":
		return runKick(args[2:], stdout, stderr)
	case "move":
		return runMove(args[2:], stdout, stderr)
	case "announce":
		return runAnnounce(args[2:], stdout, stderr)
	case "list":
		return runList(args[2:], stdout, stderr)
	case "cleanup":
		return runCleanup(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}

// command bundles the flag set and queue every subcommand shares.
type command struct {
	fs        *flag.FlagSet
	queuePath string
	stderr    io.Writer
}

func newCommand(name, synopsis string, stderr io.Writer) *command {
	c := &command{fs: flag.NewFlagSet(name, flag.ContinueOnError), stderr: stderr}
	c.fs.SetOutput(stderr)
	c.fs.StringVar(&c.queuePath, "queue", "", "Path to the admin action queue (default: $ADMIN_QUEUE_PATH)")
	c.fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: roomcast-admin %s\n\nOptions:\n", synopsis)
		c.fs.PrintDefaults()
	}
	return c
}

// parse returns -1 to continue, otherwise the exit code.
func (c *command) parse(args []string) int {
	if err := c.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	return -1
}

func (c *command) open() (*admin.FileQueue, *zap.Logger, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, cfg, err
	}
	if c.queuePath != "" {
		cfg.QueuePath = c.queuePath
	}
	logger, err := logging.NewConsole(cfg.LogLevel, c.stderr)
	if err != nil {
		return nil, nil, cfg, err
	}
	q, err := admin.NewFileQueue(cfg.QueuePath, logger)
	if err != nil {
		return nil, logger, cfg, err
	}
	return q, logger, cfg, nil
}

func (c *command) enqueue(a admin.Action, err error, stdout io.Writer) int {
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	q, logger, _, err := c.open()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	defer logging.Sync(logger)

	if err := q.Append(a); err != nil {
		logger.Error("enqueue failed", zap.String("action", a.ID), zap.Error(err))
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	logger.Debug("action queued", zap.String("action", a.ID), zap.String("type", string(a.Type)), zap.String("queue", q.Path()))
	fmt.Fprintln(stdout, a.ID)
	return 0
}

func runKick(args []string, stdout, stderr io.Writer) int {
	c := newCommand("kick", "kick [options] <username> [reason...]", stderr)
	if code := c.parse(args); code >= 0 {
		return code
	}
	if c.fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: username is required")
		c.fs.Usage()
		return 1
	}
	a, err := admin.NewKick(c.fs.Arg(0), strings.Join(c.fs.Args()[1:], " "), now())
	return c.enqueue(a, err, stdout)
}

func runMove(args []string, stdout, stderr io.Writer) int {
	c := newCommand("move", "move [options] <username> <room>", stderr)
	if code := c.parse(args); code >= 0 {
		return code
	}
	if c.fs.NArg() != 2 {
		fmt.Fprintln(stderr, "Error: username and room are required")
		c.fs.Usage()
		return 1
	}
	a, err := admin.NewMovePlayer(c.fs.Arg(0), c.fs.Arg(1), now())
	return c.enqueue(a, err, stdout)
}

func runAnnounce(args []string, stdout, stderr io.Writer) int {
	c := newCommand("announce", "announce [options] <text...>", stderr)
	var room string
	c.fs.StringVar(&room, "room", "", "Room to message (default: every room)")
	if code := c.parse(args); code >= 0 {
		return code
	}
	if c.fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: text is required")
		c.fs.Usage()
		return 1
	}
	a, err := admin.NewAnnounce(room, strings.Join(c.fs.Args(), " "), now())
	return c.enqueue(a, err, stdout)
}

func runList(args []string, stdout, stderr io.Writer) int {
	c := newCommand("list", "list [options]", stderr)
	var all bool
	c.fs.BoolVar(&all, "all", false, "Include executed actions")
	if code := c.parse(args); code >= 0 {
		return code
	}
	q, logger, _, err := c.open()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer logging.Sync(logger)

	var actions []admin.Action
	if all {
		actions, err = q.All()
	} else {
		actions, err = q.Pending()
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	table := tablewriter.NewWriter(stdout)
	table.SetHeader([]string{"ID", "Type", "User", "Room", "Reason", "Created", "Executed"})
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
	for _, a := range actions {
		table.Append([]string{
			a.ID,
			string(a.Type),
			a.Username,
			a.RoomID,
			a.Reason,
			a.CreatedAt.Format(time.RFC3339),
			strconv.FormatBool(a.Executed),
		})
	}
	table.Render()
	return 0
}

func runCleanup(args []string, stdout, stderr io.Writer) int {
	c := newCommand("cleanup", "cleanup [options]", stderr)
	var retention time.Duration
	c.fs.DurationVar(&retention, "retention", 0, "Keep executed actions newer than this (default: $ADMIN_RETENTION)")
	if code := c.parse(args); code >= 0 {
		return code
	}
	q, logger, cfg, err := c.open()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer logging.Sync(logger)

	if retention <= 0 {
		retention = cfg.Retention
	}
	removed, err := q.Cleanup(now(), retention)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "removed %d executed action(s)\n", removed)
	return 0
}
