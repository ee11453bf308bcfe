// Package cli implements the itemctl command line: item CRUD against a
// running gateway, the event feed, and live watch/mirror modes.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/itemgrid/itemgrid/pkg/client"
	"github.com/itemgrid/itemgrid/pkg/collection"
)

// Options carry root-flag settings into subcommands.
type Options struct {
	BaseURL   string
	Resource  string
	AuthToken string
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0
	case "completion":
		return doCompletion(a)
	}

	c, err := client.New(client.Config{
		BaseURL:   opt.BaseURL,
		Resource:  opt.Resource,
		AuthToken: opt.AuthToken,
	})
	if err != nil {
		fail(err.Error())
		return 2
	}

	switch cmd {
	case "list", "ls":
		return doList(c)

	case "get":
		if len(a) != 1 {
			fail("usage: itemctl get <id>")
			return 2
		}
		return doGet(c, a[0])

	case "create":
		attrs, code := parseAttributes(a, "create")
		if code != 0 {
			return code
		}
		return doCreate(c, attrs)

	case "update":
		if len(a) < 1 {
			fail("usage: itemctl update <id> [key=value...]")
			return 2
		}
		attrs, code := parseAttributes(a[1:], "update")
		if code != 0 {
			return code
		}
		return doUpdate(c, a[0], attrs)

	case "delete", "rm":
		if len(a) != 1 {
			fail("usage: itemctl delete <id>")
			return 2
		}
		return doDelete(c, a[0])

	case "events":
		limit := 0
		if len(a) == 1 {
			n, err := strconv.Atoi(a[0])
			if err != nil || n < 0 {
				fail("events: not a limit: " + a[0])
				return 2
			}
			limit = n
		} else if len(a) > 1 {
			fail("usage: itemctl events [limit]")
			return 2
		}
		return doEvents(c, limit)

	case "watch":
		return doWatch(c)

	case "mirror":
		return doMirror(c)
	}

	fail("unknown subcommand: " + cmd)
	fmt.Fprintln(os.Stderr)
	PrintHelp()
	return 2
}

// PrintHelp writes usage to stdout.
func PrintHelp() {
	fmt.Printf(`itemctl - itemgrid gateway client

Usage:
  itemctl [flags] <subcommand> [args]

Subcommands:
  list                       List every item
  get <id>                   Show one item
  create [key=value...]      Create an item from key=value attributes
  update <id> [key=value...] Replace an item's attributes
  delete <id>                Delete an item
  events [limit]             Show recent change events
  watch                      Stream change events until interrupted
  mirror                     Keep a live local copy, printing each change
  completion <bash|zsh>      Print a shell completion script

Flags:
  -url <base>        Gateway base URL (default http://localhost:8080, env ITEMGRID_URL)
  -resource <name>   Resource path segment (default items)
  -token <jwt>       Bearer token (env ITEMGRID_TOKEN)

Values in key=value pairs parse as JSON when possible, so count=3 is a
number and done=true a boolean; anything else is a string.
`)
}

func parseAttributes(args []string, cmd string) (map[string]any, int) {
	attrs := map[string]any{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			fail(cmd + ": expected key=value, got " + arg)
			return nil, 2
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		attrs[key] = v
	}
	return attrs, 0
}

func doList(c *client.Client) int {
	items, err := c.List(context.Background())
	if err != nil {
		fail("list: " + err.Error())
		return 1
	}
	if len(items) == 0 {
		fmt.Println("no items")
		return 0
	}
	for _, it := range items {
		fmt.Println(formatItem(it))
	}
	return 0
}

func doGet(c *client.Client, id string) int {
	it, err := c.Get(context.Background(), id)
	if err != nil {
		fail("get: " + err.Error())
		return 1
	}
	fmt.Println(formatItem(*it))
	return 0
}

func doCreate(c *client.Client, attrs map[string]any) int {
	created, err := c.Create(context.Background(), attrs)
	if err != nil {
		fail("create: " + err.Error())
		return 1
	}
	fmt.Println("created", created.ID)
	return 0
}

func doUpdate(c *client.Client, id string, attrs map[string]any) int {
	updated, err := c.Update(context.Background(), id, attrs)
	if err != nil {
		fail("update: " + err.Error())
		return 1
	}
	fmt.Println("updated", updated.ID)
	return 0
}

func doDelete(c *client.Client, id string) int {
	resp, err := c.Delete(context.Background(), id)
	if err != nil {
		fail("delete: " + err.Error())
		return 1
	}
	fmt.Printf("deleted %s (%d)\n", id, resp.StatusCode)
	return 0
}

func doEvents(c *client.Client, limit int) int {
	events, err := c.Events(context.Background(), limit, "")
	if err != nil {
		fail("events: " + err.Error())
		return 1
	}
	if len(events) == 0 {
		fmt.Println("no events")
		return 0
	}
	for _, ev := range events {
		fmt.Println(formatEvent(ev))
	}
	return 0
}

func doWatch(c *client.Client) int {
	ctx, stop := signalContext()
	defer stop()

	err := c.Watch(ctx, client.WatchHandlers{
		OnAll: func(ev client.Event) {
			fmt.Println(formatEvent(ev))
		},
	})
	if err != nil && ctx.Err() == nil {
		fail("watch: " + err.Error())
		return 1
	}
	return 0
}

func doMirror(c *client.Client) int {
	ctx, stop := signalContext()
	defer stop()

	m, err := collection.NewMirror(c, nil)
	if err != nil {
		fail("mirror: " + err.Error())
		return 1
	}
	if err := m.Load(ctx); err != nil {
		fail("mirror: load: " + err.Error())
		return 1
	}

	printSnapshot(m.Collection().Items(), m.Collection().Seq())
	unsubscribe := m.Collection().Subscribe(func(ch collection.Change) {
		printSnapshot(ch.Items, ch.Seq)
	})
	defer unsubscribe()

	if err := m.Follow(ctx); err != nil && ctx.Err() == nil {
		fail("mirror: " + err.Error())
		return 1
	}
	return 0
}

func printSnapshot(items []client.Item, seq uint64) {
	fmt.Printf("-- seq %d, %d item(s)\n", seq, len(items))
	for _, it := range items {
		fmt.Println(formatItem(it))
	}
}

func formatItem(it client.Item) string {
	keys := make([]string, 0, len(it.Attributes))
	for k := range it.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(it.ID)
	for _, k := range keys {
		data, err := json.Marshal(it.Attributes[k])
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "  %s=%s", k, data)
	}
	return b.String()
}

func formatEvent(ev client.Event) string {
	line := fmt.Sprintf("%d  %s  %s", ev.Seq, ev.Type, ev.ItemID)
	if ev.Item != nil {
		line += "  " + formatItem(*ev.Item)
	}
	return line
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "itemctl: "+msg)
}
