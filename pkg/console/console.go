/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package console implements the collector's interactive query shell.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/carverauto/hostwatch/pkg/logger"
	"github.com/carverauto/hostwatch/pkg/registry"
)

const (
	colorForeground = "#F8F8F2"
	colorCyan       = "#8BE9FD"
	colorGreen      = "#50FA7B"
	colorOrange     = "#FFB86C"
	colorPink       = "#FF79C6"
	colorRed        = "#FF5555"
	colorComment    = "#6272A4"

	timeLayout = "2006-01-02 15:04:05"
)

// Registry is the read side of the client registry the console queries.
type Registry interface {
	List() []registry.ClientSummary
	Detail(key string) (*registry.ClientRecord, error)
	Averages() (registry.Averages, error)
}

type styles struct {
	title, prompt, label, value, hint, notice, err lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().
			Foreground(lipgloss.Color(colorPink)).
			Bold(true),
		prompt: r.NewStyle().
			Foreground(lipgloss.Color(colorCyan)),
		label: r.NewStyle().
			Foreground(lipgloss.Color(colorComment)),
		value: r.NewStyle().
			Foreground(lipgloss.Color(colorForeground)),
		hint: r.NewStyle().
			Foreground(lipgloss.Color(colorOrange)),
		notice: r.NewStyle().
			Foreground(lipgloss.Color(colorGreen)),
		err: r.NewStyle().
			Foreground(lipgloss.Color(colorRed)).
			Bold(true),
	}
}

// Console reads commands line by line and prints registry query results.
type Console struct {
	registry Registry
	shutdown func()
	in       io.Reader
	out      io.Writer
	logger   logger.Logger
	styles   styles
}

// New returns a console over reg. shutdown is called once when the operator
// asks the collector to stop.
func New(reg Registry, shutdown func(), in io.Reader, out io.Writer, log logger.Logger) *Console {
	if shutdown == nil {
		shutdown = func() {}
	}

	if log == nil {
		log = logger.Global()
	}

	return &Console{
		registry: reg,
		shutdown: shutdown,
		in:       in,
		out:      out,
		logger:   log,
		styles:   newStyles(lipgloss.NewRenderer(out)),
	}
}

// Run serves commands until shutdown is requested, input ends or ctx is
// cancelled. The reader goroutine stays blocked on input that never arrives
// after ctx is cancelled, which only matters for stdin at process exit.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		readErr <- scanner.Err()
	}()

	c.printMenu()

	for {
		c.printPrompt()

		var (
			line string
			ok   bool
		)

		select {
		case <-ctx.Done():
			c.println("")

			return nil
		case line, ok = <-lines:
		}

		if !ok {
			c.println("")

			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("console input: %w", err)
				}
			default:
			}

			return nil
		}

		if stop := c.dispatch(ctx, line, lines); stop {
			return nil
		}
	}
}

// dispatch runs one command and reports whether the console should stop.
func (c *Console) dispatch(ctx context.Context, line string, lines <-chan string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "1", "list":
		c.list()
	case "2", "detail":
		key, ok := c.detailKey(ctx, args, lines)
		if ok {
			c.detail(key)
		}
	case "3", "averages", "avg":
		c.averages()
	case "4", "shutdown", "quit", "exit":
		c.println(c.styles.hint.Render("Shutting down collector..."))
		c.logger.Info().Msg("Shutdown requested from console")
		c.shutdown()

		return true
	case "help", "?", "h":
		c.printMenu()
	default:
		c.println(c.styles.err.Render(fmt.Sprintf("Invalid option %q.", fields[0])) +
			" " + c.styles.label.Render("Type help for the list of commands."))
	}

	return false
}

// detailKey takes the key from args, or shows the connected clients and asks
// for it on the next line.
func (c *Console) detailKey(ctx context.Context, args []string, lines <-chan string) (string, bool) {
	if len(args) > 0 {
		return args[0], true
	}

	c.list()
	c.print(c.styles.prompt.Render("Client IP: "))

	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		key := strings.TrimSpace(line)
		if !ok || key == "" {
			c.println(c.styles.err.Render("No client IP given."))

			return "", false
		}

		return key, true
	}
}

func (c *Console) list() {
	clients := c.registry.List()
	if len(clients) == 0 {
		c.println(c.styles.notice.Render("No clients connected."))

		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(c.styles.label).
		Headers("IP", "HOST", "LAST UPDATE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return c.styles.title.Padding(0, 1)
			}

			return c.styles.value.Padding(0, 1)
		})

	for _, s := range clients {
		t.Row(s.Key, s.Host, s.LastUpdatedAt.Local().Format(timeLayout))
	}

	c.println(t.Render())
	c.println(c.styles.label.Render(fmt.Sprintf("%d client(s)", len(clients))))
}

func (c *Console) detail(key string) {
	rec, err := c.registry.Detail(key)
	if errors.Is(err, registry.ErrNotFound) {
		c.println(c.styles.err.Render(fmt.Sprintf("No client registered for %s.", key)))

		return
	}

	if err != nil {
		c.println(c.styles.err.Render(err.Error()))

		return
	}

	snap := rec.Snapshot

	c.println(c.styles.title.Render(fmt.Sprintf("%s (%s)", snap.Host, rec.Key)))
	c.field("CPUs", fmt.Sprintf("%d logical, %d physical", snap.CPULogical, snap.CPUPhysical))
	c.field("Free memory", fmt.Sprintf("%d GiB", snap.MemoryFreeGiB))
	c.field("Free disk", fmt.Sprintf("%d GiB", snap.DiskFreeGiB))

	names := slices.Sorted(maps.Keys(snap.ActiveInterfaces))
	if len(names) == 0 {
		c.field("Active interfaces", "none")
	} else {
		c.field("Active interfaces", "")

		for _, name := range names {
			c.println("    " + c.styles.value.Render(name+": "+strings.Join(snap.ActiveInterfaces[name], ", ")))
		}
	}

	c.field("Disabled interfaces", joinOrNone(snap.DisabledInterfaces))
	c.field("TCP listening", joinPorts(snap.TCPListenPorts))
	c.field("UDP listening", joinPorts(snap.UDPListenPorts))
	c.field("Captured", formatTime(snap.CapturedAt))
	c.field("Registered", formatTime(rec.RegisteredAt))
	c.field("Last update", formatTime(rec.LastUpdatedAt))
}

func (c *Console) averages() {
	avg, err := c.registry.Averages()
	if errors.Is(err, registry.ErrEmptyRegistry) {
		c.println(c.styles.notice.Render("No clients connected; nothing to average."))

		return
	}

	if err != nil {
		c.println(c.styles.err.Render(err.Error()))

		return
	}

	c.println(c.styles.title.Render(fmt.Sprintf("Averages over %d client(s)", avg.Count)))
	c.field("Physical CPUs", fmt.Sprintf("%.1f", avg.CPUPhysical))
	c.field("Free memory", fmt.Sprintf("%.1f GiB", avg.MemoryFreeGiB))
	c.field("Free disk", fmt.Sprintf("%.1f GiB", avg.DiskFreeGiB))
}

func (c *Console) printMenu() {
	c.println(c.styles.title.Render("hostwatch collector"))
	c.println(c.styles.hint.Render("  1, list") + c.styles.label.Render("            connected clients"))
	c.println(c.styles.hint.Render("  2, detail <ip>") + c.styles.label.Render("     full snapshot of one client"))
	c.println(c.styles.hint.Render("  3, averages") + c.styles.label.Render("        fleet averages"))
	c.println(c.styles.hint.Render("  4, shutdown") + c.styles.label.Render("        stop the collector"))
	c.println(c.styles.hint.Render("  help") + c.styles.label.Render("               this menu"))
}

func (c *Console) printPrompt() {
	c.print(c.styles.prompt.Render("> "))
}

func (c *Console) field(label, value string) {
	c.println("  " + c.styles.label.Render(label+":") + " " + c.styles.value.Render(value))
}

func (c *Console) print(s string) {
	if _, err := io.WriteString(c.out, s); err != nil {
		c.logger.Debug().Err(err).Msg("Console write failed")
	}
}

func (c *Console) println(s string) {
	c.print(s + "\n")
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}

	return strings.Join(items, ", ")
}

func joinPorts(ports []int) string {
	items := make([]string, len(ports))
	for i, p := range ports {
		items[i] = strconv.Itoa(p)
	}

	return joinOrNone(items)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	return t.Local().Format(timeLayout)
}
