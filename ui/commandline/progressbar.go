// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI tools for the command line: a progress bar
// with a table of statistics, and plain tables for reports.
package commandline

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// StatFn is any function that will give extra values to display along the progress bar.
// It is called at each time the progress bar is updated, and it should return a name and the current value.
type StatFn func() (name, value string)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// maxUpdateFrequency is the time between updates to the commandline display of stats.
const maxUpdateFrequency = time.Millisecond * 200

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// ProgressBar displays the progress of a known number of items, with a table of statistics above it.
//
// Add can be called concurrently: updates are queued and drawn asynchronously, so slow terminals
// don't slow down the work being reported.
type ProgressBar struct {
	output io.Writer
	total  int
	start  time.Time
	stats  []StatFn

	bar           *progressbar.ProgressBar
	termenv       *termenv.Output
	statsStyle    lipgloss.Style
	statsTable    *lgtable.Table
	isFirstOutput bool

	updates     chan int
	updatesDone sync.WaitGroup
	finishOnce  sync.Once
}

// NewProgressBar creates and displays (on stdout) a progress bar for total items.
// The optional stats are displayed in a table above the bar on every update.
func NewProgressBar(total int, description string, stats ...StatFn) *ProgressBar {
	return newProgressBar(os.Stdout, total, description, stats...)
}

func newProgressBar(output io.Writer, total int, description string, stats ...StatFn) *ProgressBar {
	pBar := &ProgressBar{
		output:        output,
		total:         total,
		start:         time.Now(),
		stats:         stats,
		termenv:       termenv.NewOutput(output),
		statsStyle:    lipgloss.NewStyle().PaddingLeft(8),
		isFirstOutput: true,
		updates:       make(chan int, 1000), // Large buffer so workers are not blocked.
	}
	pBar.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(fmt.Sprintf("%8s [bold]", description)),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("examples"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(output),
	)
	pBar.statsTable = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	pBar.updatesDone.Add(1)
	go pBar.drawLoop()
	return pBar
}

// Add reports that amount items were processed. It is safe for concurrent use, but must not be
// called after Finish.
func (pBar *ProgressBar) Add(amount int) {
	pBar.updates <- amount
}

// Finish waits for pending updates to be drawn and moves the cursor past the progress bar.
// It can be called more than once.
func (pBar *ProgressBar) Finish() {
	pBar.finishOnce.Do(func() {
		close(pBar.updates)
		pBar.updatesDone.Wait()
		pBar.termenv.ShowCursor()
		_, _ = fmt.Fprintln(pBar.output)
	})
}

func (pBar *ProgressBar) drawLoop() {
	defer pBar.updatesDone.Done()
	var count int
	for amount := range pBar.updates {
		// Exhaust the updates in the buffer:
	exhaust:
		for {
			select {
			case more, ok := <-pBar.updates:
				if !ok {
					break exhaust
				}
				amount += more
			default:
				break exhaust
			}
		}
		count += amount

		// Create the table to be printed.
		elapsed := time.Since(pBar.start)
		pBar.statsTable.Data(lgtable.NewStringData())
		pBar.statsTable.Row("Processed", fmt.Sprintf("%s of %s", humanize.Comma(int64(count)), humanize.Comma(int64(pBar.total))))
		pBar.statsTable.Row("Elapsed", FormatDuration(elapsed))
		for _, stat := range pBar.stats {
			name, value := stat()
			pBar.statsTable.Row(name, value)
		}

		// For command-line, we clear the previous lines that will be overwritten.
		pBar.termenv.HideCursor()
		if !pBar.isFirstOutput {
			numLinesToBackup := 2 + len(pBar.stats) + 2 + 2
			pBar.termenv.CursorPrevLine(numLinesToBackup)
		}
		pBar.isFirstOutput = false

		// Print update.
		_, _ = fmt.Fprintln(pBar.output, pBar.statsStyle.Render(pBar.statsTable.String()))
		_ = pBar.bar.Add(amount) // Prints progress bar line.
		_, _ = fmt.Fprintln(pBar.output)
		pBar.termenv.ShowCursor()
		time.Sleep(maxUpdateFrequency)
	}
}
