package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/ternchat/tern/internal/chat"
	"github.com/ternchat/tern/internal/config"
	"github.com/ternchat/tern/internal/llm"
	"github.com/ternchat/tern/internal/secrets"
	"github.com/ternchat/tern/internal/store"
	"github.com/ternchat/tern/internal/ui"
)

var version = "dev"

func main() {
	dryRun := false
	dbPath := store.DBPath()
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v":
			fmt.Printf("tern %s\n", version)
			os.Exit(0)
		case "--dry-run":
			dryRun = true
		case "--db":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--db requires a file argument")
				os.Exit(1)
			}
			i++
			dbPath = args[i]
		case "--help", "-h":
			fmt.Println("usage: tern [--db <file>] [--dry-run] [--version]")
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			os.Exit(1)
		}
	}

	if path := os.Getenv("TERN_DEBUG"); path != "" {
		f, err := tea.LogToFile(path, "tern")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening debug log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	}

	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening conversation store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	cfg := config.Load()
	sec := secrets.NewFileStore(secrets.DefaultPath())
	db := chat.NewDB(st)

	model := ui.NewModel(db, sec, cfg)
	if dryRun {
		// Replay a canned reply instead of calling a provider.
		model.UseBackend(llm.NewScripted("This is a dry run. ", "No provider was called."),
			llm.Options{Model: "scripted"})
	}

	// Ask the terminal to grow when it is below the minimum layout size.
	const minCols, minRows = 40, 12
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		if w < minCols || h < minRows {
			cols, rows := w, h
			if cols < minCols {
				cols = minCols
			}
			if rows < minRows {
				rows = minRows
			}
			fmt.Fprintf(os.Stdout, "\x1b[8;%d;%dt", rows, cols)
		}
	}

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
