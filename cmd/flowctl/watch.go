package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/pkg/checkpoint"
)

var watchRepoRoot string

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Tail a run directory's trace.jsonl as the scenario executes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRepoRoot, "repo-root", "", "repository root (defaults to the working directory)")
	rootCmd.AddCommand(watchCmd)
}

// runWatch follows a run's trace.jsonl file, printing newly appended
// lines as fsnotify reports writes, until metadata.json reports a
// terminal status or the process receives an interrupt. Grounded on
// gh-aw's pkg/cli/compile_watch.go fsnotify setup, retargeted from
// recompiling workflow files to tailing one append-only log.
func runWatch(cmd *cobra.Command, args []string) error {
	repoRoot := repoRootOrWD(watchRepoRoot)
	runDir := filepath.Join(repoRoot, ".reports", "runs", args[0])
	tracePath := filepath.Join(runDir, "trace.jsonl")

	if _, err := os.Stat(runDir); err != nil {
		return fmt.Errorf("run directory not found: %s", runDir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(runDir); err != nil {
		return fmt.Errorf("watch %s: %w", runDir, err)
	}

	f, offset, err := openAtEnd(tracePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("watching %s (ctrl-c to stop)\n", runDir)
	for {
		select {
		case <-sigCh:
			return nil
		case err := <-watcher.Errors:
			if err != nil {
				fmt.Fprintln(os.Stderr, "watch error:", err)
			}
		case ev := <-watcher.Events:
			if filepath.Base(ev.Name) == "trace.jsonl" && (ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				if f == nil {
					f, offset, err = openAtEnd(tracePath)
					if err != nil {
						continue
					}
				}
				offset = drainNewLines(f, offset)
			}
			if filepath.Base(ev.Name) == "metadata.json" && ev.Op&fsnotify.Write != 0 {
				if terminal, status := checkTerminal(runDir); terminal {
					if f != nil {
						drainNewLines(f, offset)
						f.Close()
					}
					fmt.Printf("run finished: %s\n", status)
					return nil
				}
			}
		}
	}
}

func openAtEnd(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// drainNewLines reads any bytes appended since offset and prints them,
// returning the new offset.
func drainNewLines(f *os.File, offset int64) int64 {
	info, err := f.Stat()
	if err != nil || info.Size() <= offset {
		return offset
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return info.Size()
}

func checkTerminal(runDir string) (bool, string) {
	data, err := os.ReadFile(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return false, ""
	}
	var meta checkpoint.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return false, ""
	}
	return meta.Status == "completed" || meta.Status == "failed", meta.Status
}
