package cli

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/decl"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past emit runs",
	Long: `Lists emit runs recorded in the history log: when the document was
produced, by whom, in which workspace, and the document checksum.
History entries never feed back into the pipeline.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "show only the most recent N entries (0 = all)")
}

// HistoryEntry records one successful emit run.
type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Operation string `json:"operation"`
	User      string `json:"user"`
	Workspace string `json:"workspace"`
	Checksum  string `json:"checksum"`
	Resources int    `json:"resources"`
}

func historyLogPath() string {
	return filepath.Join(groundplanDir, "history.log")
}

// appendHistory records a completed run. Logging failures never block
// the operation itself.
func appendHistory(operation string, doc *decl.Document) {
	entry := HistoryEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Operation: operation,
		User:      currentUser(),
		Workspace: currentWorkspace(),
		Checksum:  documentChecksum(doc),
		Resources: len(doc.Resources),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	if err := os.MkdirAll(groundplanDir, 0755); err != nil {
		return
	}
	f, err := os.OpenFile(historyLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	f.Write(append(data, '\n'))
}

// documentChecksum hashes the canonical JSON encoding, so two identical
// runs record identical checksums.
func documentChecksum(doc *decl.Document) string {
	data, err := doc.EncodeJSON()
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}

func readHistory() ([]HistoryEntry, error) {
	f, err := os.Open(historyLogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history log: %w", err)
	}
	defer f.Close()

	var entries []HistoryEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Skip corrupt lines rather than losing the whole log.
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history log: %w", err)
	}
	return entries, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	entries, err := readHistory()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No history recorded.")
		return nil
	}

	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[len(entries)-historyLimit:]
	}

	for _, e := range entries {
		checksum := e.Checksum
		if len(checksum) > 12 {
			checksum = checksum[:12]
		}
		fmt.Printf("%s  %-8s  %-12s  %s  %d resource(s)  by %s\n",
			e.Timestamp, e.Operation, e.Workspace, checksum, e.Resources, e.User)
	}
	return nil
}
