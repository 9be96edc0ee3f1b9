package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gofrs/flock"
)

// maxEntries bounds the history file; older entries are pruned on write
const maxEntries = 1000

// LogEntry represents a single hosted or joined session
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"` // "host" or "player"
	Code      string    `json:"code"`
	Players   int       `json:"players"`
	Status    string    `json:"status"` // "completed" or "failed"
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"duration_seconds"`
}

var (
	pathMu       sync.Mutex
	pathOverride string
)

// SetLogPathOverride redirects the history file, for tests. An empty string
// restores the default location.
func SetLogPathOverride(path string) {
	pathMu.Lock()
	defer pathMu.Unlock()
	pathOverride = path
}

// GetLogPath returns the path to the history log file
func GetLogPath() (string, error) {
	pathMu.Lock()
	override := pathOverride
	pathMu.Unlock()
	if override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".jumpgame")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.jsonl"), nil
}

// WriteEntry appends a log entry to the history file. A file lock keeps two
// local instances (say, a host and a joining player on one machine) from
// interleaving writes.
func WriteEntry(entry LogEntry) error {
	path, err := GetLogPath()
	if err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = petname.Generate(2, "-")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return pruneLocked(path)
}

// pruneLocked rewrites the file with only the newest maxEntries entries.
// Caller holds the lock.
func pruneLocked(path string) error {
	entries, err := loadFrom(path)
	if err != nil || len(entries) <= maxEntries {
		return err
	}
	entries = entries[:maxEntries] // loadFrom sorts newest first

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for i := len(entries) - 1; i >= 0; i-- { // keep file in append order
		data, err := json.Marshal(entries[i])
		if err != nil {
			continue
		}
		w.Write(append(data, '\n'))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadHistory reads all log entries, newest first
func LoadHistory() ([]LogEntry, error) {
	path, err := GetLogPath()
	if err != nil {
		return nil, err
	}
	return loadFrom(path)
}

func loadFrom(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, entry)
	}

	// Sort by timestamp descending (newest first)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	return entries, scanner.Err()
}

// ClearHistory removes the history file
func ClearHistory() error {
	path, err := GetLogPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// --- Display Logic ---

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	statusOKStr   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Render("COMPLETED")
	statusFailStr = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render("FAILED")

	hostStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	playerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF"))
)

// ShowHistory prints the session history table
func ShowHistory() {
	entries, err := LoadHistory()
	if err != nil {
		fmt.Printf("Error loading history: %v\n", err)
		return
	}

	if len(entries) == 0 {
		fmt.Println("No session history found.")
		return
	}

	fmt.Println("")
	fmt.Printf("%s %s %s %s %s %s\n",
		headerStyle.Width(20).Render("DATE"),
		headerStyle.Width(8).Render("ROLE"),
		headerStyle.Width(6).Render("CODE"),
		headerStyle.Width(9).Render("PLAYERS"),
		headerStyle.Width(8).Render("TIME"),
		headerStyle.Width(11).Render("STATUS"),
	)
	fmt.Println("")

	for _, e := range entries {
		ts := e.Timestamp.Format("2006-01-02 15:04")
		duration := fmt.Sprintf("%.1fs", e.Duration)
		status := statusOKStr
		if e.Status != "completed" {
			status = statusFailStr
		}
		roleStr := playerStyle.Render("PLAYER")
		if e.Role == "host" {
			roleStr = hostStyle.Render("HOST")
		}

		fmt.Printf("%s %s %s %s %s %s\n",
			rowStyle.Width(20).Render(ts),
			rowStyle.Width(8).Render(roleStr),
			rowStyle.Width(6).Render(e.Code),
			rowStyle.Width(9).Render(fmt.Sprintf("%d", e.Players)),
			rowStyle.Width(8).Render(duration),
			rowStyle.Width(11).Render(status),
		)
	}
	fmt.Println("")
}
