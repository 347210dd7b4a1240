package state

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"followback/pkg/logger"
)

// State file names. These match the names earlier deployments of the bot
// wrote, so an upgraded binary picks up an existing state directory as is.
const (
	CursorFile   = "last_checked_follower.txt"
	FollowedFile = "followers.txt"
	CounterFile  = "follower_counter.txt"
	PageFile     = "current_page.txt"
)

// Store persists the bot's sync state as plain-text files in a single
// directory. Scalar files are replaced atomically via a temp file and rename;
// the followed set is append-only. All mutation is serialized through a mutex
// so concurrent workers cannot interleave writes.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger logger.Logger
}

// NewStore creates a store rooted at dir, creating the directory if needed
func NewStore(dir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Store{dir: dir, logger: log}, nil
}

// Dir returns the state directory
func (s *Store) Dir() string {
	return s.dir
}

// Cursor returns the login of the most recently processed follower, or the
// empty string when no run has completed yet
func (s *Store) Cursor() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readScalar(CursorFile)
}

// SetCursor records the login of the last follower a follow was attempted for
func (s *Store) SetCursor(login string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeScalar(CursorFile, login); err != nil {
		return err
	}

	s.logger.DebugWithFields("cursor updated", map[string]interface{}{
		"login": login,
	})
	return nil
}

// FollowedSet returns the set of logins the bot has followed, keyed for O(1)
// membership checks. A missing file yields an empty set.
func (s *Store) FollowedSet() (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(filepath.Join(s.dir, FollowedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]bool), nil
		}
		return nil, fmt.Errorf("failed to open followed set: %w", err)
	}
	defer file.Close()

	set := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		login := strings.TrimSpace(scanner.Text())
		if login != "" {
			set[login] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read followed set: %w", err)
	}

	return set, nil
}

// AppendFollowed adds a login to the followed set. Appends are durable
// independently of the scalar files, so a crash mid-run loses at most the
// in-flight login.
func (s *Store) AppendFollowed(login string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(filepath.Join(s.dir, FollowedFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open followed set for append: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(login + "\n"); err != nil {
		return fmt.Errorf("failed to append to followed set: %w", err)
	}
	return file.Sync()
}

// Counter returns the lifetime count of successful follows
func (s *Store) Counter() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readInt(CounterFile)
}

// IncrementCounter adds delta successful follows to the lifetime counter and
// returns the new value
func (s *Store) IncrementCounter(delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.readInt(CounterFile)
	if err != nil {
		return 0, err
	}

	count += delta
	if err := s.writeScalar(CounterFile, strconv.Itoa(count)); err != nil {
		return 0, err
	}
	return count, nil
}

// CurrentPage returns the last recorded pagination page. The value is
// diagnostic only; scans always restart from page one.
func (s *Store) CurrentPage() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readInt(PageFile)
}

// SetCurrentPage records the page the scan is on, for inspection after an
// interrupted run
func (s *Store) SetCurrentPage(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeScalar(PageFile, strconv.Itoa(page))
}

// readScalar reads a single trimmed value; a missing file is the zero value
func (s *Store) readScalar(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// readInt reads a scalar file as an integer; missing or empty is zero
func (s *Store) readInt(name string) (int, error) {
	value, err := s.readScalar(name)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt value in %s: %w", name, err)
	}
	return n, nil
}

// writeScalar replaces a scalar file atomically via temp file and rename
func (s *Store) writeScalar(name, value string) error {
	path := filepath.Join(s.dir, name)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	if _, err := file.WriteString(value + "\n"); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}
