package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"galleries/internal/domain"
	"galleries/internal/presenter"
)

// ─────────────────────────────────────────────────────────────
// Folder Service — browse generated files in a local directory
// ─────────────────────────────────────────────────────────────

var ErrNoFolder = errors.New("no folder open")

// DomainExtensions lists the file extensions shown for each content domain.
var DomainExtensions = map[string][]string{
	"image":   {".png", ".jpg", ".jpeg", ".webp", ".gif"},
	"svg":     {".svg"},
	"threejs": {".svg"},
	"text":    {".txt", ".md"},
	"ui":      {".html"},
	"shader":  {".glsl", ".frag"},
	"p5":      {".js"},
}

const folderDebounce = 300 * time.Millisecond

// FolderFile is one file of the open folder with its content encoded the
// way the renderer of its domain expects.
type FolderFile struct {
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
	ModTime time.Time       `json:"modTime"`
}

// FolderService lists, watches and curates the files of one directory.
type FolderService struct {
	feedback domain.FeedbackStore
	grid     *presenter.Presenter
	emitter  EventEmitter

	mu        sync.Mutex
	dir       string
	domain    string
	concept   string
	outputDir string
	selected  string

	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// NewFolderService creates a FolderService.
func NewFolderService(feedback domain.FeedbackStore, grid *presenter.Presenter, emitter EventEmitter) *FolderService {
	return &FolderService{feedback: feedback, grid: grid, emitter: emitter}
}

// Open starts browsing dir as files of domainName. Selected files are
// copied into outputDir, which defaults to dir/selected.
func (s *FolderService) Open(ctx context.Context, dir, domainName, concept, outputDir string) error {
	if _, ok := DomainExtensions[domainName]; !ok {
		return fmt.Errorf("folder: unknown domain %q", domainName)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("open folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("open folder: %s is not a directory", abs)
	}
	if outputDir == "" {
		outputDir = filepath.Join(abs, "selected")
	}

	s.Close()

	s.mu.Lock()
	s.dir = abs
	s.domain = domainName
	s.concept = concept
	s.outputDir = outputDir
	s.selected = ""
	s.mu.Unlock()

	if err := s.watch(ctx, abs); err != nil {
		log.Printf("[VIEWER] watch %s: %v", abs, err)
	}
	log.Printf("[VIEWER] opened %s (%s)", abs, domainName)
	return nil
}

func (s *FolderService) watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.watcher = watcher
	s.watchCancel = cancel
	s.watchDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !s.matches(event.Name) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(folderDebounce, func() {
					if watchCtx.Err() != nil {
						return
					}
					if s.emitter != nil {
						s.emitter.Emit(ctx, EventViewerFilesChanged, map[string]string{"dir": dir})
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[VIEWER] watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (s *FolderService) matches(name string) bool {
	s.mu.Lock()
	domainName := s.domain
	s.mu.Unlock()
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range DomainExtensions[domainName] {
		if ext == e {
			return true
		}
	}
	return false
}

// Close stops watching. It waits for the watch goroutine to exit.
func (s *FolderService) Close() {
	s.mu.Lock()
	cancel, watcher, done := s.watchCancel, s.watcher, s.watchDone
	s.watchCancel, s.watcher, s.watchDone = nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		watcher.Close()
	}
	if done != nil {
		<-done
	}
}

func (s *FolderService) opened() (dir, domainName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return "", "", ErrNoFolder
	}
	return s.dir, s.domain, nil
}

// Files lists the matching files of the folder sorted by name.
func (s *FolderService) Files() ([]FolderFile, error) {
	dir, domainName, err := s.opened()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list folder: %w", err)
	}

	var files []FolderFile
	for _, e := range entries {
		if e.IsDir() || !s.matches(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Printf("[VIEWER] read %s: %v", e.Name(), err)
			continue
		}
		text := string(data)
		if domainName == "image" {
			text = base64.StdEncoding.EncodeToString(data)
		}
		content, _ := json.Marshal(text)
		f := FolderFile{Name: e.Name(), Content: content}
		if info, err := e.Info(); err == nil {
			f.ModTime = info.ModTime()
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// View renders the folder's files as a grid. Tiles are labelled with the
// file name.
func (s *FolderService) View(ctx context.Context) (presenter.GridView, error) {
	dir, domainName, err := s.opened()
	if err != nil {
		return presenter.GridView{}, err
	}
	files, err := s.Files()
	if err != nil {
		return presenter.GridView{}, err
	}

	gens := make([]domain.Generation, len(files))
	for i, f := range files {
		gens[i] = domain.Generation{Domain: domainName, Content: f.Content, Prompt: f.Name}
	}
	return s.grid.Present(ctx, presenter.Input{
		SessionID:   folderSessionID(dir),
		Domain:      domainName,
		Generations: gens,
		Feedback:    s.feedbackByFile(dir),
		ItemID:      func(i int, _ domain.Generation) string { return files[i].Name },
	})
}

// Select marks one file as selected. Only one file is selected at a time.
func (s *FolderService) Select(name string) error {
	dir, _, err := s.opened()
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("select: no file specified")
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.Base(name))); err != nil {
		return fmt.Errorf("select %s: %w", name, err)
	}
	s.mu.Lock()
	s.selected = filepath.Base(name)
	s.mu.Unlock()
	return nil
}

func (s *FolderService) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// AddFeedback records a note on a file of the folder.
func (s *FolderService) AddFeedback(name, text string) error {
	dir, _, err := s.opened()
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if name == "" || text == "" {
		return fmt.Errorf("file and feedback required")
	}
	return s.feedback.AddFeedback(&domain.FeedbackRecord{
		ID:        uuid.New().String(),
		SessionID: folderSessionID(dir),
		Item:      name,
		Feedback:  text,
	})
}

// Feedback returns the notes recorded on a file of the open folder.
func (s *FolderService) Feedback(name string) []string {
	dir, _, err := s.opened()
	if err != nil {
		return []string{}
	}
	if fb := s.feedbackByFile(dir)[name]; fb != nil {
		return fb
	}
	return []string{}
}

// feedbackByFile loads every note of the folder in one query, keyed by
// file name.
func (s *FolderService) feedbackByFile(dir string) map[string][]string {
	out := map[string][]string{}
	recs, err := s.feedback.ListSessionFeedback(folderSessionID(dir))
	if err != nil {
		log.Printf("[VIEWER] feedback for %s: %v", dir, err)
		return out
	}
	for _, r := range recs {
		out[r.Item] = append(out[r.Item], r.Feedback)
	}
	return out
}

// SaveSelected copies the selected file into the output directory as
// <concept>_<unix time><ext> and returns the new path.
func (s *FolderService) SaveSelected() (string, error) {
	s.mu.Lock()
	dir, selected, outputDir, concept := s.dir, s.selected, s.outputDir, s.concept
	s.mu.Unlock()

	if dir == "" {
		return "", ErrNoFolder
	}
	if selected == "" {
		return "", fmt.Errorf("no file selected")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	prefix := fileSafe(concept)
	if prefix == "" {
		prefix = "object"
	}
	dst := filepath.Join(outputDir, fmt.Sprintf("%s_%d%s", prefix, time.Now().Unix(), filepath.Ext(selected)))
	if err := copyFile(filepath.Join(dir, selected), dst); err != nil {
		return "", err
	}
	log.Printf("[VIEWER] saved %s to %s", selected, dst)
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}

// fileSafe turns a concept into a file name prefix. Spaces become
// underscores; anything that could form a path is dropped.
func fileSafe(concept string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '/', r == '\\', r == '.', r == ':', r < 0x20:
			return -1
		}
		return r
	}, strings.TrimSpace(concept))
}

func folderSessionID(dir string) string {
	return "folder:" + dir
}
