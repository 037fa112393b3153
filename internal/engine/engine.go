// Package engine wires the content index, trigram index, definition
// index, and git-history cache into the server lifecycle spec.md §4.8
// describes: load-or-build on start, background builders for missing
// indexes, a watcher-driven incremental-update path, and a save-on-
// shutdown write-back. It is the shared brain behind both the MCP
// adapter (internal/mcpserver) and the CLI (cmd/codelens).
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/codelens/internal/config"
	"github.com/standardbeagle/codelens/internal/content"
	"github.com/standardbeagle/codelens/internal/defindex"
	"github.com/standardbeagle/codelens/internal/fileindex"
	"github.com/standardbeagle/codelens/internal/gitcache"
	"github.com/standardbeagle/codelens/internal/persist"
	"github.com/standardbeagle/codelens/internal/watch"
)

// Engine owns every shared index cell and the lifecycle around them.
// All exported methods are safe for concurrent use.
type Engine struct {
	cfg     *config.Config
	dataDir string
	logger  *log.Logger

	cellMu   sync.RWMutex
	content  *content.Index
	defs     *defindex.Index
	files    *fileindex.Index
	git      *gitcache.Cache

	contentReady   atomic.Bool
	defsReady      atomic.Bool
	contentBuild   atomic.Bool
	defsBuild      atomic.Bool
	contentDirty   atomic.Bool
	defsDirty      atomic.Bool

	branchWarning string

	watcher      *watch.Watcher
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs an Engine for cfg. It does not load or build anything;
// call Start to kick off the lifecycle.
func New(cfg *config.Config, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "codelens: ", log.LstdFlags)
	}
	dataDir, err := persist.DataDir()
	if err != nil {
		return nil, ioErrorf("resolve data dir", err)
	}
	return &Engine{
		cfg:        cfg,
		dataDir:    dataDir,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}, nil
}

// Start implements spec.md §4.8's five startup steps: install the signal
// handler is the caller's job (cmd/codelens); here we attempt a
// deterministic-name load for each index, spawn background builders for
// anything missing or stale, warm up the trigram index, and begin
// serving immediately regardless of build state.
func (e *Engine) Start(ctx context.Context) error {
	// search_find needs no content/definition parsing, just a directory
	// walk, so it is built synchronously and is always ready once Start
	// returns (spec.md §4.8 step 5).
	if err := e.buildFileIndex(); err != nil {
		e.logger.Printf("file-name index build failed: %v", err)
	}

	e.loadOrBuildContent(ctx)
	e.loadOrBuildDefs(ctx)
	e.loadGitCache(ctx)
	e.detectBranchWarning(ctx)

	if e.cfg.WatchMode {
		if err := e.startWatcher(); err != nil {
			e.logger.Printf("watcher not started: %v", err)
		}
	}
	return nil
}

func (e *Engine) buildFileIndex() error {
	idx, err := fileindex.Build(e.cfg.Root, e.cfg.Extensions, e.cfg.Exclude)
	if err != nil {
		return err
	}
	e.cellMu.Lock()
	e.files = idx
	e.cellMu.Unlock()
	return nil
}

// FileIndex returns the file-name index built synchronously at Start.
func (e *Engine) FileIndex() (*fileindex.Index, error) {
	e.cellMu.RLock()
	defer e.cellMu.RUnlock()
	if e.files == nil {
		return nil, notReady("file-name index")
	}
	return e.files, nil
}

func (e *Engine) contentFileName() string {
	return persist.FileName(e.cfg.Root, e.cfg.Extensions, persist.KindWordSearch)
}

func (e *Engine) defsFileName() string {
	return persist.FileName(e.cfg.Root, e.cfg.Extensions, persist.KindCodeStructure)
}

func (e *Engine) gitFileName() string {
	return persist.FileName(e.cfg.Root, nil, persist.KindGitHistory)
}

func (e *Engine) loadOrBuildContent(ctx context.Context) {
	idx := content.New(e.cfg.Root, e.cfg.Extensions, true)
	name := e.contentFileName()
	if persist.Exists(e.dataDir, name) {
		if err := persist.Load(e.dataDir, name, idx); err == nil && !idx.Stale() {
			e.cellMu.Lock()
			e.content = idx
			e.cellMu.Unlock()
			e.contentReady.Store(true)
			e.warmupContentAsync(idx)
			return
		} else if err != nil {
			e.logger.Printf("content index load failed, rebuilding: %v", err)
		}
	}
	e.buildContentAsync(ctx)
}

// warmupContentAsync spawns a background task to page in the trigram
// index (spec.md §4.8 step 4), so the first search_fast call after
// startup doesn't pay the fault-in cost inline.
func (e *Engine) warmupContentAsync(idx *content.Index) {
	go func() {
		tokens, trigrams := idx.Warmup()
		e.logger.Printf("trigram warmup complete: %d tokens, %d trigrams", tokens, trigrams)
	}()
}

func (e *Engine) buildContentAsync(ctx context.Context) {
	if !e.contentBuild.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer e.contentBuild.Store(false)
		idx := content.New(e.cfg.Root, e.cfg.Extensions, true)
		idx.MaxAgeSecs = e.cfg.MaxAgeSecs
		if err := idx.Build(ctx); err != nil {
			e.logger.Printf("content index build failed: %v", err)
			return
		}
		e.cellMu.Lock()
		e.content = idx
		e.cellMu.Unlock()
		e.contentDirty.Store(true)
		e.contentReady.Store(true)
		e.warmupContentAsync(idx)
	}()
}

func (e *Engine) loadOrBuildDefs(ctx context.Context) {
	idx := defindex.New(e.cfg.Root, e.cfg.Extensions)
	name := e.defsFileName()
	if persist.Exists(e.dataDir, name) {
		if err := persist.Load(e.dataDir, name, idx); err == nil && !idx.Stale() {
			e.cellMu.Lock()
			e.defs = idx
			e.cellMu.Unlock()
			e.defsReady.Store(true)
			return
		} else if err != nil {
			e.logger.Printf("definition index load failed, rebuilding: %v", err)
		}
	}
	e.buildDefsAsync(ctx)
}

func (e *Engine) buildDefsAsync(ctx context.Context) {
	if !e.defsBuild.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer e.defsBuild.Store(false)
		idx := defindex.New(e.cfg.Root, e.cfg.Extensions)
		idx.MaxAgeSecs = e.cfg.MaxAgeSecs
		if err := idx.Build(ctx); err != nil {
			e.logger.Printf("definition index build failed: %v", err)
			return
		}
		e.cellMu.Lock()
		e.defs = idx
		e.cellMu.Unlock()
		e.defsDirty.Store(true)
		e.defsReady.Store(true)
	}()
}

func (e *Engine) loadGitCache(ctx context.Context) {
	if err := gitcache.Available(); err != nil {
		e.logger.Printf("git unavailable, git-history tools disabled: %v", err)
		return
	}
	cache := gitcache.New(e.cfg.Root, e.cfg.MaxAgeSecs)
	name := e.gitFileName()
	if persist.Exists(e.dataDir, name) {
		if err := persist.Load(e.dataDir, name, cache); err == nil && !cache.Stale() {
			cache.RebuildIndex()
			e.cellMu.Lock()
			e.git = cache
			e.cellMu.Unlock()
			return
		}
	}
	go func() {
		fresh := gitcache.New(e.cfg.Root, e.cfg.MaxAgeSecs)
		if err := fresh.Build(ctx); err != nil {
			e.logger.Printf("git-history cache build failed: %v", err)
			return
		}
		e.cellMu.Lock()
		e.git = fresh
		e.cellMu.Unlock()
		if err := persist.Save(e.dataDir, name, fresh); err != nil {
			e.logger.Printf("git-history cache save failed: %v", err)
		}
	}()
}

// detectBranchWarning implements spec.md §4.10's "per-branch warning may
// be injected at startup if the indexed working copy is not on
// main/master". The git-history cache's Build may still be in flight on
// a cold start; this check is therefore best-effort and only fires when
// a branch name is already known (a loaded cache, or one built
// synchronously from a prior warm cache).
func (e *Engine) detectBranchWarning(ctx context.Context) {
	e.cellMu.RLock()
	cache := e.git
	e.cellMu.RUnlock()
	if cache == nil || cache.Branch == "" {
		return
	}
	branch := strings.ToLower(cache.Branch)
	if branch != "main" && branch != "master" {
		e.branchWarning = fmt.Sprintf("indexed working copy is on branch %q, not main/master", cache.Branch)
	}
}

func (e *Engine) startWatcher() error {
	updaters := watch.Updaters{
		OnUpdate: e.onFileChanged,
		OnRemove: e.onFileRemoved,
	}
	w, err := watch.New(e.cfg.Root, time.Duration(e.cfg.WatchDebounceMs)*time.Millisecond, updaters)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	e.watcher = w
	return nil
}

func (e *Engine) onFileChanged(relPath string) error {
	e.cellMu.RLock()
	c, d := e.content, e.defs
	e.cellMu.RUnlock()
	var firstErr error
	if c != nil {
		if err := c.UpdateFile(relPath); err != nil {
			firstErr = err
		}
		e.contentDirty.Store(true)
	}
	if d != nil {
		if err := d.UpdateFile(relPath); err != nil && firstErr == nil {
			firstErr = err
		}
		e.defsDirty.Store(true)
	}
	return firstErr
}

func (e *Engine) onFileRemoved(relPath string) error {
	e.cellMu.RLock()
	c, d := e.content, e.defs
	e.cellMu.RUnlock()
	var firstErr error
	if c != nil {
		if err := c.RemoveFile(relPath); err != nil {
			firstErr = err
		}
		e.contentDirty.Store(true)
	}
	if d != nil {
		if err := d.RemoveFile(relPath); err != nil && firstErr == nil {
			firstErr = err
		}
		e.defsDirty.Store(true)
	}
	return firstErr
}

// Reindex starts a background rebuild of the content and/or definition
// indexes and returns without waiting for it to finish, returning a
// "already being built" not-ready error (spec.md §4.8 step 5) if a build
// is already in flight.
func (e *Engine) Reindex(ctx context.Context, content, definitions bool) error {
	if content && e.contentBuild.Load() {
		return notReady("content index (already being built)")
	}
	if definitions && e.defsBuild.Load() {
		return notReady("definition index (already being built)")
	}
	if content {
		e.buildContentAsync(ctx)
	}
	if definitions {
		e.buildDefsAsync(ctx)
	}
	return nil
}

// ContentIndex returns the live content index, or a not-ready error if
// the background builder hasn't published one yet.
func (e *Engine) ContentIndex() (*content.Index, error) {
	if !e.contentReady.Load() {
		return nil, notReady("content index")
	}
	e.cellMu.RLock()
	defer e.cellMu.RUnlock()
	return e.content, nil
}

// DefinitionIndex returns the live definition index, or a not-ready error.
func (e *Engine) DefinitionIndex() (*defindex.Index, error) {
	if !e.defsReady.Load() {
		return nil, notReady("definition index")
	}
	e.cellMu.RLock()
	defer e.cellMu.RUnlock()
	return e.defs, nil
}

// GitCache returns the live git-history cache, or an Environment error
// if git is unavailable or the cache has not built yet.
func (e *Engine) GitCache() (*gitcache.Cache, error) {
	e.cellMu.RLock()
	defer e.cellMu.RUnlock()
	if e.git == nil {
		return nil, environmentf("git-history cache is not available")
	}
	return e.git, nil
}

// BranchWarning returns the startup branch warning, if any.
func (e *Engine) BranchWarning() string {
	return e.branchWarning
}

// Root returns the configured server root.
func (e *Engine) Root() string {
	return e.cfg.Root
}

// ResponseByteBudget returns the configured per-response byte budget.
func (e *Engine) ResponseByteBudget() int {
	return e.cfg.ResponseByteBudget
}

// ResolveScopedDir validates dir lies within the configured server root
// (spec.md §4.8 "Directory security") and returns its canonical absolute
// form.
func (e *Engine) ResolveScopedDir(dir string) (string, error) {
	root, err := filepath.Abs(e.cfg.Root)
	if err != nil {
		return "", ioErrorf("resolve server root", err)
	}
	if dir == "" {
		return root, nil
	}
	candidate := dir
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate, err = filepath.Abs(candidate)
	if err != nil {
		return "", ioErrorf("resolve dir", err)
	}
	rootClean := filepath.Clean(root)
	candClean := filepath.Clean(candidate)
	if candClean != rootClean && !strings.HasPrefix(candClean, rootClean+string(filepath.Separator)) {
		return "", scopef(rootClean, "dir %q is outside the server root", dir)
	}
	return candClean, nil
}

// Shutdown implements spec.md §4.8's shutdown sequence: save any index
// that changed since it was loaded, then return.
func (e *Engine) Shutdown(ctx context.Context) error {
	var err error
	e.shutdownOnce.Do(func() {
		close(e.shutdownCh)
		if e.watcher != nil {
			if werr := e.watcher.Stop(); werr != nil {
				e.logger.Printf("watcher stop: %v", werr)
			}
		}
		err = e.saveDirty()
	})
	return err
}

func (e *Engine) saveDirty() error {
	if err := os.MkdirAll(e.dataDir, 0o755); err != nil {
		return ioErrorf("create data dir", err)
	}
	var firstErr error

	e.cellMu.RLock()
	c, d, g := e.content, e.defs, e.git
	e.cellMu.RUnlock()

	if c != nil && e.contentDirty.Load() {
		if err := persist.Save(e.dataDir, e.contentFileName(), c); err != nil {
			firstErr = ioErrorf("save content index", err)
		}
	}
	if d != nil && e.defsDirty.Load() {
		if err := persist.Save(e.dataDir, e.defsFileName(), d); err != nil && firstErr == nil {
			firstErr = ioErrorf("save definition index", err)
		}
	}
	if g != nil {
		if err := persist.Save(e.dataDir, e.gitFileName(), g); err != nil && firstErr == nil {
			firstErr = ioErrorf("save git-history cache", err)
		}
	}
	return firstErr
}
