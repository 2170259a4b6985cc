package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MetaDir holds run bookkeeping and is hidden from agents.
const MetaDir = "_meta"

var (
	ErrOutsideWorkspace = errors.New("path escapes the project workspace")
	ErrReservedPath     = errors.New("path is reserved for run metadata")
)

// Workspace is one project's artifact directory.
type Workspace struct {
	root    string
	project string
}

func New(base, project string) (*Workspace, error) {
	if err := validProjectName(project); err != nil {
		return nil, err
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace base: %w", err)
	}
	root := filepath.Join(absBase, project)
	if err := os.MkdirAll(filepath.Join(root, MetaDir), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{root: root, project: project}, nil
}

func validProjectName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid project name %q", name)
	}
	return nil
}

func (w *Workspace) Root() string    { return w.root }
func (w *Workspace) Project() string { return w.project }

// MetaPath returns the absolute path of a metadata file.
func (w *Workspace) MetaPath(name string) string {
	return filepath.Join(w.root, MetaDir, name)
}

// Resolve maps a workspace-relative path to an absolute one, rejecting
// anything that would land outside the project directory.
func (w *Workspace) Resolve(rel string) (string, error) {
	joined := filepath.Join(w.root, rel)
	if joined != w.root && !strings.HasPrefix(joined, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, rel)
	}
	return joined, nil
}

func (w *Workspace) resolveArtifact(rel string) (string, error) {
	p, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	inner, _ := filepath.Rel(w.root, p)
	first := strings.SplitN(filepath.ToSlash(inner), "/", 2)[0]
	if first == MetaDir {
		return "", fmt.Errorf("%w: %s", ErrReservedPath, rel)
	}
	if p == w.root {
		return "", fmt.Errorf("%q is not a file path", rel)
	}
	return p, nil
}

// ListFiles renders the artifact tree, four spaces of indent per level,
// directories suffixed with a slash. The metadata directory is skipped.
func (w *Workspace) ListFiles() (string, error) {
	var lines []string
	if err := walk(w.root, 0, &lines); err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

func walk(dir string, level int, lines *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	indent := strings.Repeat(" ", 4*level)
	for _, e := range entries {
		if e.Name() == MetaDir {
			continue
		}
		if e.IsDir() {
			*lines = append(*lines, indent+e.Name()+"/")
			if err := walk(filepath.Join(dir, e.Name()), level+1, lines); err != nil {
				return err
			}
			continue
		}
		*lines = append(*lines, indent+e.Name())
	}
	return nil
}

// SaveArtifact writes content to a workspace-relative file, creating
// parent directories.
func (w *Workspace) SaveArtifact(name, content string) error {
	p, err := w.resolveArtifact(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", name, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadFiles returns each file's content, or an error description in its
// place when it cannot be read.
func (w *Workspace) ReadFiles(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		data, err := w.ReadFile(name)
		switch {
		case err == nil:
			out[name] = string(data)
		case errors.Is(err, fs.ErrNotExist):
			out[name] = fmt.Sprintf("ERROR: file '%s' not found", name)
		default:
			out[name] = fmt.Sprintf("ERROR: reading '%s' failed: %v", name, err)
		}
	}
	return out
}

func (w *Workspace) ReadFile(name string) ([]byte, error) {
	p, err := w.resolveArtifact(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// SaveMeta atomically replaces a metadata file.
func (w *Workspace) SaveMeta(name string, data []byte) error {
	path := w.MetaPath(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// ReadMeta returns fs.ErrNotExist (wrapped) when the file is absent.
func (w *Workspace) ReadMeta(name string) ([]byte, error) {
	return os.ReadFile(w.MetaPath(name))
}

func (w *Workspace) RemoveMeta(name string) error {
	if err := os.Remove(w.MetaPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
