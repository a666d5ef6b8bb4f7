package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// vaultPath resolves a relative path inside the vault and rejects anything
// that escapes the root.
func vaultPath(vaultDir, path string) (string, error) {
	p := filepath.Join(vaultDir, filepath.Clean(path))
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	base, err := filepath.Abs(vaultDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return p, nil
}

func readVaultFile(vaultDir, path string) (string, error) {
	p, err := vaultPath(vaultDir, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeVaultFile(vaultDir, path, content string) error {
	p, err := vaultPath(vaultDir, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0644)
}

func editVaultFile(vaultDir, path, oldStr, newStr string) error {
	p, err := vaultPath(vaultDir, path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	content := string(data)
	if !strings.Contains(content, oldStr) {
		return fmt.Errorf("old_string not found in %s", path)
	}
	content = strings.Replace(content, oldStr, newStr, 1)
	return os.WriteFile(p, []byte(content), 0644)
}

type dirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

func listVaultDir(vaultDir, path string) ([]dirEntry, error) {
	p, err := vaultPath(vaultDir, path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	out := make([]dirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

type noteMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

const maxNoteMatches = 20

// searchNotes scans every markdown file under the vault for query,
// case-insensitively, and returns up to maxNoteMatches matching lines.
func searchNotes(vaultDir, query string) ([]noteMatch, error) {
	needle := strings.ToLower(query)
	var matches []noteMatch
	err := filepath.WalkDir(vaultDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(vaultDir, path)
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, noteMatch{File: rel, Line: i + 1, Text: strings.TrimSpace(line)})
				if len(matches) >= maxNoteMatches {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

type vaultInfo struct {
	Path       string `json:"path"`
	NoteCount  int    `json:"note_count"`
	TotalBytes int64  `json:"total_bytes"`
}

func describeVault(vaultDir string) (*vaultInfo, error) {
	info := &vaultInfo{Path: vaultDir}
	err := filepath.WalkDir(vaultDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		info.NoteCount++
		info.TotalBytes += fi.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}
