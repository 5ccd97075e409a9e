package skills

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const skillLockFile = "lock.json"

// Installer copies skill directories into the user skills root and keeps a
// lock file recording where each came from and a digest of its contents.
type Installer struct {
	root string
}

type SkillLockEntry struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	DigestSHA string `json:"digest_sha256"`
	UpdatedAt string `json:"updated_at"`
}

func NewInstaller(root string) *Installer {
	return &Installer{root: root}
}

// Install validates the skill at src and copies it into the user root under
// its sanitized name. An existing skill with that name is an error.
func (si *Installer) Install(src string) (string, error) {
	src, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	m, err := readManifest(src)
	if err != nil {
		return "", fmt.Errorf("invalid skill: %w", err)
	}
	if _, err := newSkill(src, filepath.Dir(src), m); err != nil {
		return "", fmt.Errorf("invalid skill %s: %w", m.Name, err)
	}

	skillDir := filepath.Join(si.root, m.Name)
	if _, err := os.Stat(skillDir); err == nil {
		return "", fmt.Errorf("skill '%s' already exists", m.Name)
	}

	digest, err := copyTree(src, skillDir)
	if err != nil {
		_ = os.RemoveAll(skillDir)
		return "", fmt.Errorf("failed to copy skill: %w", err)
	}

	entry := SkillLockEntry{
		Name:      m.Name,
		Source:    src,
		DigestSHA: digest,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := si.updateLockEntry(entry); err != nil {
		_ = os.RemoveAll(skillDir)
		return "", fmt.Errorf("failed to write skill lock metadata: %w", err)
	}
	return m.Name, nil
}

func (si *Installer) Uninstall(skillName string) error {
	skillName = SanitizeName(skillName)
	skillDir := filepath.Join(si.root, skillName)

	if _, err := os.Stat(skillDir); os.IsNotExist(err) {
		return fmt.Errorf("skill '%s' not found", skillName)
	}

	if err := os.RemoveAll(skillDir); err != nil {
		return fmt.Errorf("failed to remove skill: %w", err)
	}

	if err := si.removeLockEntry(skillName); err != nil {
		return fmt.Errorf("failed to update skill lock metadata: %w", err)
	}
	return nil
}

// Locked returns the lock entries sorted by name.
func (si *Installer) Locked() ([]SkillLockEntry, error) {
	return si.lockEntries()
}

// copyTree copies regular files from src into dst, preserving modes, and
// returns a sha256 over the relative paths and contents in walk order.
func copyTree(src, dst string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		_, _ = io.WriteString(h, filepath.ToSlash(rel)+"\x00")
		if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (si *Installer) lockPath() string {
	return filepath.Join(si.root, skillLockFile)
}

func (si *Installer) lockEntries() ([]SkillLockEntry, error) {
	lockPath := si.lockPath()
	raw, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []SkillLockEntry{}, nil
		}
		return nil, err
	}

	entries := []SkillLockEntry{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (si *Installer) writeLockEntries(entries []SkillLockEntry) error {
	lockPath := si.lockPath()
	if len(entries) == 0 {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(lockPath, raw, 0o644)
}

func (si *Installer) updateLockEntry(entry SkillLockEntry) error {
	entries, err := si.lockEntries()
	if err != nil {
		return err
	}

	next := make([]SkillLockEntry, 0, len(entries)+1)
	replaced := false
	for _, existing := range entries {
		if existing.Name == entry.Name {
			next = append(next, entry)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, entry)
	}

	sort.SliceStable(next, func(i, j int) bool {
		return strings.ToLower(next[i].Name) < strings.ToLower(next[j].Name)
	})
	return si.writeLockEntries(next)
}

func (si *Installer) removeLockEntry(skillName string) error {
	skillName = strings.TrimSpace(skillName)
	if skillName == "" {
		return nil
	}

	entries, err := si.lockEntries()
	if err != nil {
		return err
	}

	next := make([]SkillLockEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == skillName {
			continue
		}
		next = append(next, entry)
	}
	return si.writeLockEntries(next)
}
