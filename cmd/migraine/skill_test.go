// ABOUTME: Tests for the install-skill command.
// ABOUTME: Covers the embedded content, fresh installs, updates and the confirmation prompt.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedSkillContent(t *testing.T) {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		t.Fatalf("Failed to read embedded skill: %v", err)
	}

	text := string(content)
	if !strings.HasPrefix(text, "---\n") {
		t.Error("Expected YAML front matter")
	}
	for _, marker := range []string{"name: migraine", "description:", "migraine episode add", "analyze correlations"} {
		if !strings.Contains(text, marker) {
			t.Errorf("Skill content missing %q", marker)
		}
	}
}

func TestInstallSkillWritesFile(t *testing.T) {
	root := t.TempDir()
	var out bytes.Buffer

	if err := installSkill(root, strings.NewReader(""), &out, true); err != nil {
		t.Fatalf("installSkill failed: %v", err)
	}

	skillPath := filepath.Join(root, "migraine", "SKILL.md")
	got, err := os.ReadFile(skillPath)
	if err != nil {
		t.Fatalf("Skill file not created: %v", err)
	}
	want, _ := skillFS.ReadFile("skill/SKILL.md")
	if string(got) != string(want) {
		t.Error("Installed skill does not match embedded content")
	}
	if !strings.Contains(out.String(), "Installed migraine skill") {
		t.Errorf("unexpected output: %q", out.String())
	}

	info, err := os.Stat(skillPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Skill file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestInstallSkillUpToDate(t *testing.T) {
	root := t.TempDir()
	if err := installSkill(root, strings.NewReader(""), &bytes.Buffer{}, true); err != nil {
		t.Fatal(err)
	}

	// No prompt is shown, so an empty reader must not matter.
	var out bytes.Buffer
	if err := installSkill(root, strings.NewReader(""), &out, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "already up to date") {
		t.Errorf("unexpected output: %q", out.String())
	}
	if strings.Contains(out.String(), "Continue?") {
		t.Error("Expected no prompt for an up-to-date skill")
	}
}

func TestInstallSkillUpdatesOutdated(t *testing.T) {
	root := t.TempDir()
	skillPath := filepath.Join(root, "migraine", "SKILL.md")
	if err := os.MkdirAll(filepath.Dir(skillPath), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(skillPath, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := installSkill(root, strings.NewReader("yes\n"), &out, false); err != nil {
		t.Fatalf("installSkill failed: %v", err)
	}

	got, _ := os.ReadFile(skillPath)
	if string(got) == "old" {
		t.Error("Expected existing skill to be overwritten")
	}
	if !strings.Contains(out.String(), "Update the migraine skill") || !strings.Contains(out.String(), "Updated migraine skill") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestInstallSkillDeclined(t *testing.T) {
	root := t.TempDir()
	var out bytes.Buffer

	if err := installSkill(root, strings.NewReader("n\n"), &out, false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "migraine", "SKILL.md")); !os.IsNotExist(err) {
		t.Error("Expected nothing written after declining")
	}
	if !strings.Contains(out.String(), "Skipped") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestInstallSkillCmdFlags(t *testing.T) {
	for _, name := range []string{"yes", "dir"} {
		if installSkillCmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected --%s flag on install-skill", name)
		}
	}
}
