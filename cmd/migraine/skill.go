// ABOUTME: install-skill command that drops the embedded assistant skill into the skills directory.
// ABOUTME: Reports whether the installed copy is missing, current or outdated before writing.

package main

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

//go:embed skill/SKILL.md
var skillFS embed.FS

const skillName = "migraine"

var (
	skillSkipConfirm bool
	skillDir         string
)

var installSkillCmd = &cobra.Command{
	Use:   "install-skill",
	Short: "Install the assistant skill for migraine",
	Long: `Install the migraine skill so an assistant can log episodes and ask for
correlations on your behalf.

The skill is written to <dir>/migraine/SKILL.md, where <dir> defaults to
~/.claude/skills. An identical installed copy is left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := skillDir
		if root == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("find home directory: %w", err)
			}
			root = filepath.Join(home, ".claude", "skills")
		}
		return installSkill(root, cmd.InOrStdin(), cmd.OutOrStdout(), skillSkipConfirm)
	},
}

func init() {
	installSkillCmd.Flags().BoolVarP(&skillSkipConfirm, "yes", "y", false, "install without asking")
	installSkillCmd.Flags().StringVar(&skillDir, "dir", "", "skills directory (default ~/.claude/skills)")
	rootCmd.AddCommand(installSkillCmd)
}

type skillState int

const (
	skillMissing skillState = iota
	skillCurrent
	skillOutdated
)

// skillStatus compares the installed file at path with the embedded content.
func skillStatus(path string, want []byte) (skillState, error) {
	have, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return skillMissing, nil
	case err != nil:
		return skillMissing, fmt.Errorf("read installed skill: %w", err)
	case bytes.Equal(have, want):
		return skillCurrent, nil
	default:
		return skillOutdated, nil
	}
}

func installSkill(root string, in io.Reader, out io.Writer, skipConfirm bool) error {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		return fmt.Errorf("read embedded skill: %w", err)
	}
	path := filepath.Join(root, skillName, "SKILL.md")

	state, err := skillStatus(path, content)
	if err != nil {
		return err
	}
	faint := color.New(color.Faint)
	if state == skillCurrent {
		color.New(color.FgGreen).Fprintf(out, "✓ Skill already up to date\n")
		faint.Fprintf(out, "  %s\n", path)
		return nil
	}

	verb, done := "Install", "Installed"
	if state == skillOutdated {
		verb, done = "Update", "Updated"
	}
	fmt.Fprintf(out, "%s the migraine skill at %s\n", verb, path)
	faint.Fprintln(out, "  lets an assistant log episodes, record daily data and explain findings")

	if !skipConfirm {
		fmt.Fprint(out, "Continue? [y/N] ")
		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
		default:
			color.New(color.FgYellow).Fprintf(out, "✗ Skipped\n")
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create skill directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("write skill: %w", err)
	}
	color.New(color.FgGreen).Fprintf(out, "✓ %s migraine skill\n", done)
	return nil
}
