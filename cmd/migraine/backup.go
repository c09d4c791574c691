// ABOUTME: CLI commands for encrypted backups.
// ABOUTME: Create, list and restore passphrase-protected snapshots of all data.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/harperreed/migraine/internal/backup"
)

// EnvBackupPassphrase supplies the backup passphrase non-interactively.
const EnvBackupPassphrase = "MIGRAINE_BACKUP_PASSPHRASE"

var (
	backupDir     string
	backupWipe    bool
	backupConfirm bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypted backups",
	Long: `Create and restore encrypted snapshots of every episode and daily record.

Snapshots are AES-256-GCM encrypted with a key derived from your passphrase
(Argon2id). The passphrase is read from MIGRAINE_BACKUP_PASSPHRASE or
prompted for. Lose it and the backup is unreadable.

Snapshots live in <data dir>/backups unless --dir is given.

Examples:
  migraine backup create
  migraine backup list
  migraine backup restore latest --wipe`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a new encrypted snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := readPassphrase(true)
		if err != nil {
			return err
		}

		snap, err := backupManager().Create(repo, pass)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		color.Green("✓ Backup written")
		fmt.Printf("  %s %s (%s)\n",
			color.New(color.Faint).Sprint(snap.ID[:10]),
			snap.Path,
			humanize.Bytes(uint64(snap.Size)))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := backupManager().List()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No backups found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, s := range snaps {
			fmt.Printf("%s %s %s %s\n",
				faint.Sprint(s.ID[:10]),
				s.CreatedAt.Local().Format("2006-01-02 15:04"),
				padRight(humanize.Bytes(uint64(s.Size)), 8),
				faint.Sprint(humanize.Time(s.CreatedAt)))
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <id|path|latest>",
	Short: "Restore a snapshot",
	Long: `Restore a snapshot by ID prefix, file path or "latest".

Without --wipe the snapshot is merged into existing data, which fails if
an episode already exists. With --wipe all current data is deleted first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := backupManager()
		snap, err := mgr.Resolve(args[0])
		if err != nil {
			return err
		}

		if backupWipe && !backupConfirm {
			fmt.Print("This deletes all current data before restoring. Continue? [y/N] ")
			response, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Println("Restore canceled.")
				return nil
			}
		}

		pass, err := readPassphrase(false)
		if err != nil {
			return err
		}
		if err := mgr.Restore(repo, snap, pass, backupWipe); err != nil {
			return err
		}

		color.Green("✓ Restored %s", filepath.Base(snap.Path))
		return nil
	},
}

func backupManager() *backup.Manager {
	dir := backupDir
	if dir == "" {
		dir = filepath.Join(cfg.GetDataDir(), "backups")
	}
	return backup.NewManager(dir)
}

// readPassphrase takes the passphrase from the environment or prompts on
// the terminal, asking twice when confirm is set.
func readPassphrase(confirm bool) (string, error) {
	if pass := os.Getenv(EnvBackupPassphrase); pass != "" {
		return pass, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no passphrase: set %s", EnvBackupPassphrase)
	}

	fmt.Print("Passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}

	if confirm {
		fmt.Print("Repeat passphrase: ")
		second, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return string(first), nil
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupDir, "dir", "", "snapshot directory (default <data dir>/backups)")
	backupRestoreCmd.Flags().BoolVar(&backupWipe, "wipe", false, "delete current data before restoring")
	backupRestoreCmd.Flags().BoolVarP(&backupConfirm, "yes", "y", false, "skip the wipe confirmation prompt")

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
