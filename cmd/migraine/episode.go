// ABOUTME: CLI commands for migraine episodes.
// ABOUTME: Start, log intensity, close, list, show, delete and archive episodes.
package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/migraine/internal/analysis"
	"github.com/harperreed/migraine/internal/models"
	"github.com/harperreed/migraine/internal/storage"
)

var (
	addAt        string
	addTriggers  []string
	addMedicines []string
	addSymptoms  []string
	addNotes     string

	listLimit    int
	listArchived bool

	logAt   string
	logNote string

	closeAt string

	archiveBefore string
)

var episodeCmd = &cobra.Command{
	Use:     "episode",
	Aliases: []string{"ep", "e"},
	Short:   "Manage migraine episodes",
}

var episodeAddCmd = &cobra.Command{
	Use:     "add <intensity>",
	Aliases: []string{"start", "a"},
	Short:   "Start a migraine episode",
	Long: `Start a migraine episode at the given pain intensity (1-10).

Triggers, medicines and symptoms can be repeated or comma separated.
Known symptoms: nausea, vomiting, photophobia, phonophobia, aura, dizziness,
neck_pain. Anything else is kept as a custom symptom.

Examples:
  migraine episode add 6
  migraine episode add 7 --at "2024-03-14 06:30" --trigger "red wine" --trigger stress
  migraine episode add 5 --symptom nausea,photophobia --medicine ibuprofen`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		intensity, err := parseIntensity(args[0])
		if err != nil {
			return err
		}

		start, err := parseTime(addAt)
		if err != nil {
			return fmt.Errorf("invalid timestamp: %s", addAt)
		}

		e := models.NewEpisode(start, intensity)
		for _, t := range addTriggers {
			e.AddTrigger(t)
		}
		for _, m := range addMedicines {
			e.AddMedicine(m)
		}
		for _, s := range addSymptoms {
			e.Symptoms.Set(s)
		}
		if addNotes != "" {
			e.WithNotes(addNotes)
		}

		if err := repo.CreateEpisode(e); err != nil {
			return fmt.Errorf("failed to create episode: %w", err)
		}

		color.Green("✓ Started episode")
		fmt.Printf("  %s %s intensity %d\n",
			faintID(e),
			e.StartTime.Format("2006-01-02 15:04"),
			e.Intensity)
		return nil
	},
}

var episodeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List migraine episodes",
	Long: `List recent migraine episodes, newest first.

OUTPUT FORMAT:

  Each line shows: ID  START  DURATION  CURRENT/PEAK  TRIGGERS

  The ID is an 8-character prefix you can use with the other episode commands.
  Ongoing episodes are marked with a dot.

EXAMPLES:

  migraine episode list              # Last 20 episodes
  migraine episode list -n 0         # Everything
  migraine episode list --archived   # Episodes moved to the archive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var episodes []*models.Episode
		var err error
		if listArchived {
			episodes, err = repo.ListArchivedEpisodes()
		} else {
			episodes, err = repo.ListEpisodes(listLimit)
		}
		if err != nil {
			return fmt.Errorf("failed to list episodes: %w", err)
		}

		if len(episodes) == 0 {
			fmt.Println("No episodes found.")
			return nil
		}

		faint := color.New(color.Faint)
		now := time.Now()
		for _, e := range episodes {
			st := analysis.CalculateIntensityStats(e.IntensityHistory)
			marker := " "
			if e.IsOngoing() {
				marker = color.RedString("●")
			}
			triggers := ""
			if len(e.Triggers) > 0 {
				triggers = faint.Sprintf(" (%s)", truncate(strings.Join(e.Triggers, ", "), 40))
			}
			fmt.Printf("%s %s %s %s %s%s\n",
				faintID(e),
				marker,
				faint.Sprint(e.StartTime.Local().Format("2006-01-02 15:04")),
				padRight(humanDuration(e.Duration(now)), 8),
				padRight(fmt.Sprintf("%d/%d", e.Intensity, st.Peak), 5),
				triggers)
		}
		return nil
	},
}

var episodeShowCmd = &cobra.Command{
	Use:     "show <id>",
	Aliases: []string{"get"},
	Short:   "Show an episode with its intensity history",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := repo.GetEpisode(args[0])
		if err != nil {
			return fmt.Errorf("get episode: %w", err)
		}
		printEpisode(e, time.Now())
		return nil
	},
}

var episodeLogCmd = &cobra.Command{
	Use:   "log <id> <intensity>",
	Short: "Record a new intensity reading",
	Long: `Record a new pain intensity reading for an ongoing episode.

Readings must not predate the last one, and closed episodes can't be changed.

Examples:
  migraine episode log abc12345 8
  migraine episode log abc12345 4 --at "2024-03-14 11:00" --note "after triptan"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		intensity, err := parseIntensity(args[1])
		if err != nil {
			return err
		}
		at, err := parseTime(logAt)
		if err != nil {
			return fmt.Errorf("invalid timestamp: %s", logAt)
		}

		e, err := repo.GetEpisode(args[0])
		if err != nil {
			return fmt.Errorf("get episode: %w", err)
		}
		if err := e.LogIntensity(at, intensity, logNote); err != nil {
			return fmt.Errorf("failed to log intensity: %w", err)
		}
		if err := repo.UpdateEpisode(e); err != nil {
			return fmt.Errorf("failed to update episode: %w", err)
		}

		color.Green("✓ Logged intensity %d", intensity)
		fmt.Printf("  %s %d readings\n", faintID(e), len(e.IntensityHistory))
		return nil
	},
}

var episodeCloseCmd = &cobra.Command{
	Use:     "close <id>",
	Aliases: []string{"end"},
	Short:   "Mark an episode as ended",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseTime(closeAt)
		if err != nil {
			return fmt.Errorf("invalid timestamp: %s", closeAt)
		}

		e, err := repo.GetEpisode(args[0])
		if err != nil {
			return fmt.Errorf("get episode: %w", err)
		}
		if err := e.Close(at); err != nil {
			return fmt.Errorf("failed to close episode: %w", err)
		}
		if err := repo.UpdateEpisode(e); err != nil {
			return fmt.Errorf("failed to update episode: %w", err)
		}

		color.Green("✓ Closed episode")
		fmt.Printf("  %s lasted %s\n", faintID(e), humanDuration(e.Duration(at)))
		return nil
	},
}

var episodeDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete an episode",
	Long: `Delete an episode by its ID or ID prefix.

CAUTION:

  This permanently deletes the episode and its intensity history.
  If the prefix matches multiple episodes, an error is returned.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := repo.GetEpisode(args[0])
		if err != nil {
			return fmt.Errorf("get episode: %w", err)
		}

		if err := repo.DeleteEpisode(e.ID.String()); err != nil {
			return fmt.Errorf("failed to delete episode: %w", err)
		}

		color.Yellow("✗ Deleted episode")
		fmt.Printf("  %s %s\n", faintID(e), e.StartTime.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var episodeArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move old episodes to the archive",
	Long: `Move episodes that started before a cutoff into the archive.

Archived episodes are kept in storage and exports but are left out of
listings and analysis. The default cutoff is two years ago.

Examples:
  migraine episode archive
  migraine episode archive --before 2023-01-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cutoff := time.Now().Add(-storage.ArchiveAge)
		if archiveBefore != "" {
			t, err := models.ParseDateKey(archiveBefore)
			if err != nil {
				return err
			}
			cutoff = t
		}

		n, err := repo.ArchiveEpisodes(cutoff)
		if err != nil {
			return fmt.Errorf("failed to archive episodes: %w", err)
		}

		if n == 0 {
			fmt.Println("Nothing to archive.")
			return nil
		}
		color.Green("✓ Archived %d episodes started before %s", n, models.DateKey(cutoff))
		return nil
	},
}

func printEpisode(e *models.Episode, now time.Time) {
	faint := color.New(color.Faint)
	bold := color.New(color.Bold)
	st := analysis.CalculateIntensityStats(e.IntensityHistory)

	status := color.RedString("ongoing")
	if !e.IsOngoing() {
		status = color.GreenString("ended %s", e.EndTime.Local().Format("2006-01-02 15:04"))
	}

	bold.Printf("Episode %s\n", e.ID.String()[:8])
	fmt.Printf("  Started:    %s (%s)\n", e.StartTime.Local().Format("2006-01-02 15:04"), status)
	fmt.Printf("  Duration:   %s\n", humanDuration(e.Duration(now)))
	fmt.Printf("  Intensity:  current %d, peak %d, avg %.1f, %s\n", st.Current, st.Peak, st.Average, st.Trend)
	if len(e.Triggers) > 0 {
		fmt.Printf("  Triggers:   %s\n", strings.Join(e.Triggers, ", "))
	}
	if len(e.Medicines) > 0 {
		fmt.Printf("  Medicines:  %s\n", strings.Join(e.Medicines, ", "))
	}
	if symptoms := e.Symptoms.List(); len(symptoms) > 0 {
		fmt.Printf("  Symptoms:   %s\n", strings.Join(symptoms, ", "))
	}
	if e.Notes != nil && *e.Notes != "" {
		fmt.Printf("  Notes:      %s\n", *e.Notes)
	}

	fmt.Println()
	bold.Println("History")
	for _, h := range e.IntensityHistory {
		note := ""
		if h.Note != "" {
			note = faint.Sprintf(" (%s)", h.Note)
		}
		fmt.Printf("  %s %s %s%s\n",
			faint.Sprint(h.Timestamp.Local().Format("01-02 15:04")),
			padRight(strconv.Itoa(h.Intensity), 2),
			intensityBar(h.Intensity),
			note)
	}
}

func intensityBar(v int) string {
	bar := strings.Repeat("█", v)
	switch {
	case v >= 8:
		return color.RedString(bar)
	case v >= 5:
		return color.YellowString(bar)
	default:
		return color.GreenString(bar)
	}
}

func parseIntensity(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || !models.ValidIntensity(v) {
		return 0, fmt.Errorf("invalid intensity: %s (use %d-%d)", s, models.MinIntensity, models.MaxIntensity)
	}
	return v, nil
}

// parseTime reads a CLI timestamp in local time. Empty means now.
func parseTime(s string) (time.Time, error) {
	return models.ParseTimestamp(s, time.Now(), time.Local)
}

func faintID(e *models.Episode) string {
	return color.New(color.Faint).Sprint(e.ID.String()[:8])
}

func humanDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h >= 24 {
		return fmt.Sprintf("%dd%dh", h/24, h%24)
	}
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// truncate and padRight count runes, not bytes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func padRight(s string, length int) string {
	n := utf8.RuneCountInString(s)
	if n >= length {
		return s
	}
	return s + strings.Repeat(" ", length-n)
}

func init() {
	episodeAddCmd.Flags().StringVar(&addAt, "at", "", "start time (YYYY-MM-DD HH:MM), defaults to now")
	episodeAddCmd.Flags().StringSliceVarP(&addTriggers, "trigger", "t", nil, "suspected trigger (repeatable)")
	episodeAddCmd.Flags().StringSliceVarP(&addMedicines, "medicine", "m", nil, "medicine taken (repeatable)")
	episodeAddCmd.Flags().StringSliceVarP(&addSymptoms, "symptom", "s", nil, "symptom (repeatable)")
	episodeAddCmd.Flags().StringVar(&addNotes, "notes", "", "notes for the episode")

	episodeListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "max number of results (0 for all)")
	episodeListCmd.Flags().BoolVar(&listArchived, "archived", false, "list archived episodes")

	episodeLogCmd.Flags().StringVar(&logAt, "at", "", "time of the reading, defaults to now")
	episodeLogCmd.Flags().StringVar(&logNote, "note", "", "note for this reading")

	episodeCloseCmd.Flags().StringVar(&closeAt, "at", "", "end time, defaults to now")

	episodeArchiveCmd.Flags().StringVar(&archiveBefore, "before", "", "archive episodes started before this date (YYYY-MM-DD)")

	episodeCmd.AddCommand(episodeAddCmd, episodeListCmd, episodeShowCmd, episodeLogCmd,
		episodeCloseCmd, episodeDeleteCmd, episodeArchiveCmd)
	rootCmd.AddCommand(episodeCmd)
}
