package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/nooltools/nooltools/internal/app"
	"github.com/nooltools/nooltools/internal/update"
	"github.com/spf13/cobra"
)

// AppFunc returns the application built by the root command.
type AppFunc func() *app.App

// NewCheckUpdateCmd creates the check-update command.
func NewCheckUpdateCmd(getApp AppFunc) *cobra.Command {
	var (
		refresh bool
		asJSON  bool
		style   string
		width   int
	)

	c := &cobra.Command{
		Use:   "check-update",
		Short: "Check the release feed for a newer version",
		Long:  `Compare the running version with the latest release and report whether it can be installed automatically.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, cached, err := getApp().CheckForUpdate(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, struct {
					update.UpdateCheckResult
					FromCache bool `json:"from_cache"`
				}{result, cached})
			}
			return printUpdateResult(out, result, cached, style, width)
		},
	}

	c.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cached result")
	c.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	c.Flags().StringVar(&style, "style", "dark", "Release notes style (dark, light, notty, ascii)")
	c.Flags().IntVar(&width, "width", 80, "Wrap release notes at this width")
	return c
}

func printUpdateResult(w io.Writer, r update.UpdateCheckResult, cached bool, style string, width int) error {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}

	fmt.Fprintf(w, "Current version:  %s\n", r.CurrentVersion)
	if r.LatestVersion != "" {
		latest := r.LatestVersion
		if !r.PublishedAt.IsZero() {
			latest += " (published " + humanize.Time(r.PublishedAt) + ")"
		}
		fmt.Fprintf(w, "Latest version:   %s\n", latest)
	}
	fmt.Fprintf(w, "Update available: %s\n", yesNo(r.HasUpdate))
	if r.AssetName != "" {
		fmt.Fprintf(w, "Installer:        %s (%s)\n", r.AssetName, humanize.IBytes(uint64(max(r.AssetSize, 0))))
	}

	auto := yesNo(r.CanAutoUpdate)
	if r.AutoUpdateReason != "" {
		auto += " (" + r.AutoUpdateReason + ")"
	}
	fmt.Fprintf(w, "Auto-update:      %s\n", auto)

	checked := r.CheckedAt.Local().Format(time.DateTime)
	if cached {
		checked += ", cached"
	}
	fmt.Fprintf(w, "Checked:          %s\n", checked)
	if r.Message != "" {
		fmt.Fprintf(w, "\n%s\n", r.Message)
	}
	if r.ReleaseURL != "" {
		fmt.Fprintf(w, "%s\n", r.ReleaseURL)
	}

	if notes := strings.TrimSpace(r.ReleaseNotes); notes != "" && r.HasUpdate {
		fmt.Fprintf(w, "\nRelease notes:\n%s", renderMarkdown(notes, style, width))
	}
	return nil
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md, style string, width int) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md + "\n"
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return rendered
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
