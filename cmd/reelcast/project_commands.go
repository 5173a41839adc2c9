package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelcast/internal/apiclient"
	"reelcast/internal/pipeline"
	"reelcast/internal/store"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Create, inspect, and delete projects",
	}

	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectDeleteCommand(ctx))

	return projectCmd
}

// trimFlag carries an optional offset in seconds.
type trimFlag struct {
	value *float64
}

func (f *trimFlag) String() string {
	if f.value == nil {
		return ""
	}
	return strconv.FormatFloat(*f.value, 'f', -1, 64)
}

func (f *trimFlag) Set(raw string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("expected seconds, got %q", raw)
	}
	f.value = &v
	return nil
}

func (f *trimFlag) Type() string { return "seconds" }

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		name       string
		videoURL   string
		audioURL   string
		videoStart trimFlag
		videoEnd   trimFlag
		audioStart trimFlag
		audioEnd   trimFlag
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project from a video and an audio source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.CreateRequest{
				Name: strings.TrimSpace(name),
				Sources: store.Sources{
					VideoURL:   strings.TrimSpace(videoURL),
					AudioURL:   strings.TrimSpace(audioURL),
					VideoStart: videoStart.value,
					VideoEnd:   videoEnd.value,
					AudioStart: audioStart.value,
					AudioEnd:   audioEnd.value,
				},
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				id, err := client.CreateProject(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"id": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name used in caption titles")
	cmd.Flags().StringVar(&videoURL, "video", "", "Video source URL")
	cmd.Flags().StringVar(&audioURL, "audio", "", "Audio source URL")
	cmd.Flags().Var(&videoStart, "video-start", "Video trim start in seconds")
	cmd.Flags().Var(&videoEnd, "video-end", "Video trim end in seconds")
	cmd.Flags().Var(&audioStart, "audio-start", "Audio trim start in seconds")
	cmd.Flags().Var(&audioEnd, "audio-end", "Audio trim end in seconds")
	_ = cmd.MarkFlagRequired("video")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				projects, err := client.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if projects == nil {
						projects = []*store.Project{}
					}
					return writeJSON(cmd, projects)
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					fmt.Fprintln(out, "No projects")
					return nil
				}
				sort.SliceStable(projects, func(i, j int) bool {
					return projects[i].CreatedAt.Before(projects[j].CreatedAt)
				})
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{
						p.ID,
						valueOrDash(p.Name),
						colorText(string(p.Status), projectStatusKind(p.Status), colorize),
						strconv.Itoa(p.SegmentCount),
						formatSeconds(p.MergedDuration),
						p.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Status", "Segments", "Duration", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a project with its current stage progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				view, err := client.Project(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				for _, line := range renderProject(view, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func renderProject(view *pipeline.ProjectView, colorize bool) []string {
	p := view.Project
	lines := renderSectionHeader("Project "+p.ID, colorize)
	lines = append(lines,
		renderField("Name", valueOrDash(p.Name)),
		renderField("Status", colorText(string(p.Status), projectStatusKind(p.Status), colorize)),
		renderField("Stage", valueOrDash(string(p.CurrentStage))),
	)
	if p.Status.InProgress() {
		progress := fmt.Sprintf("%d%%", view.StageProgress.Percent)
		tags := make([]string, 0, len(view.StageProgress.Children))
		for tag := range view.StageProgress.Children {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			progress += fmt.Sprintf(" %s=%d%%", tag, view.StageProgress.Children[tag])
		}
		lines = append(lines, renderField("Progress", progress))
	}
	if p.ErrorMessage != "" {
		lines = append(lines, renderField("Error", colorText(p.ErrorMessage, statusError, colorize)))
	}
	lines = append(lines,
		renderField("Video", p.Sources.VideoURL),
		renderField("Audio", p.Sources.AudioURL),
		renderField("Video length", formatSeconds(p.VideoDuration)),
		renderField("Audio length", formatSeconds(p.AudioDuration)),
		renderField("Merged length", formatSeconds(p.MergedDuration)),
		renderField("Segments", strconv.Itoa(p.SegmentCount)),
		renderField("Color", valueOrDash(p.Color)),
		renderField("Created", formatTime(&p.CreatedAt)),
		renderField("Updated", formatTime(&p.UpdatedAt)),
	)
	return lines
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a project, canceling its work and removing its artifacts",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]bool{"deleted": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
				return nil
			})
		},
	}
}
