package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage model tags",
	}

	addCmd := &cobra.Command{
		Use:   "add <id> <tag>...",
		Short: "Add tags to a model",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseModelID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			for _, tag := range args[1:] {
				if err := c.Store.AddTag(ctx, id, tag); err != nil {
					return fmt.Errorf("failed to tag model %d with %q: %w", id, tag, err)
				}
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Tagged model %d: %s\n", id, strings.Join(args[1:], ", "))
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:     "rm <id> <tag>...",
		Aliases: []string{"remove"},
		Short:   "Remove tags from a model",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseModelID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			for _, tag := range args[1:] {
				if err := c.Store.RemoveTag(ctx, id, tag); err != nil {
					return fmt.Errorf("failed to remove %q from model %d: %w", tag, id, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed from model %d: %s\n", id, strings.Join(args[1:], ", "))
			return nil
		},
	}

	lsCmd := &cobra.Command{
		Use:     "ls [id]",
		Aliases: []string{"list"},
		Short:   "List all tags, or the tags of one model",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				id, err := parseModelID(args[0])
				if err != nil {
					return err
				}
				tags, err := c.Store.GetModelTags(ctx, id)
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintln(out, t)
				}
				return nil
			}

			counts, err := c.Store.GetAllTags(ctx)
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Fprintln(out, "No tags")
				return nil
			}
			cyan := color.New(color.FgCyan)
			for _, tc := range counts {
				cyan.Fprintf(out, "%-20s", tc.Name)
				fmt.Fprintf(out, " %d\n", tc.Count)
			}
			return nil
		},
	}

	cmd.AddCommand(addCmd, rmCmd, lsCmd)
	return cmd
}
