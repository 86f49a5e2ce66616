package main

import (
	"github.com/spf13/cobra"
)

const (
	groupLibrary = "library"
	groupFixes   = "fixes"
	groupService = "service"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag string
		jsonFlag   bool
	)
	ctx := newCommandContext(&configFlag, &jsonFlag)

	root := &cobra.Command{
		Use:           "librarian",
		Short:         "Identify and organize an audiobook library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print machine-readable JSON")

	root.AddGroup(
		&cobra.Group{ID: groupLibrary, Title: "Library:"},
		&cobra.Group{ID: groupFixes, Title: "Fixes:"},
		&cobra.Group{ID: groupService, Title: "Service:"},
	)
	grouped := map[string][]*cobra.Command{
		groupLibrary: {
			newScanCommand(ctx),
			newProcessCommand(ctx),
			newAnalyzeCommand(ctx),
			newQueueCommand(ctx),
			newBookCommand(ctx),
		},
		groupFixes: {
			newFixCommand(ctx),
			newLockCommand(ctx),
		},
		groupService: {
			newDaemonCommand(ctx),
			newStatusCommand(ctx),
			newDoctorCommand(ctx),
			newConfigCommand(ctx),
		},
	}
	for id, cmds := range grouped {
		for _, cmd := range cmds {
			cmd.GroupID = id
			root.AddCommand(cmd)
		}
	}
	return root
}
