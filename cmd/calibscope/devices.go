package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
	"github.com/Mr-Dark-debug/calibscope/pkg/timeutil"
)

func NewDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "devices",
		Short:   "Manage robots",
		GroupID: gStore,
	}

	var name, model string
	add := &cobra.Command{
		Use:   "add [id]",
		Short: "Register a device or update its name and model",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			d := &calibration.Device{ID: args[0], Name: name, Model: model}
			if d.Name == "" {
				d.Name = d.ID
			}
			if err := store.UpsertDevice(d); err != nil {
				return fmt.Errorf("failed to save device: %w", err)
			}
			logrus.Infof("successfully saved device %s", d.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name (defaults to the id)")
	add.Flags().StringVar(&model, "model", "", "robot model, e.g. SO-101")

	list := &cobra.Command{
		Use:   "list",
		Short: "List devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			devices, err := store.ListDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			if len(devices) == 0 {
				cmd.Println("No devices. Add one with 'calibscope devices add <id>'.")
				return nil
			}
			cmd.Println(bold("%-20s %-24s %-12s %s", "ID", "NAME", "MODEL", "CREATED"))
			for _, d := range devices {
				cmd.Printf("%-20s %-24s %-12s %s\n", d.ID, d.Name, d.Model, timeutil.FormatTimestamp(d.CreatedAt))
			}
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
