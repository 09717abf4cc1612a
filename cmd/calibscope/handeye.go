package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
	"github.com/Mr-Dark-debug/calibscope/pkg/jsonutil"
	"github.com/Mr-Dark-debug/calibscope/pkg/timeutil"
)

func NewHandEyeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "handeye",
		Short:   "Inspect saved hand-eye calibrations",
		GroupID: gStore,
	}

	var (
		deviceID string
		camera   string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List hand-eye calibrations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := database.HandEyeFilter{DeviceID: deviceID, Limit: limit}
			if camera != "" {
				cam, err := calibration.ParseCamera(camera)
				if err != nil {
					return err
				}
				filter.Camera = cam
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.QueryHandEyeRecords(filter)
			if err != nil {
				return fmt.Errorf("failed to query hand-eye calibrations: %w", err)
			}
			if len(records) == 0 {
				cmd.Println("No hand-eye calibrations.")
				return nil
			}
			cmd.Println(bold("%-38s %-16s %-6s %-12s %6s %9s  %s", "ID", "DEVICE", "CAMERA", "TYPE", "POSES", "ERROR", "CREATED"))
			for _, r := range records {
				cmd.Printf("%-38s %-16s %-6s %-12s %6d %6.3f px  %s\n",
					r.ID, r.DeviceID, r.Camera, r.Type, r.PosesUsed, r.ReprojectionError,
					timeutil.FormatTimestamp(r.CreatedAt))
			}
			return nil
		},
	}
	f := list.Flags()
	f.StringVarP(&deviceID, "device", "d", "", "only this device")
	f.StringVar(&camera, "camera", "", "only this camera (wrist or front)")
	f.IntVar(&limit, "limit", database.DefaultQueryLimit, "maximum records")

	show := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a hand-eye calibration as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.GetHandEyeRecord(args[0])
			if err != nil {
				return fmt.Errorf("hand-eye calibration %s: %w", args[0], err)
			}
			cmd.Println(jsonutil.Pretty(record))
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
