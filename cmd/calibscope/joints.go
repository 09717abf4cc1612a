package main

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/calibscope/internal/analysis"
	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
	"github.com/Mr-Dark-debug/calibscope/pkg/jsonutil"
	"github.com/Mr-Dark-debug/calibscope/pkg/timeutil"
)

func NewJointsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "joints",
		Short:   "Import joint calibrations and report their statistics",
		GroupID: gStore,
	}

	var deviceID string
	cmd.PersistentFlags().StringVarP(&deviceID, "device", "d", "", "device id")
	_ = cmd.MarkPersistentFlagRequired("device")

	var notes string
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a joint calibration file",
		Long: `Import a joint calibration file.

The file may hold a single calibration record, an array of records, or
a LeRobot motor calibration map keyed by joint name. All records are
stored in one transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			parsed, err := calibration.ParseJointFile(data)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.GetDevice(deviceID); err != nil {
				return fmt.Errorf("device %s: %w", deviceID, err)
			}
			records := lo.Map(parsed, func(r calibration.JointCalibrationRecord, _ int) *calibration.JointCalibrationRecord {
				r.DeviceID = deviceID
				if r.Notes == "" {
					r.Notes = notes
				}
				return &r
			})
			if err := store.BatchInsertJointCalibrations(records); err != nil {
				return fmt.Errorf("failed to store joint calibrations: %w", err)
			}
			logrus.Infof("successfully imported %d joint calibrations for %s", len(records), deviceID)
			return nil
		},
	}
	importCmd.Flags().StringVar(&notes, "notes", "", "notes for records that carry none")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List joint calibrations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.QueryJointCalibrations(deviceID, limit)
			if err != nil {
				return fmt.Errorf("failed to query joint calibrations: %w", err)
			}
			if len(records) == 0 {
				cmd.Println("No joint calibrations.")
				return nil
			}
			for _, r := range records {
				cmd.Printf("%s  %s  %s\n", bold("%s", timeutil.FormatTimestamp(r.CreatedAt)), dim("%s", r.ID), r.Notes)
				for _, joint := range calibration.JointNames {
					if v, ok := r.HomingOffset(joint); ok {
						cmd.Printf("  %-14s %8.1f\n", joint, v)
					}
				}
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "maximum records (0 for all)")

	var (
		format    string
		statLimit int
	)
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Report homing offset statistics across calibrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := analysis.NewAnalyzer(store).DeviceHistory(deviceID, statLimit)
			if err != nil {
				return fmt.Errorf("failed to aggregate joint calibrations: %w", err)
			}

			switch format {
			case "json":
				cmd.Println(jsonutil.Pretty(report))
			case "markdown":
				cmd.Print(analysis.FormatReport(report))
			case "text":
				printStats(cmd, report)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			return nil
		},
	}
	stats.Flags().StringVarP(&format, "format", "f", "text", "output format: text, markdown, json")
	stats.Flags().IntVar(&statLimit, "limit", 0, "only the most recent N calibrations (0 for all)")

	cmd.AddCommand(importCmd, list, stats)
	return cmd
}

func printStats(cmd *cobra.Command, report *analysis.DeviceReport) {
	if report.NoData {
		cmd.Println("No calibration data.")
		return
	}
	cmd.Println(bold("Joint calibration statistics (%d calibrations):", report.Joints.Calibrations))
	for _, js := range report.Joints.Joints {
		if js.Samples == 0 {
			cmd.Printf("  %-14s %s\n", js.Joint, dim("no samples"))
			continue
		}
		mark := okMark()
		if js.Trend.Drifting {
			mark = warnMark()
		}
		cmd.Printf("  %s %-14s mean %s  std %s  range %s  error@330mm %s\n",
			mark, js.Joint,
			bold("%8.1f", js.Mean),
			bold("%6.2f (%.3f°)", js.Std, js.StdDeg),
			bold("%6.1f", js.Range),
			bold("%.3f mm", js.Error330mm))
	}
	for _, w := range report.Warnings {
		cmd.Println(w)
	}
}
