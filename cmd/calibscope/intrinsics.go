package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
	"github.com/Mr-Dark-debug/calibscope/pkg/timeutil"
)

func NewIntrinsicsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "intrinsics",
		Short:   "Manage camera intrinsic calibrations",
		GroupID: gStore,
	}

	var (
		deviceID   string
		camera     string
		fx, fy     float64
		cx, cy     float64
		distortion []float64
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Record an intrinsic calibration for a device camera",
		Long: `Record an intrinsic calibration for a device camera.

Intrinsic calibrations are produced by a separate camera calibration
tool; hand-eye sessions can only start once one exists for the camera.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cam, err := calibration.ParseCamera(camera)
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.GetDevice(deviceID); err != nil {
				return fmt.Errorf("device %s: %w", deviceID, err)
			}
			ic := &calibration.IntrinsicCalibration{
				DeviceID:       deviceID,
				Camera:         cam,
				FocalLength:    [2]float64{fx, fy},
				PrincipalPoint: [2]float64{cx, cy},
				Distortion:     distortion,
			}
			if err := store.InsertIntrinsic(ic); err != nil {
				return fmt.Errorf("failed to save intrinsic calibration: %w", err)
			}
			logrus.Infof("successfully saved intrinsic calibration %s for %s/%s", ic.ID, deviceID, cam)
			return nil
		},
	}
	f := add.Flags()
	f.StringVarP(&deviceID, "device", "d", "", "device id")
	f.StringVar(&camera, "camera", string(calibration.CameraWrist), "camera (wrist or front)")
	f.Float64Var(&fx, "fx", 0, "focal length x, pixels")
	f.Float64Var(&fy, "fy", 0, "focal length y, pixels")
	f.Float64Var(&cx, "cx", 0, "principal point x, pixels")
	f.Float64Var(&cy, "cy", 0, "principal point y, pixels")
	f.Float64SliceVar(&distortion, "distortion", nil, "distortion coefficients")
	_ = add.MarkFlagRequired("device")

	var listDevice string
	list := &cobra.Command{
		Use:   "list",
		Short: "List intrinsic calibrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			index, err := store.ListIntrinsics(listDevice)
			if err != nil {
				return fmt.Errorf("failed to list intrinsic calibrations: %w", err)
			}
			if len(index) == 0 {
				cmd.Println("No intrinsic calibrations.")
				return nil
			}

			devices, err := store.ListDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			cmd.Println(bold("%-38s %-20s %-6s %-18s %s", "ID", "DEVICE", "CAMERA", "FOCAL", "CREATED"))
			for _, d := range devices {
				for _, cam := range calibration.Cameras {
					for _, ic := range index.For(d.ID, cam) {
						cmd.Printf("%-38s %-20s %-6s %-18s %s\n",
							ic.ID, ic.DeviceID, ic.Camera,
							fmt.Sprintf("%.1f, %.1f", ic.FocalLength[0], ic.FocalLength[1]),
							timeutil.FormatTimestamp(ic.CreatedAt))
					}
				}
			}
			return nil
		},
	}
	list.Flags().StringVarP(&listDevice, "device", "d", "", "only this device")

	cmd.AddCommand(add, list)
	return cmd
}
