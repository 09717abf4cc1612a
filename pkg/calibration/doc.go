// Package calibration defines the types shared by the calibscope
// session controller, statistics, storage, TUI and HTTP API:
//
//   - PoseSample, CalibrationResult and CalibrationRecord for the
//     hand-eye (camera-to-robot) workflow
//   - Device and IntrinsicCalibration for the per-camera context a
//     session needs
//   - JointCalibrationRecord for saved joint homing calibrations
//
// Keeping them in one package keeps the JSON contracts identical across
// the database, the HTTP API and the CLI.
package calibration
