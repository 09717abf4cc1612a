package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/Mr-Dark-debug/calibscope/internal/database"
	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
)

const deviceKey = "device"

// abort writes a JSON error body and records err for the request logger.
func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func device(c *gin.Context) *calibration.Device {
	return c.MustGet(deviceKey).(*calibration.Device)
}

// limitParam parses ?limit=, falling back to def.
func limitParam(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

func (s *Server) health(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// promMetrics serves the metrics in Prometheus text format.
func (s *Server) promMetrics(c *gin.Context) {
	m := s.Metrics()
	c.Header("Content-Type", "text/plain; version=0.0.4")
	w := c.Writer
	fmt.Fprintf(w, "# HELP calibscope_requests_total Total API requests\n")
	fmt.Fprintf(w, "# TYPE calibscope_requests_total counter\n")
	fmt.Fprintf(w, "calibscope_requests_total %d\n", m.Requests)
	fmt.Fprintf(w, "# HELP calibscope_errors_total Total API requests answered with an error\n")
	fmt.Fprintf(w, "# TYPE calibscope_errors_total counter\n")
	fmt.Fprintf(w, "calibscope_errors_total %d\n", m.ErrorCount)
	fmt.Fprintf(w, "# HELP calibscope_handeye_saved_total Hand-eye calibrations saved\n")
	fmt.Fprintf(w, "# TYPE calibscope_handeye_saved_total counter\n")
	fmt.Fprintf(w, "calibscope_handeye_saved_total %d\n", m.HandEyeSaved)
	fmt.Fprintf(w, "# HELP calibscope_joints_imported_total Joint calibrations imported\n")
	fmt.Fprintf(w, "# TYPE calibscope_joints_imported_total counter\n")
	fmt.Fprintf(w, "calibscope_joints_imported_total %d\n", m.JointsImported)
	fmt.Fprintf(w, "# HELP calibscope_uptime_seconds Uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE calibscope_uptime_seconds gauge\n")
	fmt.Fprintf(w, "calibscope_uptime_seconds %d\n", m.Uptime)
}

func (s *Server) jsonMetrics(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.Metrics())
}

func (s *Server) listDevices(c *gin.Context) {
	devices, err := s.store.ListDevices()
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if devices == nil {
		devices = []*calibration.Device{}
	}
	c.IndentedJSON(http.StatusOK, devices)
}

// loadDevice resolves :id for every device-scoped route.
func (s *Server) loadDevice(c *gin.Context) {
	d, err := s.store.GetDevice(c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		abort(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Set(deviceKey, d)
	c.Next()
}

func (s *Server) listIntrinsics(c *gin.Context) {
	d := device(c)
	index, err := s.store.ListIntrinsics(d.ID)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	out := []calibration.IntrinsicCalibration{}
	for _, cam := range calibration.Cameras {
		if camera := c.Query("camera"); camera != "" && camera != string(cam) {
			continue
		}
		out = append(out, index.For(d.ID, cam)...)
	}
	c.IndentedJSON(http.StatusOK, out)
}

func (s *Server) listHandEye(c *gin.Context) {
	limit, err := limitParam(c, database.DefaultQueryLimit)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	filter := database.HandEyeFilter{DeviceID: device(c).ID, Limit: limit}
	if raw := c.Query("camera"); raw != "" {
		camera, err := calibration.ParseCamera(raw)
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		filter.Camera = camera
	}

	records, err := s.store.QueryHandEyeRecords(filter)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []*calibration.CalibrationRecord{}
	}
	c.IndentedJSON(http.StatusOK, records)
}

func (s *Server) getHandEye(c *gin.Context) {
	record, err := s.store.GetHandEyeRecord(c.Param("record"))
	if err == nil && record.DeviceID != device(c).ID {
		err = fmt.Errorf("hand-eye record %s: %w", c.Param("record"), database.ErrNotFound)
	}
	if errors.Is(err, database.ErrNotFound) {
		abort(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, record)
}

// createHandEye stores a calibration record produced elsewhere, such as
// a session run by another dashboard.
func (s *Server) createHandEye(c *gin.Context) {
	var record calibration.CalibrationRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	record.DeviceID = device(c).ID

	if !record.Camera.Valid() {
		abort(c, http.StatusBadRequest, fmt.Errorf("unknown camera %q", record.Camera))
		return
	}
	if record.Type == "" {
		record.Type = record.Camera.CalibrationType()
	}
	if record.Type != record.Camera.CalibrationType() {
		abort(c, http.StatusBadRequest,
			fmt.Errorf("camera %s requires calibration type %s", record.Camera, record.Camera.CalibrationType()))
		return
	}

	if err := record.Validate(); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if record.PosesCount < 0 {
		abort(c, http.StatusBadRequest, fmt.Errorf("poses count %d must not be negative", record.PosesCount))
		return
	}

	if err := s.store.InsertHandEyeRecord(&record); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	atomic.AddInt64(&s.metrics.HandEyeSaved, 1)
	c.IndentedJSON(http.StatusCreated, record)
}

func (s *Server) listJoints(c *gin.Context) {
	limit, err := limitParam(c, 0)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	records, err := s.store.QueryJointCalibrations(device(c).ID, limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []calibration.JointCalibrationRecord{}
	}
	c.IndentedJSON(http.StatusOK, records)
}

// importJoints accepts any layout calibration.ParseJointFile understands
// and stores every record in one transaction.
func (s *Server) importJoints(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	parsed, err := calibration.ParseJointFile(body)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	deviceID := device(c).ID
	records := lo.Map(parsed, func(r calibration.JointCalibrationRecord, _ int) *calibration.JointCalibrationRecord {
		r.DeviceID = deviceID
		return &r
	})
	if err := s.store.BatchInsertJointCalibrations(records); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	atomic.AddInt64(&s.metrics.JointsImported, int64(len(records)))
	logrus.WithFields(logrus.Fields{
		"device":  deviceID,
		"records": len(records),
	}).Info("joint calibrations imported")
	c.IndentedJSON(http.StatusCreated, records)
}

func (s *Server) jointStats(c *gin.Context) {
	limit, err := limitParam(c, 0)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	report, err := s.analyzer.DeviceHistory(device(c).ID, limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, report)
}
