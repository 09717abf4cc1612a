// Package database provides the storage layer for calibscope.
//
// It implements the Store interface using SQLite with WAL mode and
// indexes tuned for per-device, newest-first listings. The DBService
// struct is the primary entry point for all database operations.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Mr-Dark-debug/calibscope/pkg/calibration"
	"github.com/Mr-Dark-debug/calibscope/pkg/jsonutil"
	"github.com/Mr-Dark-debug/calibscope/pkg/timeutil"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// DefaultQueryLimit caps listings when the caller passes no limit.
const DefaultQueryLimit = 100

// Store defines the interface for calibration persistence.
// This abstraction allows for mocking in tests.
type Store interface {
	// UpsertDevice creates a device or updates its name and model.
	UpsertDevice(device *calibration.Device) error
	// GetDevice returns a device by ID or ErrNotFound.
	GetDevice(id string) (*calibration.Device, error)
	// ListDevices returns all devices ordered by name.
	ListDevices() ([]*calibration.Device, error)

	// InsertIntrinsic persists an intrinsic calibration.
	InsertIntrinsic(ic *calibration.IntrinsicCalibration) error
	// ListIntrinsics returns the intrinsic calibrations of a device (all
	// devices when deviceID is empty) keyed by device and camera.
	ListIntrinsics(deviceID string) (calibration.IntrinsicIndex, error)

	// InsertHandEyeRecord persists a saved hand-eye calibration.
	InsertHandEyeRecord(record *calibration.CalibrationRecord) error
	// GetHandEyeRecord returns a hand-eye calibration by ID or ErrNotFound.
	GetHandEyeRecord(id string) (*calibration.CalibrationRecord, error)
	// QueryHandEyeRecords returns hand-eye calibrations, newest first.
	QueryHandEyeRecords(filter HandEyeFilter) ([]*calibration.CalibrationRecord, error)

	// InsertJointCalibration persists a joint calibration.
	InsertJointCalibration(record *calibration.JointCalibrationRecord) error
	// BatchInsertJointCalibrations inserts joint calibrations in a single transaction.
	BatchInsertJointCalibrations(records []*calibration.JointCalibrationRecord) error
	// QueryJointCalibrations returns a device's joint calibrations, newest first.
	QueryJointCalibrations(deviceID string, limit int) ([]calibration.JointCalibrationRecord, error)

	// Close gracefully shuts down the database connection.
	Close() error
}

// HandEyeFilter defines query parameters for hand-eye listings.
type HandEyeFilter struct {
	DeviceID string             `json:"device_id,omitempty"`
	Camera   calibration.Camera `json:"camera,omitempty"`
	Since    time.Time          `json:"since,omitempty"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// ============================================================
// DBService Implementation
// ============================================================

// DBService implements the Store interface using SQLite.
// It manages the database connection pool, prepared statements,
// and ensures thread-safe access through a read-write mutex.
type DBService struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	// Prepared statements for write paths
	stmtUpsertDevice    *sql.Stmt
	stmtInsertIntrinsic *sql.Stmt
	stmtInsertHandEye   *sql.Stmt
	stmtInsertJoint     *sql.Stmt
}

// NewDBService creates a new database service, initializes the schema,
// and prepares frequently-used statements.
//
// The path parameter specifies the SQLite database file location.
// Use ":memory:" for in-memory databases (useful for testing).
func NewDBService(path string) (*DBService, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON&_cache_size=-64000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	svc := &DBService{
		db:   db,
		path: path,
	}

	if err := svc.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	if err := svc.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing statements: %w", err)
	}

	return svc, nil
}

// Path returns the database location the service was opened with.
func (s *DBService) Path() string {
	return s.path
}

func (s *DBService) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading embedded schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

func (s *DBService) prepareStatements() error {
	var err error

	s.stmtUpsertDevice, err = s.db.Prepare(`
		INSERT INTO devices (id, name, model, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			model = excluded.model
	`)
	if err != nil {
		return fmt.Errorf("preparing UpsertDevice: %w", err)
	}

	s.stmtInsertIntrinsic, err = s.db.Prepare(`
		INSERT INTO intrinsic_calibrations (id, device_id, camera, focal_length,
			principal_point, distortion, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertIntrinsic: %w", err)
	}

	s.stmtInsertHandEye, err = s.db.Prepare(`
		INSERT INTO handeye_calibrations (id, device_id, camera, calibration_type,
			intrinsic_id, transformation_matrix, translation, rotation_matrix,
			rotation_euler, reprojection_error, poses_used, poses_count, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertHandEye: %w", err)
	}

	s.stmtInsertJoint, err = s.db.Prepare(`
		INSERT INTO joint_calibrations (id, device_id, notes, calibration_data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertJoint: %w", err)
	}

	return nil
}

// newID fills an empty ID with a time-ordered UUID.
func newID(id *string) error {
	if *id != "" {
		return nil
	}
	u, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating id: %w", err)
	}
	*id = u.String()
	return nil
}

// stamp fills a zero timestamp with the current time.
func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

// ============================================================
// Devices
// ============================================================

// UpsertDevice creates a device or updates its name and model. The
// creation time of an existing device is kept.
func (s *DBService) UpsertDevice(device *calibration.Device) error {
	if device.ID == "" {
		return fmt.Errorf("upserting device: empty id")
	}
	stamp(&device.CreatedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.stmtUpsertDevice.Exec(device.ID, device.Name, device.Model, timeutil.ToNano(device.CreatedAt))
	if err != nil {
		return fmt.Errorf("upserting device %s: %w", device.ID, err)
	}
	return nil
}

// GetDevice returns a device by ID.
func (s *DBService) GetDevice(id string) (*calibration.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := &calibration.Device{}
	var created int64
	err := s.db.QueryRow(`SELECT id, name, model, created_at FROM devices WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Model, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying device %s: %w", id, err)
	}
	d.CreatedAt = timeutil.FromNano(created)
	return d, nil
}

// ListDevices returns all devices ordered by name.
func (s *DBService) ListDevices() ([]*calibration.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, model, created_at FROM devices ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []*calibration.Device
	for rows.Next() {
		d := &calibration.Device{}
		var created int64
		if err := rows.Scan(&d.ID, &d.Name, &d.Model, &created); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		d.CreatedAt = timeutil.FromNano(created)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// ============================================================
// Intrinsic calibrations
// ============================================================

// InsertIntrinsic persists an intrinsic calibration, assigning an ID and
// timestamp when they are empty.
func (s *DBService) InsertIntrinsic(ic *calibration.IntrinsicCalibration) error {
	if !ic.Camera.Valid() {
		return fmt.Errorf("inserting intrinsic: unknown camera %q", ic.Camera)
	}
	if err := newID(&ic.ID); err != nil {
		return err
	}
	stamp(&ic.CreatedAt)

	focal, err := jsonutil.Column(ic.FocalLength)
	if err != nil {
		return err
	}
	principal, err := jsonutil.Column(ic.PrincipalPoint)
	if err != nil {
		return err
	}
	distortion, err := jsonutil.NullableColumn(ic.Distortion)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.stmtInsertIntrinsic.Exec(
		ic.ID, ic.DeviceID, string(ic.Camera), focal, principal, distortion,
		timeutil.ToNano(ic.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting intrinsic %s: %w", ic.ID, err)
	}
	return nil
}

// ListIntrinsics returns intrinsic calibrations grouped by device and
// camera, oldest first within each group.
func (s *DBService) ListIntrinsics(deviceID string) (calibration.IntrinsicIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, device_id, camera, focal_length, principal_point, distortion, created_at
		FROM intrinsic_calibrations`
	var args []interface{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing intrinsics: %w", err)
	}
	defer rows.Close()

	index := make(calibration.IntrinsicIndex)
	for rows.Next() {
		var (
			ic                       calibration.IntrinsicCalibration
			camera, focal, principal string
			distortion               *string
			created                  int64
		)
		if err := rows.Scan(&ic.ID, &ic.DeviceID, &camera, &focal, &principal, &distortion, &created); err != nil {
			return nil, fmt.Errorf("scanning intrinsic row: %w", err)
		}
		ic.Camera = calibration.Camera(camera)
		ic.CreatedAt = timeutil.FromNano(created)
		if err := jsonutil.Decode(focal, &ic.FocalLength); err != nil {
			return nil, fmt.Errorf("intrinsic %s focal length: %w", ic.ID, err)
		}
		if err := jsonutil.Decode(principal, &ic.PrincipalPoint); err != nil {
			return nil, fmt.Errorf("intrinsic %s principal point: %w", ic.ID, err)
		}
		if err := jsonutil.DecodeNullable(distortion, &ic.Distortion); err != nil {
			return nil, fmt.Errorf("intrinsic %s distortion: %w", ic.ID, err)
		}

		key := calibration.IntrinsicKey(ic.DeviceID, ic.Camera)
		index[key] = append(index[key], ic)
	}
	return index, rows.Err()
}

// ============================================================
// Hand-eye calibrations
// ============================================================

// InsertHandEyeRecord persists a saved hand-eye calibration.
func (s *DBService) InsertHandEyeRecord(r *calibration.CalibrationRecord) error {
	if err := newID(&r.ID); err != nil {
		return err
	}
	stamp(&r.CreatedAt)

	var cols [4]string
	for i, v := range []interface{}{r.TransformationMatrix, r.Translation, r.RotationMatrix, r.RotationEuler} {
		c, err := jsonutil.Column(v)
		if err != nil {
			return fmt.Errorf("hand-eye record %s: %w", r.ID, err)
		}
		cols[i] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.stmtInsertHandEye.Exec(
		r.ID, r.DeviceID, string(r.Camera), string(r.Type), r.IntrinsicID,
		cols[0], cols[1], cols[2], cols[3],
		r.ReprojectionError, r.PosesUsed, r.PosesCount, r.Notes,
		timeutil.ToNano(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting hand-eye record %s: %w", r.ID, err)
	}
	return nil
}

const handEyeColumns = `id, device_id, camera, calibration_type, intrinsic_id,
	transformation_matrix, translation, rotation_matrix, rotation_euler,
	reprojection_error, poses_used, poses_count, notes, created_at`

// GetHandEyeRecord returns a hand-eye calibration by ID.
func (s *DBService) GetHandEyeRecord(id string) (*calibration.CalibrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+handEyeColumns+` FROM handeye_calibrations WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying hand-eye record %s: %w", id, err)
	}
	defer rows.Close()

	records, err := scanHandEyeRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("hand-eye record %s: %w", id, ErrNotFound)
	}
	return records[0], nil
}

// QueryHandEyeRecords returns hand-eye calibrations matching the filter.
// Results are ordered by created_at descending (most recent first).
func (s *DBService) QueryHandEyeRecords(filter HandEyeFilter) ([]*calibration.CalibrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + handEyeColumns + ` FROM handeye_calibrations WHERE 1=1`
	args := make([]interface{}, 0)

	if filter.DeviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, filter.DeviceID)
	}
	if filter.Camera != "" {
		query += ` AND camera = ?`
		args = append(args, string(filter.Camera))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, timeutil.ToNano(filter.Since))
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else {
		query += ` LIMIT ?`
		args = append(args, DefaultQueryLimit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying hand-eye records: %w", err)
	}
	defer rows.Close()

	return scanHandEyeRecords(rows)
}

// ============================================================
// Joint calibrations
// ============================================================

// InsertJointCalibration persists a joint calibration.
func (s *DBService) InsertJointCalibration(r *calibration.JointCalibrationRecord) error {
	args, err := jointArgs(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stmtInsertJoint.Exec(args...); err != nil {
		return fmt.Errorf("inserting joint calibration %s: %w", r.ID, err)
	}
	return nil
}

// BatchInsertJointCalibrations inserts multiple joint calibrations within
// a single transaction. Either all records are stored or none. Generated
// IDs and timestamps are written back to records only after commit.
func (s *DBService) BatchInsertJointCalibrations(records []*calibration.JointCalibrationRecord) error {
	filled := make([]calibration.JointCalibrationRecord, len(records))
	for i, r := range records {
		filled[i] = *r
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch joint transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt := tx.Stmt(s.stmtInsertJoint)
	for i := range filled {
		args, err := jointArgs(&filled[i])
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("batch inserting joint calibration %s: %w", filled[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch joint transaction: %w", err)
	}

	for i, r := range records {
		*r = filled[i]
	}
	return nil
}

func jointArgs(r *calibration.JointCalibrationRecord) ([]interface{}, error) {
	if err := newID(&r.ID); err != nil {
		return nil, err
	}
	stamp(&r.CreatedAt)

	data := r.CalibrationData
	if data == nil {
		data = map[string]calibration.JointCalibration{}
	}
	col, err := jsonutil.Column(data)
	if err != nil {
		return nil, fmt.Errorf("joint calibration %s: %w", r.ID, err)
	}
	return []interface{}{r.ID, r.DeviceID, r.Notes, col, timeutil.ToNano(r.CreatedAt)}, nil
}

// QueryJointCalibrations returns a device's joint calibrations, most
// recent first. A limit <= 0 returns the full history.
func (s *DBService) QueryJointCalibrations(deviceID string, limit int) ([]calibration.JointCalibrationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, device_id, notes, calibration_data, created_at
		FROM joint_calibrations
		WHERE device_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{deviceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying joint calibrations for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var records []calibration.JointCalibrationRecord
	for rows.Next() {
		var (
			r       calibration.JointCalibrationRecord
			data    string
			created int64
		)
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Notes, &data, &created); err != nil {
			return nil, fmt.Errorf("scanning joint calibration row: %w", err)
		}
		r.CreatedAt = timeutil.FromNano(created)
		if err := jsonutil.Decode(data, &r.CalibrationData); err != nil {
			return nil, fmt.Errorf("joint calibration %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close gracefully shuts down the database, closing all prepared statements
// and the underlying connection pool.
func (s *DBService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []*sql.Stmt{
		s.stmtUpsertDevice, s.stmtInsertIntrinsic,
		s.stmtInsertHandEye, s.stmtInsertJoint,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}

// ============================================================
// Scan Helpers
// ============================================================

func scanHandEyeRecords(rows *sql.Rows) ([]*calibration.CalibrationRecord, error) {
	var records []*calibration.CalibrationRecord
	for rows.Next() {
		var (
			r                      calibration.CalibrationRecord
			camera, typ            string
			matrix, trans, rot, eu string
			created                int64
		)
		if err := rows.Scan(
			&r.ID, &r.DeviceID, &camera, &typ, &r.IntrinsicID,
			&matrix, &trans, &rot, &eu,
			&r.ReprojectionError, &r.PosesUsed, &r.PosesCount, &r.Notes, &created,
		); err != nil {
			return nil, fmt.Errorf("scanning hand-eye row: %w", err)
		}
		r.Camera = calibration.Camera(camera)
		r.Type = calibration.Type(typ)
		r.CreatedAt = timeutil.FromNano(created)

		for _, c := range []struct {
			src string
			dst interface{}
		}{
			{matrix, &r.TransformationMatrix},
			{trans, &r.Translation},
			{rot, &r.RotationMatrix},
			{eu, &r.RotationEuler},
		} {
			if err := jsonutil.Decode(c.src, c.dst); err != nil {
				return nil, fmt.Errorf("hand-eye record %s: %w", r.ID, err)
			}
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
