// Package db records telemetry sessions and readings in sqlite and exposes
// admin debugging routes over the database.
package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/oakfield-data/motion.report/internal/telemetry"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the sqlite database without touching the schema. Used by the
// migrate subcommand, which manages the schema itself.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// NewDB opens the sqlite database and applies any pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// StartSession records the start of an ingest run and returns its ID.
// Readings are tagged with the session so recordings can be replayed or
// exported per run.
func (db *DB) StartSession(listenAddr string) (string, error) {
	sessionID := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, listen_addr) VALUES (?, ?)`,
		sessionID, listenAddr,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record session: %w", err)
	}
	return sessionID, nil
}

// RecordReading persists one decoded reading under the given session.
func (db *DB) RecordReading(sessionID string, r telemetry.Reading) error {
	valuesJSON, err := json.Marshal(r.Values)
	if err != nil {
		return fmt.Errorf("failed to encode values: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO readings (
			session_id, sensor_type, name, ts, device_ts_ns, accuracy, values_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int(r.Type), r.Name, r.Time.UnixNano(), r.DeviceTime, r.Accuracy, string(valuesJSON),
	)
	if err != nil {
		return err
	}
	return nil
}

// Readings returns the most recent recorded readings of a sensor type,
// newest first, up to limit.
func (db *DB) Readings(t telemetry.SensorType, limit int) ([]telemetry.Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(
		`SELECT sensor_type, name, ts, device_ts_ns, accuracy, values_json
		 FROM readings WHERE sensor_type = ? ORDER BY ts DESC LIMIT ?`,
		int(t), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []telemetry.Reading
	for rows.Next() {
		var (
			sensorType int
			name       string
			ts         int64
			deviceTs   int64
			accuracy   float64
			valuesJSON string
		)
		if err := rows.Scan(&sensorType, &name, &ts, &deviceTs, &accuracy, &valuesJSON); err != nil {
			return nil, err
		}

		var values []float64
		if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
			return nil, fmt.Errorf("failed to decode stored values: %w", err)
		}

		readings = append(readings, telemetry.Reading{
			Type:       telemetry.SensorType(sensorType),
			Name:       name,
			Time:       time.Unix(0, ts),
			DeviceTime: deviceTs,
			Accuracy:   accuracy,
			Values:     values,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return readings, nil
}

// Session describes one recorded ingest run.
type Session struct {
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	ListenAddr string    `json:"listen_addr"`
	Readings   int64     `json:"readings"`
}

// Sessions lists recorded ingest runs, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(
		`SELECT s.session_id, s.started_at, s.listen_addr, COUNT(r.session_id)
		 FROM sessions s LEFT JOIN readings r ON r.session_id = s.session_id
		 GROUP BY s.session_id ORDER BY s.started_at DESC LIMIT 100`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedAt string
		if err := rows.Scan(&s.SessionID, &startedAt, &s.ListenAddr, &s.Readings); err != nil {
			return nil, err
		}
		if t, err := time.Parse("2006-01-02 15:04:05", startedAt); err == nil {
			s.StartedAt = t
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// AttachAdminRoutes mounts SQL debugging and backup endpoints under /debug/.
// These are for operators only and are not part of the consumer API.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://sensor_data.db", db.DB, &tailsql.DBOptions{
		Label: "Sensor DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
