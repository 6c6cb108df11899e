package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mygarage/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

var (
	// ErrStoreUnreadable means the store file exists but could not be decoded.
	ErrStoreUnreadable = errors.New("user store unreadable")
	// ErrStoreUnwritable means a new snapshot could not be committed.
	ErrStoreUnwritable = errors.New("user store unwritable")
	// ErrIncompatibleSchema means the file was written by an unknown schema version.
	ErrIncompatibleSchema = errors.New("incompatible store schema")
)

// Store persists every user as one snapshot file. Each save rewrites the
// whole file; there is no keyed or partial write.
type Store struct {
	path   string
	logger logrus.FieldLogger
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		path:   path,
		logger: logger.WithField("store", path),
	}
}

// Path returns the location of the store file.
func (s *Store) Path() string {
	return s.path
}

// LoadAll returns every stored user. A missing file is a first run and
// yields an empty list. An unreadable file is reported and also yields an
// empty list.
func (s *Store) LoadAll() []*models.User {
	users, err := s.Load()
	if err != nil {
		s.logger.WithError(err).Error("Load error or corrupted store, continuing with an empty garage")
		return []*models.User{}
	}
	return users
}

// Load reads every stored user. Errors wrap ErrStoreUnreadable.
func (s *Store) Load() ([]*models.User, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("No store file found, starting with an empty garage")
		return []*models.User{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreadable, err)
	}

	conn, err := openDB(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreadable, err)
	}
	defer conn.Close()

	if err := checkSchema(conn); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnreadable, err)
	}

	users, err := readUsers(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreadable, err)
	}

	s.logger.WithField("users", len(users)).Debug("Store loaded")
	return users, nil
}

// SaveAll replaces the store with users. The snapshot is built in a
// temporary file next to the store and renamed over it, so the previous
// content survives any failure.
func (s *Store) SaveAll(users []*models.User) error {
	if err := s.save(users); err != nil {
		s.logger.WithError(err).Error("Save error, store left unchanged")
		return fmt.Errorf("%w: %v", ErrStoreUnwritable, err)
	}
	s.logger.WithField("users", len(users)).Debug("Store saved")
	return nil
}

// Upsert loads the whole store, replaces the user with the same username
// (or appends it) and saves the whole store again.
func (s *Store) Upsert(user *models.User) error {
	users := s.LoadAll()
	found := false
	for i, u := range users {
		if u.Username == user.Username {
			users[i] = user
			found = true
			break
		}
	}
	if !found {
		users = append(users, user)
	}
	return s.SaveAll(users)
}

func (s *Store) save(users []*models.User) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := RunMigrations(tmpPath); err != nil {
		return err
	}

	conn, err := openDB(tmpPath)
	if err != nil {
		return err
	}
	if err := writeUsers(conn, users); err != nil {
		conn.Close()
		return err
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := syncFile(tmpPath); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func openDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open snapshot for sync: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	return f.Close()
}

func checkSchema(conn *sql.DB) error {
	var version uint
	var dirty bool
	row := conn.QueryRow("SELECT version, dirty FROM schema_migrations LIMIT 1")
	if err := row.Scan(&version, &dirty); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	want, err := SchemaVersion()
	if err != nil {
		return err
	}
	if dirty || version != want {
		return fmt.Errorf("%w: file has version %d (dirty=%t), expected %d", ErrIncompatibleSchema, version, dirty, want)
	}
	return nil
}

type logKey struct {
	user, vehicle int
}

// readUsers rebuilds the user graph. Each query's rows are closed before the
// next one starts since the connection pool holds a single connection.
func readUsers(conn *sql.DB) ([]*models.User, error) {
	users, err := readUserRows(conn)
	if err != nil {
		return nil, err
	}

	vehicles := make(map[logKey]*models.Vehicle)
	if err := readVehicles(conn, users, vehicles); err != nil {
		return nil, err
	}
	if err := readExpenses(conn, vehicles); err != nil {
		return nil, err
	}
	if err := readDreamItems(conn, vehicles); err != nil {
		return nil, err
	}
	if err := readTrackSessions(conn, vehicles); err != nil {
		return nil, err
	}
	return users, nil
}

func readUserRows(conn *sql.DB) ([]*models.User, error) {
	rows, err := conn.Query("SELECT username, password, email FROM users ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u := models.NewUser("", "", "")
		if err := rows.Scan(&u.Username, &u.Password, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func readVehicles(conn *sql.DB, users []*models.User, out map[logKey]*models.Vehicle) error {
	rows, err := conn.Query(`
		SELECT user_position, position, id, brand, model, generation, year, color, kilometer, power, torque
		FROM vehicles ORDER BY user_position, position
	`)
	if err != nil {
		return fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key logKey
		v := &models.Vehicle{
			Expenses:  []models.Expense{},
			DreamList: []models.DreamItem{},
			TrackLog:  []models.TrackSession{},
		}
		if err := rows.Scan(&key.user, &key.vehicle, &v.ID, &v.Brand, &v.Model, &v.Generation,
			&v.Year, &v.Color, &v.Kilometer, &v.Power, &v.Torque); err != nil {
			return fmt.Errorf("scan vehicle: %w", err)
		}
		if key.user < 0 || key.user >= len(users) {
			return fmt.Errorf("vehicle %s references missing user %d", v.ID, key.user)
		}
		users[key.user].AddVehicle(v)
		out[key] = v
	}
	return rows.Err()
}

func readExpenses(conn *sql.DB, vehicles map[logKey]*models.Vehicle) error {
	rows, err := conn.Query(`
		SELECT user_position, vehicle_position, category, amount, currency, description, date
		FROM expenses ORDER BY user_position, vehicle_position, position
	`)
	if err != nil {
		return fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key logKey
		var category, amount, date string
		var e models.Expense
		if err := rows.Scan(&key.user, &key.vehicle, &category, &amount, &e.Currency, &e.Description, &date); err != nil {
			return fmt.Errorf("scan expense: %w", err)
		}
		v, ok := vehicles[key]
		if !ok {
			return fmt.Errorf("expense references missing vehicle %v", key)
		}
		if e.Category, err = models.ParseExpenseCategory(category); err != nil {
			return err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("decode expense amount %q: %w", amount, err)
		}
		if e.Date, err = decodeDate(date); err != nil {
			return err
		}
		v.AddExpense(e)
	}
	return rows.Err()
}

func readDreamItems(conn *sql.DB, vehicles map[logKey]*models.Vehicle) error {
	rows, err := conn.Query(`
		SELECT user_position, vehicle_position, category, description, estimated_cost, currency, planned_date, done
		FROM dream_items ORDER BY user_position, vehicle_position, position
	`)
	if err != nil {
		return fmt.Errorf("query dream items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key logKey
		var category, cost, date string
		var d models.DreamItem
		if err := rows.Scan(&key.user, &key.vehicle, &category, &d.Description, &cost, &d.Currency, &date, &d.Done); err != nil {
			return fmt.Errorf("scan dream item: %w", err)
		}
		v, ok := vehicles[key]
		if !ok {
			return fmt.Errorf("dream item references missing vehicle %v", key)
		}
		if d.Category, err = models.ParseDreamCategory(category); err != nil {
			return err
		}
		if d.EstimatedCost, err = decimal.NewFromString(cost); err != nil {
			return fmt.Errorf("decode estimated cost %q: %w", cost, err)
		}
		if d.PlannedDate, err = decodeDate(date); err != nil {
			return err
		}
		v.AddDreamItem(d)
	}
	return rows.Err()
}

func readTrackSessions(conn *sql.DB, vehicles map[logKey]*models.Vehicle) error {
	rows, err := conn.Query(`
		SELECT user_position, vehicle_position, track_name, lap_time, date, conditions, tires
		FROM track_sessions ORDER BY user_position, vehicle_position, position
	`)
	if err != nil {
		return fmt.Errorf("query track sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key logKey
		var date string
		var t models.TrackSession
		if err := rows.Scan(&key.user, &key.vehicle, &t.TrackName, &t.LapTime, &date, &t.Conditions, &t.Tires); err != nil {
			return fmt.Errorf("scan track session: %w", err)
		}
		v, ok := vehicles[key]
		if !ok {
			return fmt.Errorf("track session references missing vehicle %v", key)
		}
		if t.Date, err = decodeDate(date); err != nil {
			return err
		}
		v.AddTrackSession(t)
	}
	return rows.Err()
}

func decodeDate(s string) (models.Date, error) {
	if s == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return models.Date{}, fmt.Errorf("decode date %q: %w", s, err)
	}
	return d, nil
}

func writeUsers(conn *sql.DB, users []*models.User) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for ui, u := range users {
		if _, err := tx.Exec(
			"INSERT INTO users (position, username, password, email) VALUES (?, ?, ?, ?)",
			ui, u.Username, u.Password, u.Email,
		); err != nil {
			return fmt.Errorf("insert user %s: %w", u.Username, err)
		}
		for vi, v := range u.Garage {
			if err := writeVehicle(tx, ui, vi, v); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func writeVehicle(tx *sql.Tx, ui, vi int, v *models.Vehicle) error {
	if _, err := tx.Exec(`
		INSERT INTO vehicles (user_position, position, id, brand, model, generation, year, color, kilometer, power, torque)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ui, vi, v.ID, v.Brand, v.Model, v.Generation, v.Year, v.Color, v.Kilometer, v.Power, v.Torque,
	); err != nil {
		return fmt.Errorf("insert vehicle %s: %w", v.ID, err)
	}

	for i, e := range v.Expenses {
		if _, err := tx.Exec(`
			INSERT INTO expenses (user_position, vehicle_position, position, category, amount, currency, description, date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ui, vi, i, string(e.Category), e.Amount.String(), e.Currency, e.Description, e.Date.String(),
		); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
	}
	for i, d := range v.DreamList {
		if _, err := tx.Exec(`
			INSERT INTO dream_items (user_position, vehicle_position, position, category, description, estimated_cost, currency, planned_date, done)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ui, vi, i, string(d.Category), d.Description, d.EstimatedCost.String(), d.Currency, d.PlannedDate.String(), d.Done,
		); err != nil {
			return fmt.Errorf("insert dream item: %w", err)
		}
	}
	for i, t := range v.TrackLog {
		if _, err := tx.Exec(`
			INSERT INTO track_sessions (user_position, vehicle_position, position, track_name, lap_time, date, conditions, tires)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ui, vi, i, t.TrackName, t.LapTime, t.Date.String(), t.Conditions, t.Tires,
		); err != nil {
			return fmt.Errorf("insert track session: %w", err)
		}
	}
	return nil
}
