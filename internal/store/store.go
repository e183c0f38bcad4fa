package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		section_id INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		origin TEXT NOT NULL DEFAULT 'existing',
		created_at DATETIME NOT NULL,
		UNIQUE (section_id, student_id),
		FOREIGN KEY (section_id) REFERENCES sections(id)
	);

	CREATE TABLE IF NOT EXISTS section_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'not_started',
		score REAL,
		time_spent_sec INTEGER,
		completed_at DATETIME,
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	CREATE TABLE IF NOT EXISTS tutoring_sessions (
		id TEXT PRIMARY KEY,
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		activity_type TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS session_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES tutoring_sessions(id)
	);

	CREATE TABLE IF NOT EXISTS activity_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL UNIQUE,
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		activity_type TEXT NOT NULL,
		comprehension_score REAL NOT NULL,
		accuracy_score REAL NOT NULL,
		autonomy_score REAL NOT NULL,
		final_score REAL NOT NULL,
		strengths TEXT NOT NULL DEFAULT '[]',
		weaknesses TEXT NOT NULL DEFAULT '[]',
		recommendation TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		message_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES tutoring_sessions(id)
	);

	CREATE TABLE IF NOT EXISTS student_course_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		quiz_average REAL NOT NULL DEFAULT 0,
		exercise_average REAL NOT NULL DEFAULT 0,
		ai_comprehension_average REAL NOT NULL DEFAULT 0,
		continuous_score REAL NOT NULL DEFAULT 0,
		quiz_count INTEGER NOT NULL DEFAULT 0,
		exercise_count INTEGER NOT NULL DEFAULT 0,
		ai_session_count INTEGER NOT NULL DEFAULT 0,
		exam_grade REAL,
		exam_date DATETIME,
		exam_comment TEXT NOT NULL DEFAULT '',
		final_grade REAL,
		updated_at DATETIME NOT NULL,
		UNIQUE (student_id, course_id),
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS course_progressions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		percentage REAL NOT NULL DEFAULT 0,
		last_activity_at DATETIME NOT NULL,
		UNIQUE (student_id, course_id),
		FOREIGN KEY (course_id) REFERENCES courses(id)
	);

	CREATE TABLE IF NOT EXISTS platform_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
