package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/academy/internal/model"
)

type CourseStore struct {
	db *sql.DB
}

func NewCourseStore(db *sql.DB) *CourseStore {
	return &CourseStore{db: db}
}

const courseCols = `id, slug, title, description, price, created_at, updated_at`

func scanCourse(scanner interface{ Scan(...any) error }) (*model.Course, error) {
	var c model.Course
	err := scanner.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.Price, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CourseStore) Create(ctx context.Context, slug, title, description string, price int64) (*model.Course, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (slug, title, description, price) VALUES (?, ?, ?, ?)`,
		slug, title, description, price,
	)
	if err != nil {
		return nil, fmt.Errorf("insert course: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CourseStore) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+courseCols+` FROM courses WHERE id = ?`, id)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// GetByIDs returns the courses that exist among ids, in id order.
func (s *CourseStore) GetByIDs(ctx context.Context, ids []int64) ([]model.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+courseCols+` FROM courses WHERE id IN (`+placeholders+`) ORDER BY id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get courses by ids: %w", err)
	}
	defer rows.Close()
	return scanCourses(rows)
}

// List returns all courses, or those whose title or description contains query.
func (s *CourseStore) List(ctx context.Context, query string) ([]model.Course, error) {
	query = strings.TrimSpace(query)
	var (
		rows *sql.Rows
		err  error
	)
	if query == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+courseCols+` FROM courses ORDER BY title`)
	} else {
		like := "%" + escapeLike(strings.ToLower(query)) + "%"
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+courseCols+` FROM courses
			 WHERE lower(title) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\'
			 ORDER BY title`,
			like, like,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()
	return scanCourses(rows)
}

func scanCourses(rows *sql.Rows) ([]model.Course, error) {
	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
