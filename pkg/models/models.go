package models

import (
	"time"
)

// User is an identity record. Passwords are stored only as bcrypt hashes.
type User struct {
	ID             uint       `json:"id" gorm:"primarykey"`
	Username       string     `json:"username" gorm:"uniqueIndex;not null"`
	Email          *string    `json:"email" gorm:"uniqueIndex"`
	HashedPassword string     `json:"-" gorm:"not null"`
	FullName       *string    `json:"full_name"`
	IsActive       bool       `json:"is_active" gorm:"default:true"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLogin      *time.Time `json:"last_login"`
}

// TableName keeps the legacy table name.
func (User) TableName() string { return "users" }

// UserView is the public projection of a User returned by the auth routes.
type UserView struct {
	ID        uint       `json:"id"`
	Username  string     `json:"username"`
	Email     *string    `json:"email"`
	FullName  *string    `json:"full_name"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login"`
}

// View returns the public projection of u.
func (u *User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// CodeSubmission records one analyze request. Rows are append-only: they are
// created once and never updated.
type CodeSubmission struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	UserID         uint      `json:"user_id" gorm:"index;not null"`
	Language       string    `json:"language" gorm:"not null"`
	FilePath       string    `json:"file_path" gorm:"not null"`
	AnalysisResult string    `json:"analysis_result"`
	FileName       *string   `json:"file_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName keeps the legacy table name.
func (CodeSubmission) TableName() string { return "code_submissions" }

// ErrorItem is one diagnostic in an analysis report.
type ErrorItem struct {
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning, info
}

// QualityMetrics carries the static-analysis portion of a report.
type QualityMetrics struct {
	CyclomaticComplexity string   `json:"cyclomatic_complexity"`
	TimeComplexity       string   `json:"time_complexity"`
	SpaceComplexity      string   `json:"space_complexity"`
	OverallScore         int      `json:"overall_score"`
	LinesOfCode          int      `json:"lines_of_code"`
	Summary              string   `json:"summary"`
	ComplexityIssues     []string `json:"complexity_issues"`
	SecurityIssues       []string `json:"security_issues"`
	Recommendations      []string `json:"recommendations"`
	SecurityAnalysis     string   `json:"security_analysis"`
}

// AnalysisReport is the unified analysis document. Every analyze response,
// success or error, conforms to this shape.
type AnalysisReport struct {
	Errors           []ErrorItem    `json:"errors"`
	Suggestions      []string       `json:"suggestions"`
	Optimizations    []string       `json:"optimizations"`
	Output           string         `json:"output"`
	CodeOutput       string         `json:"code_output"`
	ExecutionSuccess bool           `json:"execution_success"`
	QualityMetrics   QualityMetrics `json:"quality_metrics"`
	Detail           string         `json:"detail,omitempty"`
}
