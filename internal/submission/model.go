// Package submission holds the durable Submission row, its GORM-backed
// repository, and a Redis read-through cache for polling reads. Grounded
// on apex-build's habit of wrapping GORM behind a package-level service
// struct (pkg/models plus a *Database wrapper) rather than passing
// *gorm.DB around, adapted to the judge_submissions schema in the
// repository contract.
package submission

import "time"

// Status is the fixed verdict alphabet a submission can occupy.
type Status string

const (
	StatusPending              Status = "PENDING"
	StatusCompiling            Status = "COMPILING"
	StatusRunning              Status = "RUNNING"
	StatusAccepted             Status = "ACCEPTED"
	StatusWrongAnswer          Status = "WRONG_ANSWER"
	StatusTimeLimitExceeded    Status = "TIME_LIMIT_EXCEEDED"
	StatusMemoryLimitExceeded  Status = "MEMORY_LIMIT_EXCEEDED"
	StatusRuntimeError         Status = "RUNTIME_ERROR"
	StatusCompilationError     Status = "COMPILATION_ERROR"
	StatusInternalError        Status = "INTERNAL_ERROR"
)

// IsTerminal reports whether s is one of the alphabet's terminal values.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusTimeLimitExceeded,
		StatusMemoryLimitExceeded, StatusRuntimeError, StatusCompilationError,
		StatusInternalError:
		return true
	}
	return false
}

// Submission is the one durable row the judge core owns, matching
// judge_submissions from the repository schema contract.
type Submission struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	UserID       string `gorm:"index;type:varchar(255)"`
	Language     string `gorm:"type:varchar(32);not null"`
	SourceCode   string `gorm:"type:text;not null"`
	Stdin        string `gorm:"type:text"`
	Status       Status `gorm:"index;type:varchar(32);not null"`
	Stdout       string `gorm:"type:text"`
	Stderr       string `gorm:"type:text"`
	ExitCode     *int
	TimeUsed     float64
	WallTimeUsed float64
	MemoryUsed   int
	TimeLimit    float64
	MemoryLimit  int
	Signal       *int
	Message      string `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"index:idx_submissions_created_at,sort:desc"`
	UpdatedAt    time.Time
}

// TableName pins the GORM table name to the schema contract's name.
func (Submission) TableName() string {
	return "judge_submissions"
}
