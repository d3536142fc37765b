package domain

import "time"

// DataType identifies which schema an uploaded file is imported against.
type DataType string

const (
	DataEmployee           DataType = "employee"
	DataBenchmark          DataType = "benchmark"
	DataCompensationUpdate DataType = "compensation-update"
)

// DataTypes lists every importable data type.
var DataTypes = []DataType{DataEmployee, DataBenchmark, DataCompensationUpdate}

// Valid reports whether d is a known data type.
func (d DataType) Valid() bool {
	for _, t := range DataTypes {
		if t == d {
			return true
		}
	}
	return false
}

// UploadAudit is written once after every commit attempt, successful or not.
type UploadAudit struct {
	ID           string    `json:"id" db:"id"`
	WorkspaceID  string    `json:"workspace_id" db:"workspace_id"`
	UploadType   DataType  `json:"upload_type" db:"upload_type"`
	FileName     string    `json:"file_name" db:"file_name"`
	FileSize     int64     `json:"file_size" db:"file_size"`
	RowCount     int       `json:"row_count" db:"row_count"`
	SuccessCount int       `json:"success_count" db:"success_count"`
	ErrorCount   int       `json:"error_count" db:"error_count"`
	Errors       []string  `json:"errors" db:"errors"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
