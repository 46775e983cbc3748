package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TimeSlot is a time-of-day window such as {"from": "09:00", "to": "12:00"}.
// Both 24-hour and 12-hour ("2:00 PM") strings are accepted.
type TimeSlot struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// TimeSlots is stored as a JSON column.
type TimeSlots []TimeSlot

// Value implements the driver.Valuer interface
func (s TimeSlots) Value() (driver.Value, error) {
	if s == nil {
		s = TimeSlots{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (s *TimeSlots) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal TimeSlots: unsupported type %T", value)
	}

	return json.Unmarshal(data, s)
}

// Availability overrides a doctor's default schedule for one calendar day.
type Availability struct {
	BaseModel
	DoctorID string    `json:"doctor_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_availability_doctor_date"`
	Date     time.Time `json:"date" gorm:"type:date;not null;uniqueIndex:idx_availability_doctor_date"`
	Slots    TimeSlots `json:"slots" gorm:"type:jsonb"`
}
