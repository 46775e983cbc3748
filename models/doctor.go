package models

type Doctor struct {
	BaseModel
	UserID         string    `json:"user_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Name           string    `json:"name" gorm:"not null"`
	Specialization string    `json:"specialization"`
	Email          string    `json:"email"`
	Availability   TimeSlots `json:"availability" gorm:"type:jsonb"` // default recurring windows
}

type Patient struct {
	BaseModel
	UserID string `json:"user_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Name   string `json:"name" gorm:"not null"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Email  string `json:"email"`
}
