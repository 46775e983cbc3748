package models

type Notification struct {
	BaseModel
	UserID     *string `json:"user_id,omitempty" gorm:"type:varchar(36);index"`
	TargetRole *Role   `json:"target_role,omitempty" gorm:"type:varchar(20)"`
	Kind       string  `json:"type" gorm:"type:varchar(40);not null"`
	Message    string  `json:"message" gorm:"not null"`
	RelatedID  string  `json:"related_id,omitempty" gorm:"type:varchar(36)"`
	Read       bool    `json:"read" gorm:"default:false"`
}
