package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// doctorOverlapConstraint refuses a second active appointment overlapping
// [start_time, end_time) for the same doctor.
const doctorOverlapConstraint = "appointments_doctor_no_overlap"

var constraintSQL = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + doctorOverlapConstraint + `') THEN
		ALTER TABLE appointments ADD CONSTRAINT ` + doctorOverlapConstraint + `
			EXCLUDE USING gist (
				doctor_id WITH =,
				tstzrange(start_time, end_time, '[)') WITH &&
			) WHERE (status IN ('pending', 'confirmed'));
	END IF;
END $$`,
}

// Migrate creates or updates every table and installs the overlap constraint.
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.Doctor{},
		&models.Patient{},
		&models.Appointment{},
		&models.Availability{},
		&models.Consultation{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("db: auto migrate: %w", err)
	}

	for _, stmt := range constraintSQL {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("db: install constraints: %w", err)
		}
	}
	return nil
}
