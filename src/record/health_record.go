// Package record holds the payload types stored as entries and the msgpack
// codec that turns them into bytes.
package record

import "fmt"

// DefaultPath is the collection every health record is linked from.
const DefaultPath = "all_health_records"

// HealthRecord is a patient profile.
type HealthRecord struct {
	FirstName     string  `codec:"first_name" json:"first_name"`
	FamilyName    string  `codec:"family_name" json:"family_name"`
	Age           int32   `codec:"age" json:"age"`
	Height        int32   `codec:"height" json:"height"`
	Weight        int32   `codec:"weight" json:"weight"`
	BloodType     string  `codec:"blood_type" json:"blood_type"`
	BloodPressure float32 `codec:"blood_pressure" json:"blood_pressure"`
}

func (h HealthRecord) String() string {
	return fmt.Sprintf("%s %s (age %d, %dcm, %dkg, %s, %.0f)",
		h.FirstName, h.FamilyName, h.Age, h.Height, h.Weight, h.BloodType, h.BloodPressure)
}
