// README: User profile as seen by the marketplace (role, verification, push token).
package user

import (
	"time"

	"wastelink/internal/types"
)

type Profile struct {
	ID          types.ID   `json:"id"`
	Role        types.Role `json:"role"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	DeviceToken string     `json:"-"`
	Verified    bool       `json:"verified"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
