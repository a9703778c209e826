// README: Depot hub entity.
package depot

import (
	"time"

	"spoke/internal/types"
)

type Depot struct {
	ID          types.ID
	Name        string
	Address     string
	Point       types.Point
	Capacity    int
	CurrentLoad int
	IsActive    bool
	CreatedAt   time.Time
}
